package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/domain/entity"
)

// ErrEmptyMessage is returned when there is nothing to send
var ErrEmptyMessage = errors.New("message content cannot be empty")

// MessageSender sends a raw IM message. SDKClient is the production implementation.
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Notifier implements port.Notifier by sending Lark text messages to a user's open_id
type Notifier struct {
	sender MessageSender
	logger *zap.Logger
}

// NewNotifier creates a Lark notifier
func NewNotifier(sender MessageSender, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		logger: logger,
	}
}

// Notify sends message to user. Users without a Lark open_id are skipped.
func (n *Notifier) Notify(ctx context.Context, user *entity.User, message string) error {
	if message == "" {
		return ErrEmptyMessage
	}
	if user == nil || user.OpenID == "" {
		n.logger.Info("Skipping notification, no Lark open_id",
			zap.String("user_id", userID(user)))
		return nil
	}

	content, err := textContent(message)
	if err != nil {
		return err
	}

	messageID, err := n.sender.SendMessage(ctx, "open_id", user.OpenID, "text", content)
	if err != nil {
		return fmt.Errorf("failed to notify %s: %w", user.ID, err)
	}

	n.logger.Info("Notification sent",
		zap.String("user_id", user.ID),
		zap.String("message_id", messageID))
	return nil
}

// textContent builds the content body of a Lark text message
func textContent(message string) (string, error) {
	data, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message content: %w", err)
	}
	return string(data), nil
}

func userID(u *entity.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
