package service

import (
	"context"
	"fmt"

	"github.com/garyjia/timesheet-approval/internal/application/dispatcher"
	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/event"
)

// NotificationService turns domain events into user messages
type NotificationService interface {
	// Register subscribes the notification handlers to d
	Register(d dispatcher.Dispatcher)

	// Handle delivers the message for one event
	Handle(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	directory port.UserDirectory
	org       port.OrgRelationship
	notifier  port.Notifier
	logger    Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	directory port.UserDirectory,
	org port.OrgRelationship,
	notifier port.Notifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		directory: directory,
		org:       org,
		notifier:  notifier,
		logger:    logger,
	}
}

var notifiedEvents = []event.Type{
	event.TypeDelegationCreated,
	event.TypeDelegationRevoked,
	event.TypeTimesheetSubmitted,
	event.TypeTimesheetApproved,
	event.TypeTimesheetReturned,
	event.TypeTimesheetUnlocked,
}

// Register subscribes Handle for every notified event type
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	for _, t := range notifiedEvents {
		d.Subscribe(t, "notify-"+t.String(), s.Handle)
	}
}

// Handle resolves the recipient and sends the message
func (s *notificationServiceImpl) Handle(ctx context.Context, evt *event.Event) error {
	recipientID, err := s.recipientOf(ctx, evt)
	if err != nil {
		return err
	}
	if recipientID == "" {
		s.logger.Info("No recipient for event", "event_type", evt.Type, "event_id", evt.ID)
		return nil
	}

	recipient, err := s.directory.GetUser(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("look up recipient %s: %w", recipientID, err)
	}
	if recipient == nil || !recipient.IsActive {
		s.logger.Info("Recipient inactive, skipping notification", "event_type", evt.Type, "recipient_id", recipientID)
		return nil
	}

	actorName := evt.ActorID
	if actor, err := s.directory.GetUser(ctx, evt.ActorID); err == nil && actor != nil {
		actorName = actor.DisplayName
	}

	message := buildMessage(evt, actorName)
	if err := s.notifier.Notify(ctx, recipient, message); err != nil {
		return fmt.Errorf("notify %s: %w", recipientID, err)
	}

	s.logger.Info("Notification sent",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"recipient_id", recipientID,
	)
	return nil
}

// recipientOf returns the payload recipient, or the submitter's manager
func (s *notificationServiceImpl) recipientOf(ctx context.Context, evt *event.Event) (string, error) {
	if id := evt.GetPayloadString(event.KeyRecipientUserID); id != "" {
		return id, nil
	}
	if evt.Type != event.TypeTimesheetSubmitted {
		return "", nil
	}

	managerID, err := s.org.GetDirectManager(ctx, evt.ActorID)
	if err != nil {
		return "", fmt.Errorf("look up manager of %s: %w", evt.ActorID, err)
	}
	return managerID, nil
}

func buildMessage(evt *event.Event, actorName string) string {
	reason := evt.GetPayloadString(event.KeyReason)

	switch evt.Type {
	case event.TypeDelegationCreated:
		msg := fmt.Sprintf("%s delegated timesheet approval to you from %s to %s.",
			actorName, evt.GetPayloadString(event.KeyStartDate), evt.GetPayloadString(event.KeyEndDate))
		if reason != "" {
			msg += " Reason: " + reason
		}
		return msg
	case event.TypeDelegationRevoked:
		return fmt.Sprintf("%s revoked approval delegation #%d.", actorName, evt.SubjectID)
	case event.TypeTimesheetSubmitted:
		return fmt.Sprintf("%s submitted timesheet #%d for approval.", actorName, evt.SubjectID)
	case event.TypeTimesheetApproved:
		return fmt.Sprintf("Your timesheet #%d was approved by %s.", evt.SubjectID, actorName)
	case event.TypeTimesheetReturned:
		return fmt.Sprintf("Your timesheet #%d was returned by %s. Reason: %s", evt.SubjectID, actorName, reason)
	case event.TypeTimesheetUnlocked:
		return fmt.Sprintf("Your timesheet #%d was unlocked by %s for editing. Reason: %s", evt.SubjectID, actorName, reason)
	default:
		return fmt.Sprintf("Timesheet event %s on #%d.", evt.Type, evt.SubjectID)
	}
}
