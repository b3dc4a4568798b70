package entity

import "time"

// User is the directory view of a person
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	OpenID      string    `json:"open_id,omitempty"` // Lark open_id for notifications
	Role        Role      `json:"role"`
	IsActive    bool      `json:"is_active"`
	ManagerID   string    `json:"manager_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
