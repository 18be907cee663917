package domain

import (
	"time"

	"github.com/google/uuid"
)

// Marketplace roles. Identity is owned by the platform's account service;
// this service only mirrors what it needs to render conversations.
const (
	RoleCreator   = "creator"
	RoleBrand     = "brand"
	RoleAdmin     = "admin"
	RoleAssistant = "assistant"
)

type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}
