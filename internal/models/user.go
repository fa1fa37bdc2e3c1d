package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleOwner    Role = "owner"
	RoleMechanic Role = "mechanic"
	RoleViewer   Role = "viewer"
)

// Permission actions checked by the API.
const (
	ActionViewDashboard = "view_dashboard"
	ActionUpdateMileage = "update_mileage"
	ActionMarkDone      = "mark_done"
	ActionManageTasks   = "manage_tasks"
	ActionScanInvoice   = "scan_invoice"
	ActionRunDiagnosis  = "run_diagnosis"
	ActionManageUsers   = "manage_users"
)

// User represents a user in the system
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	DisplayName  string             `bson:"display_name" json:"display_name"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`

	// Only the SHA-256 of the current refresh token is stored.
	RefreshTokenHash    string     `bson:"refresh_token_hash,omitempty" json:"-"`
	RefreshTokenExpires *time.Time `bson:"refresh_token_expires,omitempty" json:"-"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Role        Role   `json:"role" validate:"omitempty,user_role"`
}

// RefreshRequest trades a refresh token for a new token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Claims represents the identity carried by an access token
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleOwner, RoleMechanic, RoleViewer:
		return true
	default:
		return false
	}
}

// Can checks if the role grants a specific action
func (r Role) Can(action string) bool {
	switch r {
	case RoleOwner:
		return true
	case RoleMechanic:
		return action == ActionViewDashboard || action == ActionUpdateMileage ||
			action == ActionMarkDone || action == ActionScanInvoice
	case RoleViewer:
		return action == ActionViewDashboard
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	return u.Role.Can(action)
}
