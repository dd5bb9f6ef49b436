package dto

import "time"

// LoginRequest is the credentials payload.
type LoginRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// RegisterUserRequest creates a user in the caller's tenant.
type RegisterUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName"`
}

// RoleAssignmentRequest binds a role to a user.
type RoleAssignmentRequest struct {
	RoleID string `json:"roleId" binding:"required,uuid"`
}
