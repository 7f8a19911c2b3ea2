package auth

import "time"

// Standard roles. RBAC in this system is two-valued: a user can do
// anything scoped to their own resources, an admin can do everything.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account in the identity store.
type User struct {
	ID          string // opaque user handle, generated at creation
	Email       string // unique, compared case-insensitively
	PasswordHash string
	DisplayName string
	Organization string
	Role         string // RoleUser or RoleAdmin
	Disabled     bool
	EmailVerified bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserResponse is the client-facing projection of User with the password
// hash removed.
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name,omitempty"`
	Organization  string    `json:"organization,omitempty"`
	Role          string    `json:"role"`
	Disabled      bool      `json:"disabled"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToResponse converts a User to its client-facing projection.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Organization:  u.Organization,
		Role:          u.Role,
		Disabled:      u.Disabled,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// CreateUserRequest is the payload for self-registration and admin-driven
// user creation.
type CreateUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	DisplayName  string `json:"display_name,omitempty"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
}

// UpdateUserRequest is the payload for self-update and admin-driven update.
// Nil fields are left unchanged.
type UpdateUserRequest struct {
	DisplayName  *string `json:"display_name,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Role         *string `json:"role,omitempty"`
	Disabled     *bool   `json:"disabled,omitempty"`
}

// RefreshCredential is the server-side record backing an issued refresh
// token. Only the hash is ever stored; lookup is by hash.
type RefreshCredential struct {
	ID              string
	UserID          string
	TokenHash       string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	Revoked         bool
	ClientUserAgent string
	ClientIP        string
}

// APICredential is a long-lived, user-issued bearer credential presentable
// in place of an access token.
type APICredential struct {
	ID         string
	UserID     string
	Prefix     string // fixed prefix, e.g. "sk_"
	SecretHash string // SHA-256 digest (HashToken) of the full bearer string
	Label      string
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	Disabled   bool
	CreatedAt  time.Time
}

// APICredentialResponse is returned on creation; Secret is populated only
// at creation time and never again.
type APICredentialResponse struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Secret    string     `json:"secret,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// AuditLog records one identity-affecting action for observability.
type AuditLog struct {
	ID           string
	Timestamp    time.Time
	UserID       string
	Action       string // login, login_failed, logout, change_password, change_password_failed, create_user, update_user
	Success      bool
	ErrorMessage string
	IPAddress    string
	UserAgent    string
}

// AuthResult is the outcome of a successful login or registration.
type AuthResult struct {
	User         *User     `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"-"`
}

// TokenPair is an access/refresh pair returned by refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"-"`
}
