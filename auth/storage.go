package auth

import (
	"context"
	"time"
)

// UserStore defines the persistence contract the identity core depends on.
// db/repository provides the pgx-backed implementation; unit tests
// substitute an in-memory fake.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context, limit, offset int) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)

	SaveRefreshCredential(ctx context.Context, cred *RefreshCredential) error
	GetRefreshCredentialByHash(ctx context.Context, hash string) (*RefreshCredential, error)
	RevokeRefreshCredential(ctx context.Context, id string) error
	RevokeAllRefreshCredentials(ctx context.Context, userID string) error

	CreateAPICredential(ctx context.Context, cred *APICredential) error
	GetAPICredentialByHash(ctx context.Context, secretHash string) (*APICredential, error)
	ListAPICredentials(ctx context.Context, userID string) ([]*APICredential, error)
	RevokeAPICredential(ctx context.Context, id string) error
	TouchAPICredential(ctx context.Context, id string) error

	SaveAuditLog(ctx context.Context, entry *AuditLog) error
}

// TokenBlacklist tracks logged-out access tokens until their natural
// expiry, and is consulted on every authenticated request. It is backed
// by a shared key-value store (Redis) so that all gateway replicas
// observe the same blacklist.
type TokenBlacklist interface {
	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
