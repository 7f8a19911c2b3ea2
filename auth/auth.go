package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the identity core: passwords, tokens, API credentials, and
// roles, as described for the gateway's embedded C6 component.
type Service interface {
	Register(ctx context.Context, req CreateUserRequest) (*AuthResult, error)
	Login(ctx context.Context, email, password, userAgent, ip string) (*AuthResult, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken, userAgent, ip string) (*TokenPair, error)

	ValidateAccessToken(ctx context.Context, token string) (*Claims, error)
	ResolveAPICredential(ctx context.Context, secret string) (*User, error)

	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error

	CreateUser(ctx context.Context, req CreateUserRequest, role string) (*User, error)
	UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*User, error)

	CreateAPICredential(ctx context.Context, userID, label string, expiresAt *time.Time) (*APICredentialResponse, error)
	ListAPICredentials(ctx context.Context, userID string) ([]*APICredential, error)
	RevokeAPICredential(ctx context.Context, userID, credentialID string) error

	// EnsureBootstrapAdmin creates the configured admin account if the
	// store has no users at all, so a fresh deployment is never locked out.
	EnsureBootstrapAdmin(ctx context.Context, email, password, fullName string) error
}

type service struct {
	config       *Config
	store        UserStore
	blacklist    TokenBlacklist
	tokenService *TokenService
}

// NewService builds the identity core over a UserStore and TokenBlacklist.
func NewService(config *Config, store UserStore, blacklist TokenBlacklist) Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &service{
		config:    config,
		store:     store,
		blacklist: blacklist,
		tokenService: NewTokenService(
			config.JWTSecret,
			config.JWTAlgorithm,
			config.AccessExpiration,
			config.RefreshExpiration,
		),
	}
}

func (s *service) audit(ctx context.Context, action, userID string, success bool, message, ip, ua string) {
	if !s.config.AuditEnabled {
		return
	}
	_ = s.store.SaveAuditLog(ctx, &AuditLog{
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		UserID:       userID,
		Action:       action,
		Success:      success,
		ErrorMessage: message,
		IPAddress:    ip,
		UserAgent:    ua,
	})
}

func (s *service) issueTokenPair(ctx context.Context, user *User, userAgent, ip string) (*TokenPair, error) {
	pair, err := s.tokenService.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("issuing token pair: %w", err)
	}

	cred := &RefreshCredential{
		ID:              uuid.New().String(),
		UserID:          user.ID,
		TokenHash:       HashToken(pair.RefreshToken),
		IssuedAt:        time.Now(),
		ExpiresAt:       time.Now().Add(s.config.RefreshExpiration),
		ClientUserAgent: userAgent,
		ClientIP:        ip,
	}

	if err := s.store.SaveRefreshCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("saving refresh credential: %w", err)
	}
	return pair, nil
}

// Register creates a self-registered account when registration is enabled.
func (s *service) Register(ctx context.Context, req CreateUserRequest) (*AuthResult, error) {
	if !s.config.EnableRegistration {
		return nil, ErrRegistrationDisabled
	}
	user, err := s.CreateUser(ctx, req, s.config.DefaultRole)
	if err != nil {
		return nil, err
	}
	pair, err := s.issueTokenPair(ctx, user, "", "")
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
	}, nil
}

// Login authenticates by email and password and issues a fresh token pair.
func (s *service) Login(ctx context.Context, email, password, userAgent, ip string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		s.audit(ctx, "login_failed", "", false, "user not found", ip, userAgent)
		return nil, ErrInvalidCredentials
	}
	if user.Disabled {
		s.audit(ctx, "login_failed", user.ID, false, "account disabled", ip, userAgent)
		return nil, ErrAccountDisabled
	}
	if err := ValidatePassword(password, user.PasswordHash); err != nil {
		s.audit(ctx, "login_failed", user.ID, false, "invalid password", ip, userAgent)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokenPair(ctx, user, userAgent, ip)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "login", user.ID, true, "", ip, userAgent)

	return &AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
	}, nil
}

// Logout blacklists the presented access token until its natural expiry
// and revokes all of the user's refresh credentials.
func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokenService.ValidateToken(accessToken, TokenTypeAccess)
	if err != nil {
		return nil // nothing to do with an already-invalid token
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining > 0 {
		if err := s.blacklist.Blacklist(ctx, claims.ID, remaining); err != nil {
			return fmt.Errorf("blacklisting token: %w", err)
		}
	}

	_ = s.store.RevokeAllRefreshCredentials(ctx, claims.UserID)
	s.audit(ctx, "logout", claims.UserID, true, "", "", "")
	return nil
}

// Refresh validates the presented refresh token, rotates it (single-use:
// the presented credential is revoked, then a new one is issued; the two
// are separate store writes, not one transaction), and returns a fresh
// token pair.
func (s *service) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (*TokenPair, error) {
	claims, err := s.tokenService.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	hash := HashToken(refreshToken)
	cred, err := s.store.GetRefreshCredentialByHash(ctx, hash)
	if err != nil {
		return nil, ErrRefreshRevoked
	}
	if cred.Revoked || time.Now().After(cred.ExpiresAt) {
		return nil, ErrRefreshRevoked
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.Disabled {
		return nil, ErrAccountDisabled
	}

	if err := s.store.RevokeRefreshCredential(ctx, cred.ID); err != nil {
		return nil, fmt.Errorf("revoking used refresh credential: %w", err)
	}

	return s.issueTokenPair(ctx, user, userAgent, ip)
}

// ValidateAccessToken verifies signature, expiry, and blacklist status.
func (s *service) ValidateAccessToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokenService.ValidateToken(token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	blacklisted, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrBlacklistedToken
	}
	return claims, nil
}

// ResolveAPICredential validates a presented API credential secret against
// its stored hash, checks disabled/expiry state, and updates last-used.
// Lookup is by a deterministic digest of the secret (see HashToken) rather
// than bcrypt, since the store must find the one matching row by equality
// instead of iterating every credential to compare a salted hash.
func (s *service) ResolveAPICredential(ctx context.Context, secret string) (*User, error) {
	prefix := s.config.APICredentialPrefix
	if len(secret) < len(prefix) || secret[:len(prefix)] != prefix {
		return nil, ErrAPICredentialInvalid
	}

	cred, err := s.store.GetAPICredentialByHash(ctx, HashToken(secret))
	if err != nil {
		return nil, ErrAPICredentialInvalid
	}
	if cred.Disabled {
		return nil, ErrAPICredentialInvalid
	}
	if cred.ExpiresAt != nil && time.Now().After(*cred.ExpiresAt) {
		return nil, ErrAPICredentialInvalid
	}

	_ = s.store.TouchAPICredential(ctx, cred.ID)

	user, err := s.store.GetUser(ctx, cred.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.Disabled {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// ChangePassword revokes all refresh credentials on success, per spec.md's
// lifecycle rule that a password change invalidates outstanding sessions.
func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := ValidatePassword(currentPassword, user.PasswordHash); err != nil {
		s.audit(ctx, "change_password_failed", userID, false, "invalid current password", "", "")
		return ErrInvalidCredentials
	}
	if err := CheckPasswordStrength(newPassword); err != nil {
		return err
	}
	hashed, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = hashed
	user.UpdatedAt = time.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	_ = s.store.RevokeAllRefreshCredentials(ctx, userID)
	s.audit(ctx, "change_password", userID, true, "", "", "")
	return nil
}

// CreateUser validates and persists a new account with the given role.
func (s *service) CreateUser(ctx context.Context, req CreateUserRequest, role string) (*User, error) {
	email := NormalizeEmail(req.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := CheckPasswordStrength(req.Password); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	if role == "" {
		role = s.config.DefaultRole
	}
	if req.Role != "" {
		role = req.Role
	}

	now := time.Now()
	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		DisplayName:  req.DisplayName,
		Organization: req.Organization,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	s.audit(ctx, "create_user", user.ID, true, "", "", "")
	return user, nil
}

// UpdateUser applies a partial update. Role changes are only meaningful
// when issued by an admin caller; callers enforce that at the handler layer.
func (s *service) UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Organization != nil {
		user.Organization = *req.Organization
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Disabled != nil {
		user.Disabled = *req.Disabled
		if user.Disabled {
			_ = s.store.RevokeAllRefreshCredentials(ctx, userID)
		}
	}
	user.UpdatedAt = time.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	s.audit(ctx, "update_user", userID, true, "", "", "")
	return user, nil
}

func (s *service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.store.GetUserByEmail(ctx, NormalizeEmail(email))
}

func (s *service) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	return s.store.ListUsers(ctx, limit, offset)
}

// CreateAPICredential issues a new bearer secret; the plaintext is
// returned only this once and never again.
func (s *service) CreateAPICredential(ctx context.Context, userID, label string, expiresAt *time.Time) (*APICredentialResponse, error) {
	secret, err := GenerateAPICredentialSecret(s.config.APICredentialPrefix)
	if err != nil {
		return nil, fmt.Errorf("generating credential secret: %w", err)
	}

	cred := &APICredential{
		ID:         uuid.New().String(),
		UserID:     userID,
		Prefix:     s.config.APICredentialPrefix,
		SecretHash: HashToken(secret),
		Label:      label,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateAPICredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("creating api credential: %w", err)
	}

	return &APICredentialResponse{
		ID:        cred.ID,
		Label:     cred.Label,
		Secret:    secret,
		ExpiresAt: cred.ExpiresAt,
		CreatedAt: cred.CreatedAt,
	}, nil
}

func (s *service) ListAPICredentials(ctx context.Context, userID string) ([]*APICredential, error) {
	return s.store.ListAPICredentials(ctx, userID)
}

func (s *service) RevokeAPICredential(ctx context.Context, userID, credentialID string) error {
	creds, err := s.store.ListAPICredentials(ctx, userID)
	if err != nil {
		return err
	}
	for _, c := range creds {
		if c.ID == credentialID {
			return s.store.RevokeAPICredential(ctx, credentialID)
		}
	}
	return ErrUserNotFound
}

// EnsureBootstrapAdmin creates the configured admin account exactly once,
// on first boot against an empty user store.
func (s *service) EnsureBootstrapAdmin(ctx context.Context, email, password, fullName string) error {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = s.CreateUser(ctx, CreateUserRequest{
		Email:       email,
		Password:    password,
		DisplayName: fullName,
		Role:        RoleAdmin,
	}, RoleAdmin)
	return err
}
