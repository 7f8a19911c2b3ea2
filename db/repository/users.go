package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/scholaris/core/auth"
	"github.com/scholaris/core/db"
)

// PostgresUserStore implements auth.UserStore using pgx. Email uniqueness
// is enforced by a unique index on lower(email); NormalizeEmail is applied
// before every lookup and write so the index and the Go-level comparison
// agree.
type PostgresUserStore struct {
	db *db.PostgresDB
}

func NewPostgresUserStore(pg *db.PostgresDB) *PostgresUserStore {
	return &PostgresUserStore{db: pg}
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, u *auth.User) error {
	return s.db.Exec(ctx, `
		INSERT INTO users
			(id, email, password_hash, display_name, organization, role,
			 disabled, email_verified, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, u.ID, auth.NormalizeEmail(u.Email), u.PasswordHash, u.DisplayName,
		u.Organization, u.Role, u.Disabled, u.EmailVerified, u.CreatedAt, u.UpdatedAt)
}

func (s *PostgresUserStore) GetUser(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, organization, role,
		       disabled, email_verified, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, organization, role,
		       disabled, email_verified, created_at, updated_at
		FROM users WHERE email = $1
	`, auth.NormalizeEmail(email))
	return scanUser(row)
}

func (s *PostgresUserStore) UpdateUser(ctx context.Context, u *auth.User) error {
	return s.db.Exec(ctx, `
		UPDATE users SET
			password_hash = $1, display_name = $2, organization = $3, role = $4,
			disabled = $5, email_verified = $6, updated_at = $7
		WHERE id = $8
	`, u.PasswordHash, u.DisplayName, u.Organization, u.Role, u.Disabled,
		u.EmailVerified, u.UpdatedAt, u.ID)
}

func (s *PostgresUserStore) ListUsers(ctx context.Context, limit, offset int) ([]*auth.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, email, password_hash, display_name, organization, role,
		       disabled, email_verified, created_at, updated_at
		FROM users ORDER BY created_at ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresUserStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanUser(row scannable) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.Organization, &u.Role, &u.Disabled, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresUserStore) SaveRefreshCredential(ctx context.Context, cred *auth.RefreshCredential) error {
	return s.db.Exec(ctx, `
		INSERT INTO refresh_credentials
			(id, user_id, token_hash, issued_at, expires_at, revoked, client_user_agent, client_ip)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, cred.ID, cred.UserID, cred.TokenHash, cred.IssuedAt, cred.ExpiresAt,
		cred.Revoked, cred.ClientUserAgent, cred.ClientIP)
}

func (s *PostgresUserStore) GetRefreshCredentialByHash(ctx context.Context, hash string) (*auth.RefreshCredential, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, issued_at, expires_at, revoked, client_user_agent, client_ip
		FROM refresh_credentials WHERE token_hash = $1
	`, hash)
	var cred auth.RefreshCredential
	err := row.Scan(&cred.ID, &cred.UserID, &cred.TokenHash, &cred.IssuedAt,
		&cred.ExpiresAt, &cred.Revoked, &cred.ClientUserAgent, &cred.ClientIP)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrRefreshRevoked
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *PostgresUserStore) RevokeRefreshCredential(ctx context.Context, id string) error {
	return s.db.Exec(ctx, `UPDATE refresh_credentials SET revoked = true WHERE id = $1`, id)
}

func (s *PostgresUserStore) RevokeAllRefreshCredentials(ctx context.Context, userID string) error {
	return s.db.Exec(ctx, `UPDATE refresh_credentials SET revoked = true WHERE user_id = $1`, userID)
}

func (s *PostgresUserStore) CreateAPICredential(ctx context.Context, cred *auth.APICredential) error {
	return s.db.Exec(ctx, `
		INSERT INTO api_credentials
			(id, user_id, prefix, secret_hash, label, expires_at, disabled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, cred.ID, cred.UserID, cred.Prefix, cred.SecretHash, cred.Label,
		cred.ExpiresAt, cred.Disabled, cred.CreatedAt)
}

func (s *PostgresUserStore) GetAPICredentialByHash(ctx context.Context, secretHash string) (*auth.APICredential, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, prefix, secret_hash, label, expires_at, last_used_at, disabled, created_at
		FROM api_credentials WHERE secret_hash = $1
	`, secretHash)
	var cred auth.APICredential
	err := row.Scan(&cred.ID, &cred.UserID, &cred.Prefix, &cred.SecretHash,
		&cred.Label, &cred.ExpiresAt, &cred.LastUsedAt, &cred.Disabled, &cred.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrAPICredentialInvalid
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *PostgresUserStore) ListAPICredentials(ctx context.Context, userID string) ([]*auth.APICredential, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, prefix, secret_hash, label, expires_at, last_used_at, disabled, created_at
		FROM api_credentials WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*auth.APICredential
	for rows.Next() {
		var cred auth.APICredential
		if err := rows.Scan(&cred.ID, &cred.UserID, &cred.Prefix, &cred.SecretHash,
			&cred.Label, &cred.ExpiresAt, &cred.LastUsedAt, &cred.Disabled, &cred.CreatedAt); err != nil {
			return nil, err
		}
		creds = append(creds, &cred)
	}
	return creds, rows.Err()
}

func (s *PostgresUserStore) RevokeAPICredential(ctx context.Context, id string) error {
	return s.db.Exec(ctx, `UPDATE api_credentials SET disabled = true WHERE id = $1`, id)
}

func (s *PostgresUserStore) TouchAPICredential(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.Exec(ctx, `UPDATE api_credentials SET last_used_at = $1 WHERE id = $2`, now, id)
}

func (s *PostgresUserStore) SaveAuditLog(ctx context.Context, entry *auth.AuditLog) error {
	return s.db.Exec(ctx, `
		INSERT INTO audit_logs (id, timestamp, user_id, action, success, error_message, ip_address, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Timestamp, entry.UserID, entry.Action, entry.Success,
		entry.ErrorMessage, entry.IPAddress, entry.UserAgent)
}
