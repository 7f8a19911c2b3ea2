package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryUserStore is an in-process UserStore used by unit tests and local
// development runs without a database, grounded on the teacher's plain
// struct-based test doubles (queue.MockAMQPConnection, storage.MockS3Client).
type MemoryUserStore struct {
	mu sync.Mutex

	users              map[string]*User
	emailIndex         map[string]string // normalized email -> user id
	refreshByHash      map[string]*RefreshCredential
	apiCredsByHash     map[string]*APICredential
	apiCredsByUser     map[string][]string
	auditLogs          []*AuditLog
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:          make(map[string]*User),
		emailIndex:     make(map[string]string),
		refreshByHash:  make(map[string]*RefreshCredential),
		apiCredsByHash: make(map[string]*APICredential),
		apiCredsByUser: make(map[string][]string),
	}
}

func (s *MemoryUserStore) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := NormalizeEmail(u.Email)
	if _, exists := s.emailIndex[email]; exists {
		return ErrUserExists
	}
	cp := *u
	s.users[u.ID] = &cp
	s.emailIndex[email] = u.ID
	return nil
}

func (s *MemoryUserStore) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emailIndex[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemoryUserStore) UpdateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.emailIndex, NormalizeEmail(existing.Email))
	cp := *u
	s.users[u.ID] = &cp
	s.emailIndex[NormalizeEmail(u.Email)] = u.ID
	return nil
}

func (s *MemoryUserStore) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*User
	for _, u := range s.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryUserStore) CountUsers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *MemoryUserStore) SaveRefreshCredential(ctx context.Context, cred *RefreshCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cred
	s.refreshByHash[cred.TokenHash] = &cp
	return nil
}

func (s *MemoryUserStore) GetRefreshCredentialByHash(ctx context.Context, hash string) (*RefreshCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.refreshByHash[hash]
	if !ok {
		return nil, ErrRefreshRevoked
	}
	cp := *cred
	return &cp, nil
}

func (s *MemoryUserStore) RevokeRefreshCredential(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.refreshByHash {
		if cred.ID == id {
			cred.Revoked = true
		}
	}
	return nil
}

func (s *MemoryUserStore) RevokeAllRefreshCredentials(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.refreshByHash {
		if cred.UserID == userID {
			cred.Revoked = true
		}
	}
	return nil
}

func (s *MemoryUserStore) CreateAPICredential(ctx context.Context, cred *APICredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cred
	s.apiCredsByHash[cred.SecretHash] = &cp
	s.apiCredsByUser[cred.UserID] = append(s.apiCredsByUser[cred.UserID], cred.ID)
	return nil
}

func (s *MemoryUserStore) GetAPICredentialByHash(ctx context.Context, secretHash string) (*APICredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.apiCredsByHash[secretHash]
	if !ok {
		return nil, ErrAPICredentialInvalid
	}
	cp := *cred
	return &cp, nil
}

func (s *MemoryUserStore) ListAPICredentials(ctx context.Context, userID string) ([]*APICredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var creds []*APICredential
	for _, id := range s.apiCredsByUser[userID] {
		for _, cred := range s.apiCredsByHash {
			if cred.ID == id {
				cp := *cred
				creds = append(creds, &cp)
			}
		}
	}
	return creds, nil
}

func (s *MemoryUserStore) RevokeAPICredential(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.apiCredsByHash {
		if cred.ID == id {
			cred.Disabled = true
		}
	}
	return nil
}

func (s *MemoryUserStore) TouchAPICredential(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, cred := range s.apiCredsByHash {
		if cred.ID == id {
			cred.LastUsedAt = &now
		}
	}
	return nil
}

func (s *MemoryUserStore) SaveAuditLog(ctx context.Context, entry *AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.auditLogs = append(s.auditLogs, &cp)
	return nil
}

// AuditLogs returns every saved entry, for test assertions.
func (s *MemoryUserStore) AuditLogs() []*AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AuditLog, len(s.auditLogs))
	copy(out, s.auditLogs)
	return out
}

// MemoryTokenBlacklist is an in-process TokenBlacklist for tests and
// single-process deployments.
type MemoryTokenBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryTokenBlacklist() *MemoryTokenBlacklist {
	return &MemoryTokenBlacklist{entries: make(map[string]time.Time)}
}

func (b *MemoryTokenBlacklist) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[jti] = time.Now().Add(ttl)
	return nil
}

func (b *MemoryTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	expiresAt, ok := b.entries[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(b.entries, jti)
		return false, nil
	}
	return true, nil
}
