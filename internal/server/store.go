package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ovpnadmin/internal/shared"
)

const (
	AuditSuccess = "success"
	AuditFail    = "fail"
)

var ErrUserNotFound = errors.New("user not found")

type UserRecord struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Store persists admin accounts and the audit trail. Client records are never
// stored; the PKI owns them.
type Store interface {
	// EnsureUser inserts the user unless one with that name exists.
	EnsureUser(ctx context.Context, username, passwordHash string) (created bool, err error)
	// GetUser returns ErrUserNotFound for unknown names.
	GetUser(ctx context.Context, username string) (*UserRecord, error)
	AddAudit(ctx context.Context, e shared.AuditEntry) (shared.AuditEntry, error)
	// ListAudit returns the newest entries first.
	ListAudit(ctx context.Context, limit int) ([]shared.AuditEntry, error)
	Ping(ctx context.Context) error
}

// MemoryStore is a Store for tests and for running without a database file.
type MemoryStore struct {
	mu sync.Mutex

	users map[string]*UserRecord
	audit []shared.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: map[string]*UserRecord{}}
}

func (s *MemoryStore) EnsureUser(_ context.Context, username, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return false, nil
	}
	s.users[username] = &UserRecord{Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	return true, nil
}

func (s *MemoryStore) GetUser(_ context.Context, username string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) AddAudit(_ context.Context, e shared.AuditEntry) (shared.AuditEntry, error) {
	e = stampAudit(e)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return e, nil
}

func (s *MemoryStore) ListAudit(_ context.Context, limit int) ([]shared.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shared.AuditEntry, len(s.audit))
	copy(out, s.audit)
	// Appends are chronological; reverse for newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func stampAudit(e shared.AuditEntry) shared.AuditEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	return e
}
