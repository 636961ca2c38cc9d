package credential

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store used by unit tests.
//
// All mutations run under one mutex, so the conditional-update semantics
// match the Postgres implementation: RotateTokens compares and swaps in a
// single critical section.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*Record
	byEmail map[string]string // email_norm -> id
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Record),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	email := strings.TrimSpace(in.Email)
	if email == "" || strings.TrimSpace(in.PasswordHash) == "" {
		return Record{}, ErrInvalidInput
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	norm := NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[norm]; exists {
		return Record{}, ErrDuplicateEmail
	}

	rec := Record{
		ID:           ulid.Make().String(),
		Email:        email,
		EmailNorm:    norm,
		PasswordHash: in.PasswordHash,
		Status:       StatusOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	cp := rec
	s.byID[rec.ID] = &cp
	s.byEmail[norm] = rec.ID
	return rec, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	norm := NormalizeEmail(email)
	if norm == "" {
		return Record{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[norm]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(s.byID[id]), nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Record{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) SetTokens(ctx context.Context, id, access, refresh string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" || access == "" || refresh == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	a, r := access, refresh
	rec.AccessToken = &a
	rec.RefreshToken = &r
	rec.IsLoggedOut = false
	rec.Status = StatusOnline
	rec.UpdatedAt = now
	return nil
}

func (s *MemoryStore) RotateTokens(ctx context.Context, id, oldRefresh, newAccess, newRefresh string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" || oldRefresh == "" || newAccess == "" || newRefresh == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if rec.IsLoggedOut || rec.RefreshToken == nil || *rec.RefreshToken != oldRefresh {
		return ErrTokenMismatch
	}
	a, r := newAccess, newRefresh
	rec.AccessToken = &a
	rec.RefreshToken = &r
	rec.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Revoke(ctx context.Context, id string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.IsLoggedOut = true
	rec.AccessToken = nil
	rec.RefreshToken = nil
	rec.Status = StatusOffline
	rec.UpdatedAt = now
	return nil
}

func cloneRecord(rec *Record) Record {
	out := *rec
	if rec.AccessToken != nil {
		v := *rec.AccessToken
		out.AccessToken = &v
	}
	if rec.RefreshToken != nil {
		v := *rec.RefreshToken
		out.RefreshToken = &v
	}
	return out
}
