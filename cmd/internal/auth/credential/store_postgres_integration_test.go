package credential

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require CHATAUTH_DATABASE_URL.

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("CHATAUTH_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: CHATAUTH_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse CHATAUTH_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		t.Skipf("integration test skipped: Postgres unreachable: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	schema := "chatauth_it_" + hex.EncodeToString(b[:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = pool.Exec(dropCtx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	users := pgx.Identifier{schema, "users"}.Sanitize()
	ddl := fmt.Sprintf(`
CREATE TABLE %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  access_token TEXT NULL,
  refresh_token TEXT NULL,
  is_logged_out BOOLEAN NOT NULL DEFAULT false,
  status TEXT NOT NULL DEFAULT 'offline',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_users_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_users_email_norm UNIQUE (email_norm),
  CONSTRAINT chk_users_status CHECK (status IN ('online', 'offline'))
)`, users)

	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	return schema
}

func mustNewStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()
	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return s
}

func TestPostgresStore_CreateConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	s := mustNewStore(t, pool, mustCreateTestSchema(t, pool))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.Create(ctx, CreateInput{Email: "Someone@Example.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = s.Create(ctx, CreateInput{Email: "sOMEONE@example.COM", PasswordHash: "h"})
	if err != ErrDuplicateEmail {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
}

func TestPostgresStore_RotateTokens_Conditional(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	s := mustNewStore(t, pool, mustCreateTestSchema(t, pool))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	now := time.Now().UTC()

	rec, err := s.Create(ctx, CreateInput{Email: "rotate@example.com", PasswordHash: "h", Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetTokens(ctx, rec.ID, "acc1", "ref1", now); err != nil {
		t.Fatalf("set tokens: %v", err)
	}

	if err := s.RotateTokens(ctx, rec.ID, "ref1", "acc2", "ref2", now); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := s.RotateTokens(ctx, rec.ID, "ref1", "acc3", "ref3", now); err != ErrTokenMismatch {
		t.Fatalf("superseded token must mismatch, got %v", err)
	}

	got, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RefreshToken == nil || *got.RefreshToken != "ref2" {
		t.Fatalf("stored refresh = %v, want ref2", got.RefreshToken)
	}
}

func TestPostgresStore_RotateTokens_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	s := mustNewStore(t, pool, mustCreateTestSchema(t, pool))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	now := time.Now().UTC()

	rec, err := s.Create(ctx, CreateInput{Email: "race@example.com", PasswordHash: "h", Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetTokens(ctx, rec.ID, "acc0", "ref0", now); err != nil {
		t.Fatalf("set tokens: %v", err)
	}

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.RotateTokens(ctx, rec.ID, "ref0",
				fmt.Sprintf("acc-%d", i), fmt.Sprintf("ref-%d", i), now)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch err {
		case nil:
			wins++
		case ErrTokenMismatch:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one rotation must win, got %d", wins)
	}
}

func TestPostgresStore_Revoke_Idempotent(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	s := mustNewStore(t, pool, mustCreateTestSchema(t, pool))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	now := time.Now().UTC()

	rec, err := s.Create(ctx, CreateInput{Email: "bye@example.com", PasswordHash: "h", Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetTokens(ctx, rec.ID, "acc", "ref", now); err != nil {
		t.Fatalf("set tokens: %v", err)
	}

	if err := s.Revoke(ctx, rec.ID, now); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := s.Revoke(ctx, rec.ID, now); err != nil {
		t.Fatalf("second revoke must be a no-op success: %v", err)
	}

	got, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsLoggedOut || got.AccessToken != nil || got.RefreshToken != nil {
		t.Fatalf("revoked row still carries tokens: %+v", got)
	}
}
