package credential

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store over PostgreSQL (<schema>.users).
//
// The pgx pool is owned by the caller; this store must not close it.
// Every mutation is a single UPDATE/INSERT so the row can never hold a
// half-written token pair, and conditional updates rely on RowsAffected to
// detect a lost race instead of read-then-write.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema holding the users table (default "chat").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("credential: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "chat"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("credential: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) users() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

const recordColumns = `id, email, email_norm, password_hash, access_token, refresh_token, is_logged_out, status, created_at, updated_at`

// Create inserts a new user row with no issued tokens.
func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Record, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || strings.TrimSpace(in.PasswordHash) == "" {
		return Record{}, ErrInvalidInput
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec := Record{
		ID:           ulid.Make().String(),
		Email:        email,
		EmailNorm:    NormalizeEmail(email),
		PasswordHash: in.PasswordHash,
		IsLoggedOut:  false,
		Status:       StatusOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.users()+` (
			id, email, email_norm, password_hash,
			access_token, refresh_token, is_logged_out, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULL, NULL, false, $5, $6, $6)
	`, rec.ID, rec.Email, rec.EmailNorm, rec.PasswordHash, string(rec.Status), now)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, ErrDuplicateEmail
		}
		return Record{}, err
	}

	return rec, nil
}

// FindByEmail loads a row by normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Record, error) {
	norm := NormalizeEmail(email)
	if norm == "" {
		return Record{}, ErrInvalidInput
	}
	return s.queryOne(ctx, `
		SELECT `+recordColumns+`
		  FROM `+s.users()+`
		 WHERE email_norm = $1
	`, norm)
}

// GetByID loads a row by identity.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return Record{}, ErrInvalidInput
	}
	return s.queryOne(ctx, `
		SELECT `+recordColumns+`
		  FROM `+s.users()+`
		 WHERE id = $1
	`, id)
}

// SetTokens unconditionally installs a fresh pair for the identity.
func (s *PostgresStore) SetTokens(ctx context.Context, id, access, refresh string, now time.Time) error {
	if strings.TrimSpace(id) == "" || access == "" || refresh == "" {
		return ErrInvalidInput
	}

	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		   SET access_token = $2,
		       refresh_token = $3,
		       is_logged_out = false,
		       status = 'online',
		       updated_at = $4
		 WHERE id = $1
	`, id, access, refresh, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateTokens is the refresh-path conditional update. The WHERE clause is
// the whole concurrency story: with two racers presenting the same refresh
// token, the first UPDATE moves the stored value, so the second matches zero
// rows and reports ErrTokenMismatch.
func (s *PostgresStore) RotateTokens(ctx context.Context, id, oldRefresh, newAccess, newRefresh string, now time.Time) error {
	if strings.TrimSpace(id) == "" || oldRefresh == "" || newAccess == "" || newRefresh == "" {
		return ErrInvalidInput
	}

	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		   SET access_token = $3,
		       refresh_token = $4,
		       updated_at = $5
		 WHERE id = $1
		   AND refresh_token = $2
		   AND is_logged_out = false
	`, id, oldRefresh, newAccess, newRefresh, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrTokenMismatch
	}
	return nil
}

// Revoke marks the identity logged out and clears the stored pair.
// Re-revoking an already revoked row is a successful no-op.
func (s *PostgresStore) Revoke(ctx context.Context, id string, now time.Time) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}

	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		   SET is_logged_out = true,
		       access_token = NULL,
		       refresh_token = NULL,
		       status = 'offline',
		       updated_at = $2
		 WHERE id = $1
	`, id, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryOne(ctx context.Context, sql string, args ...any) (Record, error) {
	var (
		rec    Record
		status string
	)
	err := s.pool.QueryRow(ctx, sql, args...).Scan(
		&rec.ID,
		&rec.Email,
		&rec.EmailNorm,
		&rec.PasswordHash,
		&rec.AccessToken,
		&rec.RefreshToken,
		&rec.IsLoggedOut,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
