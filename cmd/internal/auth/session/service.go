// Package session implements the token lifecycle: issuing, rotating and
// revoking access/refresh pairs with one active pair per identity.
//
// Tokens are self-contained signed artifacts, yet stay server-revocable
// because every check cross-references the pair currently stored in the
// credential row. Rotation rides on a conditional single-row update, so a
// replayed refresh token loses even when two attempts race.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatauth/cmd/internal/auth/credential"
	"chatauth/cmd/internal/auth/token"
	"chatauth/cmd/security/password"
)

// Issued is the result of issuing or rotating a token pair.
type Issued struct {
	UserID       string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Service carries the lifecycle state machine for all identities.
type Service struct {
	log   *slog.Logger
	store credential.Store
	codec *token.Codec

	hashParams password.Params

	// dummyHash keeps login latency flat for unknown identities.
	dummyHash string

	now func() time.Time
}

// ServiceOption configures optional Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the service clock (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service over the given store and codec.
func NewService(log *slog.Logger, store credential.Store, codec *token.Codec, opts ...ServiceOption) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	if codec == nil {
		return nil, errors.New("session: nil codec")
	}

	s := &Service{
		log:        log,
		store:      store,
		codec:      codec,
		hashParams: password.DefaultParams(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if hash, err := password.Hash("dummy-password-for-timing-only", s.hashParams); err == nil {
		s.dummyHash = hash
	}

	return s, nil
}

// Register creates a credential row for a new user.
func (s *Service) Register(ctx context.Context, email, plaintext string) (credential.Record, error) {
	email = strings.TrimSpace(email)
	if email == "" || len(plaintext) < 8 {
		return credential.Record{}, ErrInvalidCredentials
	}

	hash, err := password.Hash(plaintext, s.hashParams)
	if err != nil {
		return credential.Record{}, err
	}

	rec, err := s.store.Create(ctx, credential.CreateInput{
		Email:        email,
		PasswordHash: hash,
		Now:          s.now(),
	})
	if err != nil {
		if errors.Is(err, credential.ErrDuplicateEmail) {
			return credential.Record{}, ErrDuplicateEmail
		}
		return credential.Record{}, storeErr(err)
	}
	return rec, nil
}

// Login verifies the password for email and issues a fresh pair.
//
// Unknown identity and wrong password both return ErrInvalidCredentials;
// the unknown-identity path still burns one hash verification so response
// timing does not reveal which case occurred.
func (s *Service) Login(ctx context.Context, email, plaintext string) (Issued, error) {
	rec, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) || errors.Is(err, credential.ErrInvalidInput) {
			if s.dummyHash != "" {
				_, _ = password.Verify(s.dummyHash, plaintext)
			}
			loginsTotal.WithLabelValues("rejected").Inc()
			return Issued{}, ErrInvalidCredentials
		}
		return Issued{}, storeErr(err)
	}

	ok, err := password.Verify(rec.PasswordHash, plaintext)
	if err != nil || !ok {
		// A malformed stored hash fails closed and is logged, never surfaced.
		if err != nil {
			s.log.Error("auth.login.hash_invalid", "user_id", rec.ID)
		}
		loginsTotal.WithLabelValues("rejected").Inc()
		return Issued{}, ErrInvalidCredentials
	}

	issued, err := s.Issue(ctx, rec)
	if err != nil {
		return Issued{}, err
	}
	loginsTotal.WithLabelValues("ok").Inc()
	return issued, nil
}

// Issue generates a new pair for rec and installs it, overwriting (and so
// invalidating) any previously issued pair and clearing the logout flag.
func (s *Service) Issue(ctx context.Context, rec credential.Record) (Issued, error) {
	now := s.now()

	access, accessExp, err := s.codec.Encode(rec.ID, rec.Email, token.KindAccess, now)
	if err != nil {
		return Issued{}, err
	}
	refresh, refreshExp, err := s.codec.Encode(rec.ID, rec.Email, token.KindRefresh, now)
	if err != nil {
		return Issued{}, err
	}

	if err := s.store.SetTokens(ctx, rec.ID, access, refresh, now); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return Issued{}, ErrUnauthenticated
		}
		return Issued{}, storeErr(err)
	}

	return Issued{
		UserID:       rec.ID,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

// Refresh rotates the pair for the identity carried by presented.
//
// The presented token must decode, belong to a row that is not logged out,
// and textually equal the refresh token on record. The rotation itself is a
// conditional update keyed on the presented value: with two concurrent
// attempts exactly one wins, the other sees ErrUnauthenticated.
func (s *Service) Refresh(ctx context.Context, presented string) (Issued, error) {
	now := s.now()

	claims, err := s.codec.Decode(presented, now)
	if err != nil {
		s.reject("refresh", "", decodeReason(err))
		return Issued{}, ErrUnauthenticated
	}
	if claims.Kind != token.KindRefresh {
		s.reject("refresh", claims.UserID, "wrong_kind")
		return Issued{}, ErrUnauthenticated
	}

	rec, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			s.reject("refresh", claims.UserID, "unknown_identity")
			return Issued{}, ErrUnauthenticated
		}
		return Issued{}, storeErr(err)
	}

	if rec.IsLoggedOut {
		s.reject("refresh", rec.ID, "revoked")
		return Issued{}, ErrUnauthenticated
	}
	if rec.RefreshToken == nil || !tokensEqual(*rec.RefreshToken, presented) {
		// Replay of a superseded token: cryptographically valid, but the
		// stored value has moved on.
		s.reject("refresh", rec.ID, "superseded")
		return Issued{}, ErrUnauthenticated
	}

	access, accessExp, err := s.codec.Encode(rec.ID, rec.Email, token.KindAccess, now)
	if err != nil {
		return Issued{}, err
	}
	refresh, refreshExp, err := s.codec.Encode(rec.ID, rec.Email, token.KindRefresh, now)
	if err != nil {
		return Issued{}, err
	}

	if err := s.store.RotateTokens(ctx, rec.ID, presented, access, refresh, now); err != nil {
		switch {
		case errors.Is(err, credential.ErrTokenMismatch):
			// Lost the race against a concurrent rotation or a revocation.
			s.reject("refresh", rec.ID, "rotation_lost")
			return Issued{}, ErrUnauthenticated
		case errors.Is(err, credential.ErrNotFound):
			s.reject("refresh", rec.ID, "unknown_identity")
			return Issued{}, ErrUnauthenticated
		default:
			return Issued{}, storeErr(err)
		}
	}

	refreshesTotal.WithLabelValues("rotated").Inc()
	return Issued{
		UserID:       rec.ID,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

// ValidateAccess authenticates an arbitrary protected request. It returns
// the resolved identity only when the token decodes, matches the stored
// access token and the row is not logged out.
func (s *Service) ValidateAccess(ctx context.Context, presented string) (string, error) {
	now := s.now()

	claims, err := s.codec.Decode(presented, now)
	if err != nil {
		s.rejectGuard("", decodeReason(err))
		return "", ErrUnauthenticated
	}
	if claims.Kind != token.KindAccess {
		s.rejectGuard(claims.UserID, "wrong_kind")
		return "", ErrUnauthenticated
	}

	rec, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			s.rejectGuard(claims.UserID, "unknown_identity")
			return "", ErrUnauthenticated
		}
		return "", storeErr(err)
	}

	if rec.IsLoggedOut {
		s.rejectGuard(rec.ID, "revoked")
		return "", ErrUnauthenticated
	}
	if rec.AccessToken == nil || !tokensEqual(*rec.AccessToken, presented) {
		s.rejectGuard(rec.ID, "superseded")
		return "", ErrUnauthenticated
	}

	accessChecksTotal.WithLabelValues("ok").Inc()
	return rec.ID, nil
}

// Revoke invalidates the identity's session server-side. Revoking an
// already revoked identity is a successful no-op.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	if err := s.store.Revoke(ctx, userID, s.now()); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return ErrUnauthenticated
		}
		return storeErr(err)
	}
	revocationsTotal.Inc()
	return nil
}

// Logout resolves the identity from an access token and revokes it.
//
// Unlike ValidateAccess it does not require the token to match the stored
// value: logging out twice with the same token stays a success as long as
// the token itself decodes and the identity exists.
func (s *Service) Logout(ctx context.Context, presentedAccess string) error {
	claims, err := s.codec.Decode(presentedAccess, s.now())
	if err != nil {
		s.reject("logout", "", decodeReason(err))
		return ErrUnauthenticated
	}
	if claims.Kind != token.KindAccess {
		s.reject("logout", claims.UserID, "wrong_kind")
		return ErrUnauthenticated
	}
	return s.Revoke(ctx, claims.UserID)
}

func (s *Service) reject(op, userID, reason string) {
	if op == "refresh" {
		refreshesTotal.WithLabelValues("rejected").Inc()
	}
	s.log.Warn("auth."+op+".rejected", "user_id", userID, "reason", reason)
}

func (s *Service) rejectGuard(userID, reason string) {
	accessChecksTotal.WithLabelValues("rejected").Inc()
	s.log.Warn("auth.guard.rejected", "user_id", userID, "reason", reason)
}

// tokensEqual compares a presented token against the stored value without
// leaking a timing signal on the match position.
func tokensEqual(stored, presented string) bool {
	if len(stored) == 0 || len(stored) != len(presented) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

func decodeReason(err error) string {
	if errors.Is(err, token.ErrTokenExpired) {
		return "expired"
	}
	return "invalid_token"
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
