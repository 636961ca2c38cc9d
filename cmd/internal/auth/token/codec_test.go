package token

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("test-secret-at-least-32-bytes-long!!", "chatauth", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestCodec_EncodeDecode(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC().Truncate(time.Second)

	raw, exp, err := c.Encode("01HZZZZZZZZZZZZZZZZZZZZZZZ", "user@example.com", KindAccess, now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !exp.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("exp = %v, want now+15m", exp)
	}

	claims, err := c.Decode(raw, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.UserID != "01HZZZZZZZZZZZZZZZZZZZZZZZ" {
		t.Fatalf("UserID = %q", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("Email = %q", claims.Email)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("Kind = %q", claims.Kind)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Fatalf("IssuedAt = %v, want %v", claims.IssuedAt, now)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Fatal("expiry must be after issuance")
	}
}

func TestCodec_RefreshOutlivesAccess(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC()

	_, accessExp, err := c.Encode("u1", "", KindAccess, now)
	if err != nil {
		t.Fatalf("Encode access: %v", err)
	}
	_, refreshExp, err := c.Encode("u1", "", KindRefresh, now)
	if err != nil {
		t.Fatalf("Encode refresh: %v", err)
	}
	if !accessExp.Before(refreshExp) {
		t.Fatalf("access exp %v must be before refresh exp %v", accessExp, refreshExp)
	}
}

func TestCodec_RejectsForgedSignature(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec("a-completely-different-signing-key!!!", "chatauth", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	now := time.Now().UTC()
	raw, _, err := other.Encode("u1", "", KindAccess, now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := c.Decode(raw, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestCodec_RejectsExpired(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC()

	raw, _, err := c.Encode("u1", "", KindAccess, now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = c.Decode(raw, now.Add(16*time.Minute))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
	// Expiry still collapses into the coarse invalid-token category.
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatal("ErrTokenExpired must match ErrInvalidToken")
	}
}

func TestCodec_RejectsWrongIssuer(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec("test-secret-at-least-32-bytes-long!!", "someone-else", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	now := time.Now().UTC()
	raw, _, err := other.Encode("u1", "", KindAccess, now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := c.Decode(raw, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestCodec_RejectsGarbage(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC()

	for _, raw := range []string{"", "   ", "not.a.jwt", "aaaa.bbbb", string(make([]byte, 5000))} {
		if _, err := c.Decode(raw, now); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Decode(%q): want ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestNewCodec_Validation(t *testing.T) {
	if _, err := NewCodec("", "chatauth", time.Minute, time.Hour); err == nil {
		t.Fatal("empty secret must be rejected")
	}
	if _, err := NewCodec("secret", "chatauth", 0, time.Hour); err == nil {
		t.Fatal("zero access ttl must be rejected")
	}
}
