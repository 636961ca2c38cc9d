package session

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCookiePolicy_SecureOnlyInProduction(t *testing.T) {
	for _, env := range []string{"development", "staging", "test", ""} {
		attrs := CookiePolicy(env)
		assert.False(t, attrs.Secure, "environment %q must not force Secure", env)
		assert.True(t, attrs.HTTPOnly)
		assert.Equal(t, http.SameSiteLaxMode, attrs.SameSite)
	}

	attrs := CookiePolicy("production")
	assert.True(t, attrs.Secure)
	assert.True(t, attrs.HTTPOnly)
	assert.Equal(t, http.SameSiteLaxMode, attrs.SameSite)
}

func TestNewRefreshCookie(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour).UTC()
	cookie := NewRefreshCookie(CookiePolicy("production"), "tok-value", exp)

	assert.Equal(t, RefreshCookieName, cookie.Name)
	assert.Equal(t, "tok-value", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, exp, cookie.Expires)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestExpiredRefreshCookie_Clears(t *testing.T) {
	cookie := ExpiredRefreshCookie(CookiePolicy("development"))

	assert.Equal(t, RefreshCookieName, cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.False(t, cookie.Expires.After(time.Unix(0, 0).UTC()))
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
}
