package session

import (
	"net/http"
	"time"
)

// RefreshCookieName is the cookie carrying the refresh token for web clients.
const RefreshCookieName = "chatauth_refresh_token"

// CookieAttributes are the security attributes the session policy decides
// from the runtime environment.
type CookieAttributes struct {
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Path     string
}

// CookiePolicy derives cookie attributes from the configured environment.
//
// Production requires Secure; everything else allows plain-HTTP development.
// HTTPOnly is unconditional: tokens are never exposed to script.
func CookiePolicy(environment string) CookieAttributes {
	return CookieAttributes{
		Secure:   environment == "production",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	}
}

// NewRefreshCookie builds the refresh token cookie under the given policy.
func NewRefreshCookie(attrs CookieAttributes, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     attrs.Path,
		Expires:  exp,
		HttpOnly: attrs.HTTPOnly,
		Secure:   attrs.Secure,
		SameSite: attrs.SameSite,
	}
}

// ExpiredRefreshCookie builds the clearing counterpart of NewRefreshCookie.
func ExpiredRefreshCookie(attrs CookieAttributes) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     attrs.Path,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: attrs.HTTPOnly,
		Secure:   attrs.Secure,
		SameSite: attrs.SameSite,
	}
}
