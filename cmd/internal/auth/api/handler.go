package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"chatauth/cmd/internal/auth/credential"
	"chatauth/cmd/internal/auth/session"
)

// DefaultMaxBodyBytes caps auth request bodies; credentials are tiny.
const DefaultMaxBodyBytes int64 = 1 << 16

type ctxKey int

const ctxKeyUserID ctxKey = iota

// UserID returns the authenticated user id placed by RequireAuth, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(string)
	return id, ok && id != ""
}

// Handler wires the HTTP auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	sessions *session.Service
	store    credential.Store
	cookie   session.CookieAttributes

	maxBodyBytes int64
}

// NewHandler constructs the auth Handler. The environment decides cookie
// security attributes.
func NewHandler(log *slog.Logger, sessions *session.Service, store credential.Store, environment string) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if store == nil {
		return nil, errors.New("authapi: nil credential store")
	}
	return &Handler{
		log:          log,
		sessions:     sessions,
		store:        store,
		cookie:       session.CookiePolicy(environment),
		maxBodyBytes: DefaultMaxBodyBytes,
	}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/v1/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.handleLogout)
	mux.Handle("GET /api/v1/auth/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "invalid_request", "password must be at least 8 characters")
		return
	}

	rec, err := h.sessions.Register(r.Context(), email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "email_taken", "email already registered")
		case errors.Is(err, session.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid email or password")
		case errors.Is(err, session.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{User: toUserResponse(rec)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	issued, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		case errors.Is(err, session.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		default:
			h.log.Error("auth.login.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	rec, err := h.store.GetByID(ctx, issued.UserID)
	if err != nil {
		h.log.Error("auth.login.load_user.fail", "err", err, "user_id", issued.UserID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	http.SetCookie(w, session.NewRefreshCookie(h.cookie, issued.RefreshToken, issued.RefreshExp))
	writeJSON(w, http.StatusOK, loginResponse{
		User:   toUserResponse(rec),
		Tokens: toTokenResponse(issued),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	// Body takes precedence; web clients rely on the cookie.
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		if c, err := r.Cookie(session.RefreshCookieName); err == nil {
			refresh = c.Value
		}
	}
	if refresh == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	issued, err := h.sessions.Refresh(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnauthenticated):
			http.SetCookie(w, session.ExpiredRefreshCookie(h.cookie))
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
		case errors.Is(err, session.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	http.SetCookie(w, session.NewRefreshCookie(h.cookie, issued.RefreshToken, issued.RefreshExp))
	writeJSON(w, http.StatusOK, refreshResponse{Tokens: toTokenResponse(issued)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	access := bearerToken(r)
	if access == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	if err := h.sessions.Logout(r.Context(), access); err != nil {
		switch {
		case errors.Is(err, session.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		case errors.Is(err, session.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		default:
			h.log.Error("auth.logout.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	http.SetCookie(w, session.ExpiredRefreshCookie(h.cookie))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(rec)})
}

// ---- middleware ----

// RequireAuth validates the bearer access token and stores the resolved
// user id in the request context. Any rejection reads the same to clients.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access := bearerToken(r)
		if access == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		id, err := h.sessions.ValidateAccess(r.Context(), access)
		if err != nil {
			if errors.Is(err, session.ErrStoreUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUserID, id)))
	})
}

// ---- helpers ----

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func toUserResponse(rec credential.Record) userResponse {
	return userResponse{
		ID:        rec.ID,
		Email:     rec.Email,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
	}
}

func toTokenResponse(issued session.Issued) tokenResponse {
	return tokenResponse{
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExp,
		RefreshToken:     issued.RefreshToken,
		RefreshExpiresAt: issued.RefreshExp,
	}
}
