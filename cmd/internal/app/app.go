// Package app wires the chatauth server runtime: config, logging, the
// credential store, the session service, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	authapi "chatauth/cmd/internal/auth/api"
	"chatauth/cmd/internal/auth/credential"
	"chatauth/cmd/internal/auth/session"
	"chatauth/cmd/internal/auth/token"
	"chatauth/cmd/internal/config"
)

// App owns the HTTP server and the resources behind it.
type App struct {
	cfg config.Snapshot
	log Logger

	pool *pgxpool.Pool
	auth *authapi.Handler
}

// New constructs a fully wired App from a validated config snapshot.
func New(ctx context.Context, cfg config.Snapshot, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.App.LogLevel)
	}

	pool, err := NewDBPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	store, err := credential.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	codec, err := token.NewCodec(
		cfg.Auth.SigningSecret,
		cfg.App.Name,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		pool.Close()
		return nil, err
	}

	sessions, err := session.NewService(log, store, codec)
	if err != nil {
		pool.Close()
		return nil, err
	}

	auth, err := authapi.NewHandler(log, sessions, store, cfg.App.Environment)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &App{
		cfg:  cfg,
		log:  log,
		pool: pool,
		auth: auth,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.pool, a.auth)

	handler := WithRequestTimeout(mux, a.cfg.Server.RequestTimeout)
	handler = WithRequestLogging(handler, a.log)

	addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.log.Info("server.start",
		"addr", addr,
		"environment", a.cfg.App.Environment,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.pool.Close()

	a.log.Info("server.stopped")
	return nil
}
