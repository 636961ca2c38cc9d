// Package config builds the immutable configuration snapshot the process
// runs under. Sources are merged in ascending precedence — base file,
// environment-named file, local override file, then environment variables —
// and the merged result is validated before anything else may start.
package config

import "time"

// Snapshot is the fully merged, validated process configuration.
// It is built once at startup and shared read-only afterwards.
type Snapshot struct {
	App      AppSection      `mapstructure:"app"`
	Server   ServerSection   `mapstructure:"server"`
	Database DatabaseSection `mapstructure:"database"`
	Auth     AuthSection     `mapstructure:"auth"`
}

// AppSection carries process metadata.
type AppSection struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerSection configures the HTTP listener.
type ServerSection struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseSection configures the credential store connection pool.
type DatabaseSection struct {
	URL            string        `mapstructure:"url"`
	MinConnections int32         `mapstructure:"min_connections"`
	MaxConnections int32         `mapstructure:"max_connections"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// AuthSection configures token signing and lifetimes.
type AuthSection struct {
	SigningSecret   string        `mapstructure:"signing_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// IsProduction reports whether the snapshot targets a production environment.
func (s Snapshot) IsProduction() bool {
	return s.App.Environment == "production"
}

// Validate checks the merged shape. The first violation is returned as a
// *FieldError naming the offending field; a process receiving one must
// abort startup.
func (s Snapshot) Validate() error {
	if s.App.Name == "" {
		return &FieldError{Field: "app.name", Reason: "must not be empty"}
	}
	if s.App.Environment == "" {
		return &FieldError{Field: "app.environment", Reason: "must not be empty"}
	}

	if s.Server.Host == "" {
		return &FieldError{Field: "server.host", Reason: "must not be empty"}
	}
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return &FieldError{Field: "server.port", Reason: "must be in range 1-65535"}
	}
	if s.Server.RequestTimeout <= 0 {
		return &FieldError{Field: "server.request_timeout", Reason: "must be a positive duration"}
	}

	if s.Database.URL == "" {
		return &FieldError{Field: "database.url", Reason: "must not be empty"}
	}
	if s.Database.MinConnections <= 0 {
		return &FieldError{Field: "database.min_connections", Reason: "must be positive"}
	}
	if s.Database.MaxConnections <= 0 {
		return &FieldError{Field: "database.max_connections", Reason: "must be positive"}
	}
	if s.Database.MinConnections > s.Database.MaxConnections {
		return &FieldError{Field: "database.min_connections", Reason: "must not exceed database.max_connections"}
	}

	if s.Auth.SigningSecret == "" {
		return &FieldError{Field: "auth.signing_secret", Reason: "must not be empty"}
	}
	if s.Auth.AccessTokenTTL <= 0 {
		return &FieldError{Field: "auth.access_token_ttl", Reason: "must be a positive duration"}
	}
	if s.Auth.RefreshTokenTTL <= 0 {
		return &FieldError{Field: "auth.refresh_token_ttl", Reason: "must be a positive duration"}
	}
	if s.Auth.AccessTokenTTL >= s.Auth.RefreshTokenTTL {
		return &FieldError{Field: "auth.access_token_ttl", Reason: "must be strictly less than auth.refresh_token_ttl"}
	}

	return nil
}
