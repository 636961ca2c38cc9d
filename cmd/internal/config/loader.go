package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvSelector names the environment-specific config layer (config/<env>).
	EnvSelector = "CHATAUTH_ENV"

	// EnvPrefix marks environment variables that override merged config keys.
	// CHATAUTH__SERVER__PORT=9000 overrides server.port; names are
	// case-normalized, and the double separator maps to nesting.
	EnvPrefix = "CHATAUTH__"

	envSeparator = "__"

	defaultEnvironment = "development"
)

// Load merges the four configuration layers found under dir and validates
// the result. Layer order, lowest to highest precedence:
//
//  1. <dir>/base       (required)
//  2. <dir>/<env>      (required; env taken from CHATAUTH_ENV)
//  3. <dir>/local      (optional, for dev machines)
//  4. CHATAUTH__* environment variables
//
// Merging is key-by-key: a higher layer overriding server.port leaves the
// rest of the server section untouched.
func Load(dir string) (Snapshot, error) {
	envName := strings.TrimSpace(os.Getenv(EnvSelector))
	if envName == "" {
		envName = defaultEnvironment
	}
	return load(dir, envName, os.Environ())
}

func load(dir, envName string, environ []string) (Snapshot, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	v.SetConfigName("base")
	if err := v.ReadInConfig(); err != nil {
		return Snapshot{}, fmt.Errorf("config: base layer: %w", err)
	}

	v.SetConfigName(envName)
	if err := v.MergeInConfig(); err != nil {
		return Snapshot{}, fmt.Errorf("config: %s layer: %w", envName, err)
	}

	v.SetConfigName("local")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Snapshot{}, fmt.Errorf("config: local layer: %w", err)
		}
	}

	if err := v.MergeConfigMap(envOverrides(environ)); err != nil {
		return Snapshot{}, fmt.Errorf("config: env layer: %w", err)
	}

	var snap Snapshot
	if err := v.Unmarshal(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("config: invalid shape: %w", err)
	}

	// Environment in config and the selector must not silently diverge.
	if snap.App.Environment == "" {
		snap.App.Environment = envName
	}

	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// envOverrides parses CHATAUTH__SECTION__FIELD entries from environ into the
// nested map shape viper merges at highest precedence.
func envOverrides(environ []string) map[string]any {
	out := make(map[string]any)

	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}

		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), envSeparator)
		if len(path) == 0 || hasEmptySegment(path) {
			continue
		}

		node := out
		for _, seg := range path[:len(path)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		node[path[len(path)-1]] = parseScalar(value)
	}

	return out
}

func hasEmptySegment(path []string) bool {
	for _, seg := range path {
		if seg == "" {
			return true
		}
	}
	return false
}

// parseScalar mirrors the file layers' typed values: numbers and booleans
// are parsed, everything else stays a string (durations are decoded later
// from their string form).
func parseScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
