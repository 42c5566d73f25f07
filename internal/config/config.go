// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, authentication, the realtime
// socket layer, login sessions, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-chat-realtime")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig defines bearer token settings.
type AuthConfig struct {
	JWTSecret string        // JWT_SECRET
	TokenTTL  time.Duration // JWT_TTL
	Issuer    string        // JWT_ISSUER
	// TrustUserHeader accepts X-User-ID as the caller identity (dev/test only).
	TrustUserHeader bool
}

// RealtimeConfig defines websocket transport and fan-out settings.
type RealtimeConfig struct {
	SendBuffer      int           // per-connection outbound frames
	PingPeriod      time.Duration // server ping interval
	ReadTimeout     time.Duration // max silence before the socket is dropped
	WriteWait       time.Duration // per-frame write deadline
	MaxMessageBytes int64         // inbound frame cap

	MembershipCacheTTL  time.Duration // 0 disables the membership cache
	MembershipCacheSize int
}

// LoginConfig defines QR/OTP login session settings.
type LoginConfig struct {
	SessionTTL time.Duration // LOGIN_SESSION_TTL
	BaseURL    string        // prefix embedded in the QR payload
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Messaging
	MaxMessageRunes int

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Identity, realtime, login sessions
	Auth     AuthConfig
	Realtime RealtimeConfig
	Login    LoginConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults and
// normalization, and validates the result. Malformed numbers, booleans and
// durations fall back to their defaults; out-of-range values are errors.
func Load() (Config, error) {
	cfg := Config{
		Port:              env("PORT", "8080", str),
		ReadTimeout:       env("READ_TIMEOUT", 15*time.Second, time.ParseDuration),
		ReadHeaderTimeout: env("READ_HEADER_TIMEOUT", 10*time.Second, time.ParseDuration),
		WriteTimeout:      env("WRITE_TIMEOUT", 20*time.Second, time.ParseDuration),
		IdleTimeout:       env("IDLE_TIMEOUT", 60*time.Second, time.ParseDuration),
		MaxHeaderBytes:    env("MAX_HEADER_BYTES", 1<<20, strconv.Atoi),
		GinMode:           env("GIN_MODE", "release", lower),

		LogLevel:       env("LOG_LEVEL", "info", lower),
		LogPretty:      env("LOG_PRETTY", false, parseBool),
		SwaggerEnabled: env("SWAGGER_ENABLED", false, parseBool),
		APIBasePath:    normalizeBasePath(env("API_BASE_PATH", "/api/v1", str)),

		DBDriver:    env("DB_DRIVER", "sqlite", lower),
		DBPath:      env("DB_PATH", "app.db", str),
		DatabaseURL: env("DATABASE_URL", "", str),

		MaxMessageRunes: env("MAX_MESSAGE_RUNES", 4000, strconv.Atoi),

		RateRPS:   env("RATE_RPS", 5.0, parseFloat),
		RateBurst: env("RATE_BURST", 10, strconv.Atoi),

		CORS: CORSConfig{
			AllowedOrigins: env("CORS_ALLOWED_ORIGINS", nil, splitCSV),
		},
		Security: SecurityConfig{
			EnableHSTS: env("ENABLE_HSTS", false, parseBool),
			HSTSMaxAge: env("HSTS_MAX_AGE", 180*24*time.Hour, time.ParseDuration),
		},

		IdempotencyTTL: env("IDEMPOTENCY_TTL", 24*time.Hour, time.ParseDuration),

		Auth: AuthConfig{
			JWTSecret:       env("JWT_SECRET", "", str),
			TokenTTL:        env("JWT_TTL", 24*time.Hour, time.ParseDuration),
			Issuer:          env("JWT_ISSUER", "go-chat-realtime", str),
			TrustUserHeader: env("TRUST_USER_HEADER", false, parseBool),
		},
		Realtime: RealtimeConfig{
			SendBuffer:          env("WS_SEND_BUFFER", 128, strconv.Atoi),
			PingPeriod:          env("WS_PING_PERIOD", 30*time.Second, time.ParseDuration),
			ReadTimeout:         env("WS_READ_TIMEOUT", 60*time.Second, time.ParseDuration),
			WriteWait:           env("WS_WRITE_WAIT", 10*time.Second, time.ParseDuration),
			MaxMessageBytes:     env("WS_MAX_MESSAGE_BYTES", int64(64<<10), parseInt64),
			MembershipCacheTTL:  env("MEMBERSHIP_CACHE_TTL", 30*time.Second, time.ParseDuration),
			MembershipCacheSize: env("MEMBERSHIP_CACHE_SIZE", 4096, strconv.Atoi),
		},
		Login: LoginConfig{
			SessionTTL: env("LOGIN_SESSION_TTL", 60*time.Second, time.ParseDuration),
			BaseURL:    strings.TrimRight(env("LOGIN_BASE_URL", "chat://login", str), "/"),
		},

		OTEL: OTELConfig{
			Enabled:     env("OTEL_ENABLED", false, parseBool),
			Endpoint:    env("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317", str),
			Insecure:    env("OTEL_EXPORTER_OTLP_INSECURE", true, parseBool),
			ServiceName: env("OTEL_SERVICE_NAME", "go-chat-realtime", str),
			SampleRatio: env("OTEL_TRACES_SAMPLER_ARG", 1.0, parseFloat),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once, one line per problem.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(false, "LOG_LEVEL %q must be one of: debug, info, warn, error, fatal, panic", c.LogLevel)
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DatabaseURL) != "", "DATABASE_URL must be set when DB_DRIVER=postgres")
	default:
		check(false, "DB_DRIVER %q must be one of: sqlite, postgres", c.DBDriver)
	}
	check(c.MaxMessageRunes >= 1, "MAX_MESSAGE_RUNES must be >= 1")

	check(len(c.Auth.JWTSecret) >= 16, "JWT_SECRET must be at least 16 bytes")
	check(c.Auth.TokenTTL > 0, "JWT_TTL must be > 0")

	rt := c.Realtime
	check(rt.SendBuffer >= 1, "WS_SEND_BUFFER must be >= 1")
	check(rt.PingPeriod > 0 && rt.WriteWait > 0, "WS_PING_PERIOD and WS_WRITE_WAIT must be positive durations")
	check(rt.ReadTimeout > rt.PingPeriod, "WS_READ_TIMEOUT must exceed WS_PING_PERIOD")
	check(rt.MaxMessageBytes > 0, "WS_MAX_MESSAGE_BYTES must be > 0")
	check(rt.MembershipCacheTTL >= 0 && rt.MembershipCacheSize >= 0, "membership cache settings must be >= 0")
	check(c.Login.SessionTTL > 0, "LOGIN_SESSION_TTL must be > 0")

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// env returns parse(value) for a set, non-empty variable, and def when the
// variable is unset or fails to parse.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func str(s string) (string, error) { return s, nil }

func lower(s string) (string, error) { return strings.ToLower(strings.TrimSpace(s)), nil }

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

// parseBool accepts the usual spellings (1/true/yes/y/on and their
// negatives), case-insensitively.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// splitCSV trims each element and drops empty ones.
func splitCSV(s string) ([]string, error) {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// normalizeBasePath ensures a leading '/' and strips trailing ones (except
// for the root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
