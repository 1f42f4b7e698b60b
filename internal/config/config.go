package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 32

type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	// OAuth is optional; OIDC login is only mounted when ClientID is set.
	OAuth struct {
		ClientID     string
		ClientSecret string
		IssuerURL    string
		RedirectPath string
	}

	Auth struct {
		JWTSecret       string
		TokenTTL        time.Duration
		InsecureDevMode bool
	}

	RateLimit struct {
		RequestsPerSecond float64
		Burst             int
	}

	CORSAllowedOrigin string
	PrometheusEnabled bool
	TrustedProxies    []string
}

// OIDCEnabled reports whether an OpenID Connect provider is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OAuth.ClientID != ""
}

// Load reads configuration from the environment, after merging a local .env
// file when one exists. Secrets referenced by SSM parameter names are
// fetched from AWS Systems Manager.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] could not read .env file: %v", err)
	}
	return load(ctx, newSSMClient)
}

func load(ctx context.Context, newParams func(context.Context) (ParameterGetter, error)) (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = strings.TrimRight(getenvDefault("APP_BASE_URL", "http://localhost:8080"), "/")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = dsnFromParts()
	}

	cfg.OAuth.ClientID = os.Getenv("APP_OAUTH_CLIENT_ID")
	cfg.OAuth.ClientSecret = os.Getenv("APP_OAUTH_CLIENT_SECRET")
	cfg.OAuth.IssuerURL = os.Getenv("APP_OAUTH_ISSUER_URL")
	cfg.OAuth.RedirectPath = getenvDefault("APP_OAUTH_REDIRECT_PATH", "/api/auth/oidc/callback")

	cfg.Auth.InsecureDevMode = getenvBool("APP_INSECURE_DEV_MODE", false)
	cfg.Auth.TokenTTL = getenvDuration("APP_TOKEN_TTL", 24*time.Hour)
	cfg.RateLimit.RequestsPerSecond = getenvFloat("APP_RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getenvInt("APP_RATE_LIMIT_BURST", 20)
	cfg.CORSAllowedOrigin = getenvDefault("APP_CORS_ALLOWED_ORIGIN", "*")
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.OAuth.ClientID != "" {
		if cfg.OAuth.ClientSecret == "" {
			return nil, errors.New("APP_OAUTH_CLIENT_SECRET is required when APP_OAUTH_CLIENT_ID is set")
		}
		if cfg.OAuth.IssuerURL == "" {
			return nil, errors.New("APP_OAUTH_ISSUER_URL is required when APP_OAUTH_CLIENT_ID is set")
		}
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.Burst <= 0 {
		return nil, errors.New("APP_RATE_LIMIT_RPS and APP_RATE_LIMIT_BURST must be positive")
	}

	secret, err := resolveJWTSecret(ctx, cfg.Auth.InsecureDevMode, newParams)
	if err != nil {
		return nil, err
	}
	cfg.Auth.JWTSecret = secret

	if len(cfg.TrustedProxies) == 0 {
		log.Printf("[WARN] no APP_TRUSTED_PROXIES configured; forwarded client addresses will be ignored")
	}

	return cfg, nil
}

func dsnFromParts() string {
	host := os.Getenv("APP_DB_HOST")
	name := os.Getenv("APP_DB_NAME")
	user := os.Getenv("APP_DB_USER")
	password := os.Getenv("APP_DB_PASSWORD")
	if host == "" || name == "" || user == "" || password == "" {
		return ""
	}
	port := getenvDefault("APP_DB_PORT", "5432")
	sslmode := getenvDefault("APP_DB_SSLMODE", "disable")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
}

// resolveJWTSecret returns the token signing secret. There is no built-in
// default: outside dev mode a missing secret is a startup error.
func resolveJWTSecret(ctx context.Context, devMode bool, newParams func(context.Context) (ParameterGetter, error)) (string, error) {
	secret := os.Getenv("APP_JWT_SECRET")
	source := "APP_JWT_SECRET"

	if secret == "" {
		if param := os.Getenv("APP_JWT_SECRET_SSM_PARAM"); param != "" {
			params, err := newParams(ctx)
			if err != nil {
				return "", fmt.Errorf("init parameter store client: %w", err)
			}
			secret, err = getParameter(ctx, params, param)
			if err != nil {
				return "", err
			}
			source = "SSM parameter " + param
		}
	}

	if secret == "" {
		if !devMode {
			return "", errors.New("APP_JWT_SECRET or APP_JWT_SECRET_SSM_PARAM is required")
		}
		buf := make([]byte, minSecretLength)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate dev secret: %w", err)
		}
		log.Printf("[WARN] APP_INSECURE_DEV_MODE: using an ephemeral JWT secret; tokens will not survive a restart")
		return hex.EncodeToString(buf), nil
	}

	if len(secret) < minSecretLength {
		return "", fmt.Errorf("%s must be at least %d characters long (got %d)", source, minSecretLength, len(secret))
	}
	return secret, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
