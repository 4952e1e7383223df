package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Providers ProvidersConfig
	Credits   CreditsConfig
	Webhook   WebhookConfig
	Reaper    ReaperConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	// TrustedProxies lists CIDR ranges whose forwarding headers are honored
	// when resolving client addresses.
	TrustedProxies []string
}

type AuthConfig struct {
	// JWTSecret is the shared secret of the external identity provider; we
	// only verify tokens, we never issue them.
	JWTSecret string
}

// ProviderConfig holds the connection settings for one upstream lookup API.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type ProvidersConfig struct {
	NameRegistry ProviderConfig
	NameFallback ProviderConfig
	Phone        ProviderConfig
	Image        ProviderConfig
}

// CreditsConfig sets per-kind lookup costs and the refund policy for the two
// contested failure classes. Rate-limit and bad-input refunds default to off:
// the original billing behavior charged for both.
type CreditsConfig struct {
	NameCost  int
	PhoneCost int
	ImageCost int

	RefundOnRateLimit bool
	RefundOnBadInput  bool
}

type WebhookConfig struct {
	// PurchaseSecret verifies webhook signatures from the billing provider.
	// Empty disables verification (development only).
	PurchaseSecret string
}

type ReaperConfig struct {
	Interval      time.Duration
	MaxPendingAge time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "pinkflag"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseCommaSeparated(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
		},
		Providers: ProvidersConfig{
			NameRegistry: ProviderConfig{
				APIKey:  getEnv("OFFENDER_REGISTRY_API_KEY", ""),
				BaseURL: getEnv("OFFENDER_REGISTRY_BASE_URL", "https://api.offenders.io"),
				Timeout: getEnvAsDuration("OFFENDER_REGISTRY_TIMEOUT", 10*time.Second),
			},
			NameFallback: ProviderConfig{
				APIKey:  getEnv("NAME_FALLBACK_API_KEY", ""),
				BaseURL: getEnv("NAME_FALLBACK_BASE_URL", "https://api.crimeometer.com/v1"),
				Timeout: getEnvAsDuration("NAME_FALLBACK_TIMEOUT", 10*time.Second),
			},
			Phone: ProviderConfig{
				APIKey:  getEnv("PHONE_LOOKUP_API_KEY", ""),
				BaseURL: getEnv("PHONE_LOOKUP_BASE_URL", "https://www.sent.dm/api/phone-lookup"),
				Timeout: getEnvAsDuration("PHONE_LOOKUP_TIMEOUT", 15*time.Second),
			},
			Image: ProviderConfig{
				APIKey:  getEnv("IMAGE_SEARCH_API_KEY", ""),
				BaseURL: getEnv("IMAGE_SEARCH_BASE_URL", "https://api.tineye.com/rest"),
				Timeout: getEnvAsDuration("IMAGE_SEARCH_TIMEOUT", 15*time.Second),
			},
		},
		Credits: CreditsConfig{
			NameCost:          getEnvAsInt("CREDIT_COST_NAME", 1),
			PhoneCost:         getEnvAsInt("CREDIT_COST_PHONE", 2),
			ImageCost:         getEnvAsInt("CREDIT_COST_IMAGE", 1),
			RefundOnRateLimit: getEnvAsBool("REFUND_ON_RATE_LIMIT", false),
			RefundOnBadInput:  getEnvAsBool("REFUND_ON_BAD_INPUT", false),
		},
		Webhook: WebhookConfig{
			PurchaseSecret: getEnv("PURCHASE_WEBHOOK_SECRET", ""),
		},
		Reaper: ReaperConfig{
			Interval:      getEnvAsDuration("REAPER_INTERVAL", 5*time.Minute),
			MaxPendingAge: getEnvAsDuration("REAPER_MAX_PENDING_AGE", 2*time.Minute),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Credits.NameCost <= 0 || cfg.Credits.PhoneCost <= 0 || cfg.Credits.ImageCost <= 0 {
		return nil, fmt.Errorf("credit costs must be positive")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if env == "production" && cfg.Webhook.PurchaseSecret == "" {
		return nil, fmt.Errorf("PURCHASE_WEBHOOK_SECRET is required in production")
	}

	// A pending search younger than the slowest provider timeout may still be
	// in flight; reaping it would refund a search that later completes.
	if floor := cfg.Providers.maxTimeout(); cfg.Reaper.MaxPendingAge < floor {
		return nil, fmt.Errorf("REAPER_MAX_PENDING_AGE %s is below the largest provider timeout %s", cfg.Reaper.MaxPendingAge, floor)
	}

	return cfg, nil
}

func (p *ProvidersConfig) maxTimeout() time.Duration {
	longest := p.NameRegistry.Timeout
	for _, timeout := range []time.Duration{p.NameFallback.Timeout, p.Phone.Timeout, p.Image.Timeout} {
		if timeout > longest {
			longest = timeout
		}
	}
	return longest
}

// validateJWTSecret enforces minimum security standards for the shared secret
func validateJWTSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// Cost returns the credit cost for a search type, or 0 for unknown types.
func (c *CreditsConfig) Cost(searchType string) int {
	switch searchType {
	case "name":
		return c.NameCost
	case "phone":
		return c.PhoneCost
	case "image":
		return c.ImageCost
	}
	return 0
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
	}
}
