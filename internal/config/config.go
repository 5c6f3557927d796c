package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from env, optionally seeded from a .env file.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	HubSpot   HubSpotConfig
	CORS      CORSConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	DB        DBConfig
	Queue     QueueConfig
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
	AuthMode AuthMode

	// TrustedProxies lists the proxy IPs or CIDRs whose forwarding headers are believed.
	// Empty means the socket peer is always the client.
	TrustedProxies []string
}

type AuthMode string

const (
	AuthModeAPIKey AuthMode = "api_key"
	AuthModeBearer AuthMode = "bearer"
)

// AssociationPolicy decides what happens when linking a logged call to its contact fails.
type AssociationPolicy string

const (
	// AssociationFail reports the failure like any other upstream failure.
	AssociationFail AssociationPolicy = "fail"
	// AssociationIgnore logs the failure and still reports the call as logged.
	AssociationIgnore AssociationPolicy = "ignore"
	// AssociationRollback deletes the created call before reporting the failure.
	AssociationRollback AssociationPolicy = "rollback"
	// AssociationAsync hands the association to the background queue.
	AssociationAsync AssociationPolicy = "async"
)

const (
	RegionEU = "EU"
	RegionUS = "US"

	baseURLEU = "https://api.hubapi.eu/crm/v3"
	baseURLUS = "https://api.hubapi.com/crm/v3"
)

type HubSpotConfig struct {
	APIKey string
	// BaseURLOverride replaces the regional URL (proxies, tests). The region tag is unaffected.
	BaseURLOverride   string
	Timeout           time.Duration
	AssociationPolicy AssociationPolicy
}

type CORSConfig struct {
	// AllowedOrigins empty means every origin is allowed.
	AllowedOrigins []string
}

// RedisConfig is optional; an empty host disables rate limiting.
type RedisConfig struct {
	Host string
	Port int
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// DBConfig is optional; an empty host disables the Postgres audit trail.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type QueueConfig struct {
	MaxRetries int
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a validated Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Config{}
	var parseErrs []error
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	c.App.Env = get("APP_ENV")
	c.App.Port, parseErrs = optionalInt(parseErrs, get, "PORT")
	c.App.LogLevel = get("LOG_LEVEL")
	c.App.AuthMode = AuthMode(strings.ToLower(get("AUTH_MODE")))

	c.HubSpot.APIKey = get("HUBSPOT_API_KEY")
	c.HubSpot.BaseURLOverride = strings.TrimRight(get("HUBSPOT_BASE_URL"), "/")
	c.HubSpot.Timeout, parseErrs = optionalDuration(parseErrs, get, "HUBSPOT_TIMEOUT")
	c.HubSpot.AssociationPolicy = AssociationPolicy(strings.ToLower(get("HUBSPOT_ASSOCIATION_POLICY")))

	if origins := get("ALLOWED_ORIGINS"); origins != "*" {
		c.CORS.AllowedOrigins = splitList(origins)
	}
	c.App.TrustedProxies = splitList(get("TRUSTED_PROXIES"))

	c.Redis.Host = get("REDIS_HOST")
	c.Redis.Port, parseErrs = optionalInt(parseErrs, get, "REDIS_PORT")
	c.RateLimit.Max, parseErrs = optionalInt(parseErrs, get, "RATE_LIMIT_MAX")
	c.RateLimit.Window, parseErrs = optionalDuration(parseErrs, get, "RATE_LIMIT_WINDOW")

	c.DB.Host = get("DB_HOST")
	c.DB.Port, parseErrs = optionalInt(parseErrs, get, "DB_PORT")
	c.DB.User = get("DB_USER")
	c.DB.Password = getenv("DB_PASSWORD")
	c.DB.Name = get("DB_NAME")
	c.DB.SSLMode = get("DB_SSLMODE")

	c.Queue.MaxRetries, parseErrs = optionalInt(parseErrs, get, "QUEUE_MAX_RETRIES")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies defaults and reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		c.App.Env = "development"
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, development, test, staging, production, got %q", c.App.Env))
	}
	if c.App.Port == 0 {
		c.App.Port = 3000
	}
	if c.App.Port < 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a valid port, got %d", c.App.Port))
	}
	switch c.App.AuthMode {
	case "":
		c.App.AuthMode = AuthModeAPIKey
	case AuthModeAPIKey, AuthModeBearer:
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be one of api_key, bearer, got %q", c.App.AuthMode))
	}
	for _, p := range c.App.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entries must be IPs or CIDRs, got %q", p))
			}
		}
	}

	switch c.HubSpot.AssociationPolicy {
	case "":
		c.HubSpot.AssociationPolicy = AssociationFail
	case AssociationFail, AssociationIgnore, AssociationRollback, AssociationAsync:
	default:
		errs = append(errs, fmt.Errorf("HUBSPOT_ASSOCIATION_POLICY must be one of fail, ignore, rollback, async, got %q", c.HubSpot.AssociationPolicy))
	}
	if c.HubSpot.Timeout < 0 {
		errs = append(errs, errors.New("HUBSPOT_TIMEOUT must not be negative"))
	}
	if c.HubSpot.BaseURLOverride != "" && !strings.HasPrefix(c.HubSpot.BaseURLOverride, "http://") && !strings.HasPrefix(c.HubSpot.BaseURLOverride, "https://") {
		errs = append(errs, fmt.Errorf("HUBSPOT_BASE_URL must use http or https, got %q", c.HubSpot.BaseURLOverride))
	}

	if c.RedisEnabled() {
		if c.Redis.Port == 0 {
			c.Redis.Port = 6379
		}
		if c.Redis.Port < 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}
	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = 100
	}
	if c.RateLimit.Max < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimit.Max))
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 10 * time.Minute
	}
	if c.RateLimit.Window < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}

	if c.DBEnabled() {
		if c.DB.Port == 0 {
			c.DB.Port = 5432
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Queue.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("QUEUE_MAX_RETRIES must not be negative, got %d", c.Queue.MaxRetries))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// ExposeErrorStacks is true only for local development environments.
func (c Config) ExposeErrorStacks() bool {
	switch c.App.Env {
	case "local", "dev", "development":
		return true
	default:
		return false
	}
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) RedisEnabled() bool { return c.Redis.Host != "" }

func (c Config) DBEnabled() bool { return c.DB.Host != "" }

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// Region is EU for keys with the "eu" prefix and US for everything else.
func (h HubSpotConfig) Region() string {
	if strings.HasPrefix(h.APIKey, "eu") {
		return RegionEU
	}
	return RegionUS
}

// BaseURL is the CRM v3 root for the selected region unless overridden.
func (h HubSpotConfig) BaseURL() string {
	if h.BaseURLOverride != "" {
		return h.BaseURLOverride
	}
	if h.Region() == RegionEU {
		return baseURLEU
	}
	return baseURLUS
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func optionalInt(errs []error, get func(string) string, key string) (int, []error) {
	v := get(key)
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalDuration(errs []error, get func(string) string, key string) (time.Duration, []error) {
	v := get(key)
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "development", "test", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
