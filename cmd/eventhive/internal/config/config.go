package config

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. EVENTHIVE_DATABASE_URL.
const EnvPrefix = "EVENTHIVE"

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN); a plain path selects SQLite
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Public base URL, used for absolute links
	ServerURL string

	// Secret used to sign the flash cookie
	SecretKey string

	// Directory receiving generated registration QR codes
	QRDir string

	// Lifetime of a login session without "remember me"
	SessionDuration time.Duration

	// Lifetime of a login session with "remember me"
	RememberDuration time.Duration

	// Mark cookies Secure (HTTPS deployments)
	SecureCookies bool

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	Observability ObservabilityConfig
}

// ObservabilityConfig configures OpenTelemetry export. An empty endpoint
// disables telemetry.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "eventhive.db")
	v.SetDefault("server_addr", "localhost:5000")
	v.SetDefault("server_url", "http://localhost:5000")
	v.SetDefault("secret_key", "dev-key-change-in-production")
	v.SetDefault("qr_dir", "static/qr_codes")
	v.SetDefault("session_duration", "12h")
	v.SetDefault("remember_duration", "8760h")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("debug", false)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http/protobuf")
	v.SetDefault("observability.otlp_insecure", false)
	v.SetDefault("observability.service_name", "eventhive")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.environment", "development")
}

// Load reads configuration from the global viper instance: defaults, then
// the config file if one was read, then EVENTHIVE_* environment variables.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:      v.GetString("database_url"),
		ServerAddr:       v.GetString("server_addr"),
		ServerURL:        v.GetString("server_url"),
		SecretKey:        v.GetString("secret_key"),
		QRDir:            v.GetString("qr_dir"),
		SessionDuration:  v.GetDuration("session_duration"),
		RememberDuration: v.GetDuration("remember_duration"),
		SecureCookies:    v.GetBool("secure_cookies"),
		MaxDBConnections: v.GetInt("max_db_connections"),
		Debug:            v.GetBool("debug"),
		Observability: ObservabilityConfig{
			OTLPEndpoint:   v.GetString("observability.otlp_endpoint"),
			OTLPProtocol:   v.GetString("observability.otlp_protocol"),
			OTLPInsecure:   v.GetBool("observability.otlp_insecure"),
			ServiceName:    v.GetString("observability.service_name"),
			ServiceVersion: v.GetString("observability.service_version"),
			Environment:    v.GetString("observability.environment"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key is required")
	}
	if c.SessionDuration <= 0 {
		return fmt.Errorf("session_duration must be positive, got %s", c.SessionDuration)
	}
	if c.RememberDuration <= 0 {
		return fmt.Errorf("remember_duration must be positive, got %s", c.RememberDuration)
	}
	if c.MaxDBConnections < 1 {
		return fmt.Errorf("max_db_connections must be at least 1, got %d", c.MaxDBConnections)
	}
	return nil
}

// CookieHashKey derives the 32-byte HMAC key for signed cookies from SecretKey.
func (c *Config) CookieHashKey() []byte {
	sum := sha256.Sum256([]byte(c.SecretKey))
	return sum[:]
}
