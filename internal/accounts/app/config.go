package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration. Every key can be set in the
// optional config file (CONFIG_FILE) or as an ACCOUNTS_ environment
// variable, e.g. ACCOUNTS_DATABASE_DSN for database.dsn.
type Config struct {
	Port                 int           `mapstructure:"port"`
	Env                  string        `mapstructure:"env"` // dev, staging, prod
	ShutdownGracePeriod  time.Duration `mapstructure:"shutdown_grace_period"`
	HousekeepingInterval time.Duration `mapstructure:"housekeeping_interval"`

	Log struct {
		Level  string `mapstructure:"level"`  // debug|info|warn|error
		Format string `mapstructure:"format"` // json|text
	} `mapstructure:"log"`

	Database struct {
		Driver string `mapstructure:"driver"` // sqlite|pgx|postgres
		DSN    string `mapstructure:"dsn"`    // empty with sqlite means File
		File   string `mapstructure:"file"`
	} `mapstructure:"database"`

	Auth struct {
		Issuer         string        `mapstructure:"issuer"`
		PepperFile     string        `mapstructure:"pepper_file"`
		SigningKeyFile string        `mapstructure:"signing_key_file"` // empty generates a key per process
		KeyID          string        `mapstructure:"key_id"`
		SessionTTL     time.Duration `mapstructure:"session_ttl"`
		InternalAPIKey string        `mapstructure:"internal_api_key"`
	} `mapstructure:"auth"`

	Deployment struct {
		SelfHosted   bool `mapstructure:"self_hosted"`
		MultiTenancy bool `mapstructure:"multi_tenancy"`
	} `mapstructure:"deployment"`

	Invites struct {
		TTL       time.Duration `mapstructure:"ttl"`
		AcceptURL string        `mapstructure:"accept_url"`
	} `mapstructure:"invites"`

	AccountPortal struct {
		URL    string `mapstructure:"url"` // empty disables holder checks
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"account_portal"`

	Cache struct {
		RedisURL string        `mapstructure:"redis_url"` // empty uses the in-process cache
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Events struct {
		NATSURL string `mapstructure:"nats_url"` // empty logs events instead
	} `mapstructure:"events"`

	Tracing struct {
		Endpoint    string  `mapstructure:"endpoint"` // OTLP gRPC, empty disables
		SampleRate  float64 `mapstructure:"sample_rate"`
		ServiceName string  `mapstructure:"service_name"`
	} `mapstructure:"tracing"`
}

var defaults = map[string]any{
	"port":                  8080,
	"env":                   "dev",
	"shutdown_grace_period": 10 * time.Second,
	"housekeeping_interval": time.Hour,

	"log.level":  "info",
	"log.format": "json",

	"database.driver": "sqlite",
	"database.dsn":    "",
	"database.file":   "accounts.db",

	"auth.issuer":           "accounts",
	"auth.pepper_file":      "pepper",
	"auth.signing_key_file": "",
	"auth.key_id":           "accounts-key-001",
	"auth.session_ttl":      24 * time.Hour,
	"auth.internal_api_key": "",

	"deployment.self_hosted":   true,
	"deployment.multi_tenancy": false,

	"invites.ttl":        7 * 24 * time.Hour,
	"invites.accept_url": "",

	"account_portal.url":     "",
	"account_portal.api_key": "",

	"cache.redis_url": "",
	"cache.ttl":       5 * time.Minute,

	"events.nats_url": "",

	"tracing.endpoint":     "",
	"tracing.sample_rate":  1.0,
	"tracing.service_name": "accounts",
}

// LoadConfig reads defaults, then the config file when CONFIG_FILE is set or
// ./config.yaml exists, then the environment.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("accounts")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/accounts")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "pgx", "postgres":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.Driver != "sqlite" && c.Database.DSN == "" {
		return errors.New("database.dsn is required for " + c.Database.Driver)
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" {
		return errors.New("auth.issuer must not be empty")
	}
	if c.AccountPortal.URL != "" && c.AccountPortal.APIKey == "" {
		return errors.New("account_portal.api_key is required when account_portal.url is set")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New("tracing.sample_rate must be within [0, 1]")
	}
	return nil
}
