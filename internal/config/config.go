package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverRemote = "remote"
	DriverSQLite = "sqlite"
)

// Orchestrator auth modes.
const (
	AirflowAuthToken = "token"
	AirflowAuthBasic = "basic"
)

// Config holds all application configuration. It is built once at startup
// and handed to every constructor.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	PowerBI  PowerBIConfig  `mapstructure:"powerbi"`
	Airflow  AirflowConfig  `mapstructure:"airflow"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Log      LogConfig      `mapstructure:"log"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Resolver ResolverConfig `mapstructure:"resolver"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`       // "remote" or "sqlite"
	URL         string `mapstructure:"url"`          // remote record store base URL
	Path        string `mapstructure:"path"`         // SQLite file for the embedded store
	TokenSecret string `mapstructure:"token_secret"` // HS256 secret for embedded store tokens
}

// PowerBIConfig contains the BI platform service principal.
type PowerBIConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	APIURL       string `mapstructure:"api_url"`
	TokenURL     string `mapstructure:"token_url"` // overrides the tenant-derived URL
}

// AirflowConfig contains the orchestrator endpoint and credentials.
type AirflowConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	AuthMode string `mapstructure:"auth_mode"`
}

// HTTPConfig contains the inbound HTTP listener settings.
type HTTPConfig struct {
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// GRPCConfig contains the gRPC health listener settings. Empty disables it.
type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// TimeoutsConfig bounds each outbound call.
type TimeoutsConfig struct {
	Upstream time.Duration `mapstructure:"upstream"`
}

// ResolverConfig tunes the association resolver.
type ResolverConfig struct {
	MaxGoroutines      int  `mapstructure:"max_goroutines"`
	UniqueAssociations bool `mapstructure:"unique_associations"`
}

// env maps each config key to the environment variables that may set it,
// first match wins.
var env = map[string][]string{
	"store.driver":                 {"STORE_DRIVER"},
	"store.url":                    {"STORE_URL", "POCKETBASE_URL"},
	"store.path":                   {"STORE_PATH"},
	"store.token_secret":           {"STORE_TOKEN_SECRET"},
	"powerbi.tenant_id":            {"AZURE_TENANT_ID"},
	"powerbi.client_id":            {"AZURE_CLIENT_ID"},
	"powerbi.client_secret":        {"AZURE_CLIENT_SECRET"},
	"powerbi.api_url":              {"POWERBI_API_URL"},
	"powerbi.token_url":            {"POWERBI_TOKEN_URL"},
	"airflow.url":                  {"AIRFLOW_URL"},
	"airflow.username":             {"AIRFLOW_USERNAME"},
	"airflow.password":             {"AIRFLOW_PASSWORD"},
	"airflow.auth_mode":            {"AIRFLOW_AUTH_MODE"},
	"http.host":                    {"API_HOST"},
	"http.port":                    {"API_PORT"},
	"http.cors_allowed_origins":    {"CORS_ALLOWED_ORIGINS"},
	"grpc.address":                 {"GRPC_ADDRESS"},
	"log.format":                   {"LOG_FORMAT"},
	"log.level":                    {"LOG_LEVEL"},
	"timeouts.upstream":            {"UPSTREAM_TIMEOUT"},
	"resolver.max_goroutines":      {"RESOLVER_MAX_GOROUTINES"},
	"resolver.unique_associations": {"RESOLVER_UNIQUE_ASSOCIATIONS"},
}

// DefaultCORSAllowedOrigins are the front-ends allowed when none are configured.
var DefaultCORSAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", DriverRemote)
	v.SetDefault("store.url", "")
	v.SetDefault("store.path", "hopper.db")
	v.SetDefault("store.token_secret", "")
	v.SetDefault("powerbi.tenant_id", "")
	v.SetDefault("powerbi.client_id", "")
	v.SetDefault("powerbi.client_secret", "")
	v.SetDefault("powerbi.api_url", "https://api.powerbi.com/v1.0/myorg")
	v.SetDefault("powerbi.token_url", "")
	v.SetDefault("airflow.url", "")
	v.SetDefault("airflow.username", "")
	v.SetDefault("airflow.password", "")
	v.SetDefault("airflow.auth_mode", AirflowAuthToken)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.cors_allowed_origins", DefaultCORSAllowedOrigins)
	v.SetDefault("grpc.address", "")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")
	v.SetDefault("timeouts.upstream", 10*time.Second)
	v.SetDefault("resolver.max_goroutines", 8)
	v.SetDefault("resolver.unique_associations", true)
}

// NewViper returns a viper instance with defaults and environment bindings.
// The CLI binds its flags onto it before calling FromViper.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, names := range env {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
	return v
}

// Load loads configuration from environment variables with sensible defaults
// and validates it for production use.
func Load() (*Config, error) {
	return FromViper(NewViper(), true)
}

// LoadWithDefaults is like Load but falls back to the embedded SQLite store
// and a development token secret when nothing is configured.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	v := NewViper()
	ApplyDevDefaults(v)
	return FromViper(v, false)
}

// ApplyDevDefaults switches a remote store without a URL to the embedded
// SQLite driver and fills in a development token secret.
func ApplyDevDefaults(v *viper.Viper) {
	if v.GetString("store.driver") == DriverRemote && strings.TrimSpace(v.GetString("store.url")) == "" {
		v.Set("store.driver", DriverSQLite)
	}
	if strings.TrimSpace(v.GetString("store.token_secret")) == "" {
		v.Set("store.token_secret", "dev-secret-change-me")
	}
}

// FromViper decodes and validates a populated viper instance. A config file
// set with SetConfigFile is read first; strict enables production checks.
func FromViper(v *viper.Viper, strict bool) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(strict); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config. Non-strict mode only rejects values that can
// never work.
func (c *Config) Validate(strict bool) error {
	var errs []error
	switch c.Store.Driver {
	case DriverRemote:
		if strict && strings.TrimSpace(c.Store.URL) == "" {
			errs = append(errs, errors.New("STORE_URL is not set; required by the remote store driver"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Store.TokenSecret) == "" {
			errs = append(errs, errors.New("STORE_TOKEN_SECRET is not set; required by the sqlite store driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Airflow.AuthMode {
	case AirflowAuthToken, AirflowAuthBasic:
	default:
		errs = append(errs, fmt.Errorf("unknown airflow auth mode %q", c.Airflow.AuthMode))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.HTTP.Port))
	}
	if c.Timeouts.Upstream <= 0 {
		errs = append(errs, errors.New("upstream timeout must be positive"))
	}
	if c.Resolver.MaxGoroutines <= 0 {
		errs = append(errs, errors.New("resolver max goroutines must be positive"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv copies KEY=VALUE pairs from an env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Store: %s %s, PowerBI: tenant=%s client=%s secret=%s, Airflow: %s user=%s auth=%s, HTTP: %s, gRPC: %q, Log: %s/%s}",
		c.Store.Driver, c.storeTarget(),
		c.PowerBI.TenantID, c.PowerBI.ClientID, mask(c.PowerBI.ClientSecret),
		c.Airflow.URL, c.Airflow.Username, c.Airflow.AuthMode,
		c.HTTP.Addr(), c.GRPC.Address, c.Log.Format, c.Log.Level)
}

func (c *Config) storeTarget() string {
	if c.Store.Driver == DriverSQLite {
		return c.Store.Path
	}
	return c.Store.URL
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
