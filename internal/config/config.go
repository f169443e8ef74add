package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samvad-hq/crm-bff/internal/session"
	"github.com/samvad-hq/crm-bff/pkg/backendapi"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	BackendAPIURL         string        `mapstructure:"backend_api_url" validate:"required,http_url"`
	RequestTimeoutSeconds float64       `mapstructure:"request_timeout_seconds" validate:"gt=0"`
	RequestTimeout        time.Duration `mapstructure:"-"`

	SessionType            string        `mapstructure:"session_type" validate:"oneof=bbolt redis none disabled"`
	SessionPath            string        `mapstructure:"session_path" validate:"required_if=SessionType bbolt"`
	SessionRedisAddr       string        `mapstructure:"session_redis_addr" validate:"required_if=SessionType redis"`
	SessionRedisDB         int           `mapstructure:"session_redis_db" validate:"gte=0"`
	SessionTTLSeconds      int64         `mapstructure:"session_ttl_seconds" validate:"gt=0"`
	SessionCleanupSeconds  int64         `mapstructure:"session_cleanup_interval_seconds" validate:"gt=0"`
	SessionTTL             time.Duration `mapstructure:"-"`
	SessionCleanupInterval time.Duration `mapstructure:"-"`
	TokenRefreshSkewSecs   int64         `mapstructure:"token_refresh_skew_seconds" validate:"gte=0"`
	TokenRefreshSkew       time.Duration `mapstructure:"-"`

	PublishersFile          string        `mapstructure:"publishers_file"`
	SnapshotIntervalSeconds int64         `mapstructure:"snapshot_interval" validate:"gt=0"`
	SnapshotInterval        time.Duration `mapstructure:"-"`
	DashboardDealLimit      int           `mapstructure:"dashboard_deal_limit"`
	DashboardActivityLimit  int           `mapstructure:"dashboard_activity_limit"`
	MetricsAddr             string        `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	Email    string `mapstructure:"bff_email" validate:"omitempty,email"`
	Password string `mapstructure:"bff_password" json:"-"`
}

var validate = validator.New()

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith is Load on a caller supplied viper instance, so command line flags
// bound to v take precedence over the environment.
func LoadWith(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.BackendAPIURL = strings.TrimSpace(cfg.BackendAPIURL)
	cfg.SessionType = strings.ToLower(strings.TrimSpace(cfg.SessionType))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Email = strings.TrimSpace(cfg.Email)

	if err := validate.Struct(&cfg); err != nil {
		return nil, describe(err)
	}

	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds * float64(time.Second))
	cfg.SessionTTL = time.Duration(cfg.SessionTTLSeconds) * time.Second
	cfg.SessionCleanupInterval = time.Duration(cfg.SessionCleanupSeconds) * time.Second
	cfg.TokenRefreshSkew = time.Duration(cfg.TokenRefreshSkewSecs) * time.Second
	cfg.SnapshotInterval = time.Duration(cfg.SnapshotIntervalSeconds) * time.Second

	return &cfg, nil
}

// describe turns validator errors into one message naming the config keys.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := keyOf(fe.StructField())
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required", key))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("invalid %s (must be positive)", key))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("invalid %s %q (must be one of: %s)", key, fe.Value(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("invalid %s %v (%s)", key, fe.Value(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

var fieldKeys = map[string]string{
	"LogLevel":                "log_level",
	"BackendAPIURL":           "backend_api_url",
	"RequestTimeoutSeconds":   "request_timeout_seconds",
	"SessionType":             "session_type",
	"SessionPath":             "session_path",
	"SessionRedisAddr":        "session_redis_addr",
	"SessionRedisDB":          "session_redis_db",
	"SessionTTLSeconds":       "session_ttl_seconds",
	"SessionCleanupSeconds":   "session_cleanup_interval_seconds",
	"TokenRefreshSkewSecs":    "token_refresh_skew_seconds",
	"SnapshotIntervalSeconds": "snapshot_interval",
	"MetricsAddr":             "metrics_addr",
	"Email":                   "bff_email",
}

func keyOf(field string) string {
	if key, ok := fieldKeys[field]; ok {
		return key
	}
	return field
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "crm-bff")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("backend_api_url", backendapi.DefaultBaseURL)
	v.SetDefault("request_timeout_seconds", backendapi.DefaultTimeout.Seconds())
	v.SetDefault("session_type", "bbolt")
	v.SetDefault("session_path", "./data/session.db")
	v.SetDefault("session_redis_addr", "")
	v.SetDefault("session_redis_db", 0)
	v.SetDefault("session_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("session_cleanup_interval_seconds", int64(time.Hour/time.Second))
	v.SetDefault("token_refresh_skew_seconds", 30)
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("snapshot_interval", 300) // seconds
	v.SetDefault("dashboard_deal_limit", backendapi.DefaultDashboardDealLimit)
	v.SetDefault("dashboard_activity_limit", backendapi.DefaultDashboardActivityLimit)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("bff_email", "")
	v.SetDefault("bff_password", "")
}

// Backend returns the client configuration derived from c.
func (c *Config) Backend() backendapi.Config {
	return backendapi.Config{
		BaseURL: c.BackendAPIURL,
		Timeout: c.RequestTimeout,
	}
}

// Dashboard returns the dashboard limits derived from c.
func (c *Config) Dashboard() backendapi.DashboardOptions {
	return backendapi.DashboardOptions{
		DealLimit:     c.DashboardDealLimit,
		ActivityLimit: c.DashboardActivityLimit,
	}
}

// SessionLocation is the bbolt path or redis address for the configured store type.
func (c *Config) SessionLocation() string {
	return session.Location(c.SessionType, c.SessionPath, c.SessionRedisAddr)
}

// SessionOptions returns the store retention settings derived from c.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		TTL:             c.SessionTTL,
		CleanupInterval: c.SessionCleanupInterval,
		RedisDB:         c.SessionRedisDB,
	}
}
