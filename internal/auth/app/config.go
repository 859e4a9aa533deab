package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/aussiebroadwan/rollcall/pkg/cryptox"
)

type Config struct {
	Port                 int           `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`                   // dev, staging, prod
	LogLevel             string        `mapstructure:"LOG_LEVEL"`             // debug, info, warn, error
	LogFormat            string        `mapstructure:"LOG_FORMAT"`            // json, text
	ShutdownGracePeriod  time.Duration `mapstructure:"SHUTDOWN_GRACE_PERIOD"` // Graceful shutdown timeout
	HousekeepingInterval time.Duration `mapstructure:"HOUSEKEEPING_INTERVAL"` // How often expired revocations are swept

	// Token signing. JWTSecret wins over SecretFile; with neither set the
	// process signs with a random secret that dies with it.
	JWTSecret  string        `mapstructure:"AUTH_JWT_SECRET"`
	SecretFile string        `mapstructure:"AUTH_SECRET_FILE"`
	AccessTTL  time.Duration `mapstructure:"AUTH_ACCESS_TTL"`
	RefreshTTL time.Duration `mapstructure:"AUTH_REFRESH_TTL"`
	ResetTTL   time.Duration `mapstructure:"AUTH_RESET_TTL"`

	PasswordAlgorithm string `mapstructure:"AUTH_PASSWORD_ALGORITHM"` // bcrypt, argon2id
	BcryptCost        int    `mapstructure:"AUTH_BCRYPT_COST"`
	HashWorkers       int    `mapstructure:"AUTH_HASH_WORKERS"` // 0 means GOMAXPROCS

	RoleHierarchyFile string `mapstructure:"AUTH_ROLE_HIERARCHY_FILE"` // Optional YAML override of the built-in table
	PolicyEngine      string `mapstructure:"AUTH_POLICY_ENGINE"`       // admin, rego
	PolicyFile        string `mapstructure:"AUTH_POLICY_FILE"`         // Rego module; empty uses the built-in one

	RevocationBackend string `mapstructure:"AUTH_REVOCATION_BACKEND"` // memory, store

	DatabaseDriver string `mapstructure:"AUTH_DATABASE_DRIVER"` // sqlite, postgres
	DatabaseFile   string `mapstructure:"AUTH_DATABASE_FILE"`
	DatabaseURL    string `mapstructure:"AUTH_DATABASE_URL"`

	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"` // Empty disables trace export
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	PolicyAdmin = "admin"
	PolicyRego  = "rego"

	RevocationMemory = "memory"
	RevocationStore  = "store"
)

var defaults = map[string]any{
	"PORT":                  8080,
	"ENV":                   "dev",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "json",
	"SHUTDOWN_GRACE_PERIOD": 10 * time.Second,
	"HOUSEKEEPING_INTERVAL": time.Hour,

	"AUTH_JWT_SECRET":  "",
	"AUTH_SECRET_FILE": "",
	"AUTH_ACCESS_TTL":  5 * time.Minute,
	"AUTH_REFRESH_TTL": 7 * 24 * time.Hour,
	"AUTH_RESET_TTL":   15 * time.Minute,

	"AUTH_PASSWORD_ALGORITHM": string(cryptox.AlgorithmBcrypt),
	"AUTH_BCRYPT_COST":        12,
	"AUTH_HASH_WORKERS":       0,

	"AUTH_ROLE_HIERARCHY_FILE": "",
	"AUTH_POLICY_ENGINE":       PolicyAdmin,
	"AUTH_POLICY_FILE":         "",

	"AUTH_REVOCATION_BACKEND": RevocationStore,

	"AUTH_DATABASE_DRIVER": DriverSQLite,
	"AUTH_DATABASE_FILE":   "auth.db",
	"AUTH_DATABASE_URL":    "",

	"CORS_ALLOWED_ORIGINS": "http://localhost:3000",

	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
}

// LoadConfig reads configuration from defaults, an optional config file and
// the environment, in increasing order of precedence. A --port flag that was
// set explicitly beats all three.
//
// configFile may be a YAML file or a .env file. When it is empty a .env in
// the working directory is read if one exists.
func LoadConfig(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if isDotEnv(configFile) {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig() // optional
	}

	v.AutomaticEnv()

	if flags != nil {
		if f := flags.Lookup("port"); f != nil {
			if err := v.BindPFlag("PORT", f); err != nil {
				return Config{}, fmt.Errorf("config: bind port flag: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)
	cfg.PasswordAlgorithm = strings.ToLower(strings.TrimSpace(cfg.PasswordAlgorithm))
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.PolicyEngine = strings.ToLower(strings.TrimSpace(cfg.PolicyEngine))
	cfg.RevocationBackend = strings.ToLower(strings.TrimSpace(cfg.RevocationBackend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.ShutdownGracePeriod <= 0 {
		errs = append(errs, errors.New("config: SHUTDOWN_GRACE_PERIOD must be positive"))
	}
	if c.HousekeepingInterval <= 0 {
		errs = append(errs, errors.New("config: HOUSEKEEPING_INTERVAL must be positive"))
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < cryptox.MinSecretLength {
		errs = append(errs, fmt.Errorf("config: AUTH_JWT_SECRET must be at least %d bytes", cryptox.MinSecretLength))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.ResetTTL <= 0 {
		errs = append(errs, errors.New("config: token TTLs must be positive"))
	}

	switch cryptox.Algorithm(c.PasswordAlgorithm) {
	case cryptox.AlgorithmBcrypt, cryptox.AlgorithmArgon2id:
	default:
		errs = append(errs, fmt.Errorf("config: AUTH_PASSWORD_ALGORITHM must be bcrypt or argon2id, got %q", c.PasswordAlgorithm))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("config: AUTH_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.HashWorkers < 0 {
		errs = append(errs, errors.New("config: AUTH_HASH_WORKERS must not be negative"))
	}

	if !slices.Contains([]string{PolicyAdmin, PolicyRego}, c.PolicyEngine) {
		errs = append(errs, fmt.Errorf("config: AUTH_POLICY_ENGINE must be admin or rego, got %q", c.PolicyEngine))
	}
	if !slices.Contains([]string{RevocationMemory, RevocationStore}, c.RevocationBackend) {
		errs = append(errs, fmt.Errorf("config: AUTH_REVOCATION_BACKEND must be memory or store, got %q", c.RevocationBackend))
	}

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("config: AUTH_DATABASE_FILE is required for sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("config: AUTH_DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: AUTH_DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver))
	}

	return errors.Join(errs...)
}

func isDotEnv(path string) bool {
	base := filepath.Base(path)
	return base == ".env" || filepath.Ext(base) == ".env"
}

// splitList flattens comma separated entries. Values from the environment
// arrive as one string, values from YAML as a list.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
