package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/garyjia/clinic-receipts/internal/domain/entity"
	"github.com/garyjia/clinic-receipts/pkg/utils"
)

// DefaultOutputDir is used when receipt.output_dir is empty or escapes the storage root
const DefaultOutputDir = "receipts"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Clinic   ClinicConfig   `mapstructure:"clinic"`
	Receipt  ReceiptConfig  `mapstructure:"receipt"`
	Logger   LoggerConfig   `mapstructure:"logger"`

	// BaseDir is the directory of the loaded config file; relative paths resolve against it
	BaseDir string `mapstructure:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite3 or mysql
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the bundled migrations
}

// ClinicConfig holds the clinic identity printed on receipts
type ClinicConfig struct {
	Name     string `mapstructure:"name"`
	Address  string `mapstructure:"address"`
	Phone    string `mapstructure:"phone"`
	Email    string `mapstructure:"email"`
	LogoPath string `mapstructure:"logo_path"`
}

// ReceiptConfig holds ledger policy and document output settings
type ReceiptConfig struct {
	StorageRoot           string `mapstructure:"storage_root"`
	OutputDir             string `mapstructure:"output_dir"`
	Currency              string `mapstructure:"currency"`
	SettleEpsilon         string `mapstructure:"settle_epsilon"`
	AllowNegativeDiscount bool   `mapstructure:"allow_negative_discount"`
	BlockOverpayment      bool   `mapstructure:"block_overpayment"`
	Prefix                string `mapstructure:"receipt_prefix"`
	Timezone              string `mapstructure:"timezone"` // IANA name calendar dates are read in
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	base, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	cfg.BaseDir = base
	cfg.Receipt.StorageRoot = cfg.ResolvePath(cfg.Receipt.StorageRoot)
	cfg.Receipt.OutputDir = NormaliseOutputDir(cfg.Receipt.OutputDir, cfg.Receipt.StorageRoot)
	if cfg.Database.Driver == "sqlite3" && cfg.Database.Path != ":memory:" {
		cfg.Database.Path = cfg.ResolvePath(cfg.Database.Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/clinic.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Receipt defaults
	v.SetDefault("receipt.storage_root", ".")
	v.SetDefault("receipt.output_dir", DefaultOutputDir)
	v.SetDefault("receipt.currency", entity.DefaultCurrency)
	v.SetDefault("receipt.settle_epsilon", "0.01")
	v.SetDefault("receipt.allow_negative_discount", false)
	v.SetDefault("receipt.block_overpayment", false)
	v.SetDefault("receipt.receipt_prefix", entity.DefaultReceiptPrefix)
	v.SetDefault("receipt.timezone", "UTC")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Credentials and deployment specific values
	_ = v.BindEnv("database.driver", "CLINIC_DB_DRIVER")
	_ = v.BindEnv("database.dsn", "CLINIC_DB_DSN")
	_ = v.BindEnv("database.path", "CLINIC_DB_PATH")
	_ = v.BindEnv("clinic.name", "CLINIC_NAME")
	_ = v.BindEnv("clinic.logo_path", "CLINIC_LOGO_PATH")
	_ = v.BindEnv("receipt.storage_root", "CLINIC_RECEIPT_ROOT")
	_ = v.BindEnv("receipt.timezone", "CLINIC_TIMEZONE")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite3 or mysql, got %q", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	eps, err := decimal.NewFromString(c.Receipt.SettleEpsilon)
	if err != nil {
		return fmt.Errorf("receipt.settle_epsilon is not a decimal: %w", err)
	}
	if eps.IsNegative() {
		return fmt.Errorf("receipt.settle_epsilon must not be negative")
	}
	if strings.TrimSpace(c.Receipt.Currency) == "" {
		return fmt.Errorf("receipt.currency is required")
	}
	if email := strings.TrimSpace(c.Clinic.Email); email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			return fmt.Errorf("clinic.email: %w", err)
		}
	}
	if strings.ContainsAny(c.Receipt.Prefix, "/ ") {
		return fmt.Errorf("receipt.receipt_prefix must not contain spaces or slashes")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(c.Receipt.Timezone)); err != nil {
		return fmt.Errorf("receipt.timezone: %w", err)
	}
	return nil
}

// Location returns the clinic timezone, UTC when it cannot be loaded
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Receipt.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// Policy returns the ledger policy configured under receipt
func (c *Config) Policy() entity.Policy {
	policy := entity.DefaultPolicy()
	if eps, err := decimal.NewFromString(c.Receipt.SettleEpsilon); err == nil {
		policy.SettleEpsilon = eps
	}
	policy.AllowNegativeDiscount = c.Receipt.AllowNegativeDiscount
	policy.BlockOverpayment = c.Receipt.BlockOverpayment
	policy.Location = c.Location()
	return policy
}

// ClinicProfile returns the configured clinic identity with the logo path resolved
func (c *Config) ClinicProfile() entity.ClinicProfile {
	profile := entity.ClinicProfile{
		Name:    strings.TrimSpace(c.Clinic.Name),
		Address: c.Clinic.Address,
		Phone:   strings.TrimSpace(c.Clinic.Phone),
		Email:   strings.TrimSpace(c.Clinic.Email),
	}
	if logo := strings.TrimSpace(c.Clinic.LogoPath); logo != "" {
		profile.LogoPath = c.ResolvePath(logo)
	}
	return profile
}

// ResolvePath makes p absolute against the config directory
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// Address returns host:port for the HTTP listener
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NormaliseOutputDir turns value into a slash separated directory inside root.
// Empty, "." and fully escaping values give DefaultOutputDir; ".." segments
// never climb above root; an absolute path outside root keeps only its last element.
func NormaliseOutputDir(value, root string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return DefaultOutputDir
	}

	if filepath.IsAbs(text) {
		if root != "" {
			if absRoot, err := filepath.Abs(root); err == nil {
				if rel, err := filepath.Rel(absRoot, filepath.Clean(text)); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
					text = rel
					return normaliseRelative(filepath.ToSlash(text))
				}
			}
		}
		base := filepath.Base(filepath.Clean(text))
		if base == string(filepath.Separator) || base == "." {
			return DefaultOutputDir
		}
		return normaliseRelative(base)
	}
	return normaliseRelative(filepath.ToSlash(text))
}

func normaliseRelative(p string) string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return DefaultOutputDir
	}
	return path.Join(parts...)
}
