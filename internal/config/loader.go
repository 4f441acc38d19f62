package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// EnvPrefix is prepended to environment overrides, e.g. BACKUPCTL_DATABASE_URL.
const EnvPrefix = "BACKUPCTL"

// Config represents the top-level YAML configuration file.
type Config struct {
	Backup   BackupConfig   `mapstructure:"backup"   yaml:"backup"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Vault    VaultConfig    `mapstructure:"vault"    yaml:"vault"`
	Offsite  OffsiteConfig  `mapstructure:"offsite"  yaml:"offsite"`
	Log      LogConfig      `mapstructure:"log"      yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// BackupConfig contains global backup options.
type BackupConfig struct {
	Directory     string        `mapstructure:"directory"      yaml:"directory"`
	MaxBackups    int           `mapstructure:"max_backups"    yaml:"max_backups"`
	Compress      bool          `mapstructure:"compress"       yaml:"compress"`
	Timeout       time.Duration `mapstructure:"timeout"        yaml:"timeout"`
	LockDirectory string        `mapstructure:"lock_directory" yaml:"lock_directory,omitempty"`
}

// DatabaseConfig describes the database being backed up.
type DatabaseConfig struct {
	URL               string `mapstructure:"url"                yaml:"url"`
	IncrementalColumn string `mapstructure:"incremental_column" yaml:"incremental_column,omitempty"`
	DumpBinary        string `mapstructure:"dump_binary"        yaml:"dump_binary,omitempty"`
	RestoreBinary     string `mapstructure:"restore_binary"     yaml:"restore_binary,omitempty"`
}

// MetadataConfig selects where backup records are persisted.
type MetadataConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn"    yaml:"dsn"`
}

// ScheduleConfig holds the automatic backup interval. Zero disables scheduling.
type ScheduleConfig struct {
	IntervalHours int `mapstructure:"interval_hours" yaml:"interval_hours"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
type VaultConfig struct {
	Address         string `mapstructure:"address"          yaml:"address,omitempty"`
	Token           string `mapstructure:"token"            yaml:"token,omitempty"`
	RoleID          string `mapstructure:"role_id"          yaml:"role_id,omitempty"`
	RoleName        string `mapstructure:"role_name"        yaml:"role_name,omitempty"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path,omitempty"`
}

// Enabled reports whether database credentials should come from Vault.
func (v VaultConfig) Enabled() bool { return v.CredentialsPath != "" }

// OffsiteConfig configures the optional S3-compatible mirror of backup artifacts.
type OffsiteConfig struct {
	Enabled   bool   `mapstructure:"enabled"    yaml:"enabled"`
	Endpoint  string `mapstructure:"endpoint"   yaml:"endpoint,omitempty"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	Bucket    string `mapstructure:"bucket"     yaml:"bucket,omitempty"`
	Prefix    string `mapstructure:"prefix"     yaml:"prefix,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backup.directory", "./backups")
	v.SetDefault("backup.max_backups", 10)
	v.SetDefault("backup.compress", false)
	v.SetDefault("backup.timeout", time.Hour)
	v.SetDefault("backup.lock_directory", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.incremental_column", "")
	v.SetDefault("database.dump_binary", "")
	v.SetDefault("database.restore_binary", "")
	v.SetDefault("metadata.driver", "sqlite")
	v.SetDefault("metadata.dsn", "")
	v.SetDefault("schedule.interval_hours", 0)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.role_id", "")
	v.SetDefault("vault.role_name", "")
	v.SetDefault("vault.credentials_path", "")
	v.SetDefault("offsite.enabled", false)
	v.SetDefault("offsite.endpoint", "")
	v.SetDefault("offsite.access_key", "")
	v.SetDefault("offsite.secret_key", "")
	v.SetDefault("offsite.bucket", "")
	v.SetDefault("offsite.prefix", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "development")
	v.SetDefault("metrics.listen", "")
}

// Load reads the configuration from the given YAML file using Viper, applies
// defaults and BACKUPCTL_* environment overrides, then validates the result.
// An empty path loads defaults and environment only.
func (c *Config) Load(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	if c.Metadata.DSN == "" && c.Metadata.Driver == "sqlite" {
		c.Metadata.DSN = strings.TrimRight(c.Backup.Directory, "/") + "/metadata.db"
	}
	if c.Backup.LockDirectory == "" {
		c.Backup.LockDirectory = c.Backup.Directory
	}

	return c.Validate()
}

// Validate checks the loaded configuration for values the backup subsystem
// cannot work with.
func (c *Config) Validate() error {
	var problems []string
	if c.Backup.Directory == "" {
		problems = append(problems, "backup.directory is required")
	}
	if c.Backup.MaxBackups < 1 {
		problems = append(problems, "backup.max_backups must be at least 1")
	}
	if c.Backup.Timeout <= 0 {
		problems = append(problems, "backup.timeout must be positive")
	}
	if c.Database.URL == "" {
		problems = append(problems, "database.url is required")
	}
	switch c.Metadata.Driver {
	case "sqlite", "mysql":
	default:
		problems = append(problems, fmt.Sprintf("metadata.driver %q is not supported", c.Metadata.Driver))
	}
	if c.Metadata.DSN == "" {
		problems = append(problems, "metadata.dsn is required")
	}
	if h := c.Schedule.IntervalHours; h != 0 && (h < 1 || h > 168) {
		problems = append(problems, "schedule.interval_hours must be between 1 and 168")
	}
	if c.Offsite.Enabled && (c.Offsite.Endpoint == "" || c.Offsite.Bucket == "") {
		problems = append(problems, "offsite.endpoint and offsite.bucket are required when offsite is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidateConfig, strings.Join(problems, "; "))
	}
	return nil
}
