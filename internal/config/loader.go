package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "WIREBOARD"
	envConfigDefaultPath = "WIREBOARD_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load resolves the config file, layers it over Default() and the WIREBOARD_*
// environment, and validates the result. A missing file is created with the
// defaults so operators have something to edit. The resolved path is returned.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()
	path := resolveConfigPath(explicitPath)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := readConfigFile(v, path, cfg, logger); err != nil {
		return cfg, path, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, path, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, path, nil
}

func readConfigFile(v *viper.Viper, path string, cfg Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := writeDefaultConfig(path, cfg); err != nil {
		// Defaults and env still apply without a file.
		logger.Warn().Err(err).Str("path", path).Msg("could not write default config")
		return nil
	}
	logger.Info().Str("path", path).Msg("wrote default config")
	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("re-read default config")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("storage_driver", cfg.StorageDriver)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("messages_per_second", cfg.MessagesPerSecond)
	v.SetDefault("message_burst", cfg.MessageBurst)
	v.SetDefault("room_grace_period", cfg.RoomGracePeriod)
	v.SetDefault("cursor_ttl", cfg.CursorTTL)
	v.SetDefault("cursor_sweep_interval", cfg.CursorSweepInterval)
	v.SetDefault("cursor_min_interval", cfg.CursorMinInterval)
	v.SetDefault("save_max_retries", cfg.SaveMaxRetries)
	v.SetDefault("save_initial_backoff", cfg.SaveInitialBackoff)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)
	v.SetDefault("jwt_ttl", cfg.JWTTTL)
	v.SetDefault("auth_required", cfg.AuthRequired)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage_driver %q", c.StorageDriver)
	}
	if c.StorageDriver == "sqlite" && c.DatabasePath == "" {
		return errors.New("database_path is required for sqlite storage")
	}
	if c.CursorTTL <= 0 || c.CursorSweepInterval <= 0 {
		return errors.New("cursor_ttl and cursor_sweep_interval must be positive")
	}
	if c.MaxMessageBytes <= 0 {
		return errors.New("max_message_bytes must be positive")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	return nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
