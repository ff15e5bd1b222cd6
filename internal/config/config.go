package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// Storage
	StorageDriver string `mapstructure:"storage_driver" yaml:"storage_driver"`
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`

	// Session limits
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerSecond float64       `mapstructure:"messages_per_second" yaml:"messages_per_second"`
	MessageBurst      int           `mapstructure:"message_burst" yaml:"message_burst"`
	RoomGracePeriod   time.Duration `mapstructure:"room_grace_period" yaml:"room_grace_period"`

	// Cursor relay
	CursorTTL           time.Duration `mapstructure:"cursor_ttl" yaml:"cursor_ttl"`
	CursorSweepInterval time.Duration `mapstructure:"cursor_sweep_interval" yaml:"cursor_sweep_interval"`
	CursorMinInterval   time.Duration `mapstructure:"cursor_min_interval" yaml:"cursor_min_interval"`

	// Persistence retries
	SaveMaxRetries     uint64        `mapstructure:"save_max_retries" yaml:"save_max_retries"`
	SaveInitialBackoff time.Duration `mapstructure:"save_initial_backoff" yaml:"save_initial_backoff"`

	// JWT
	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience  string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL       time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	AuthRequired bool          `mapstructure:"auth_required" yaml:"auth_required"`

	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		StorageDriver: "sqlite",
		DatabasePath:  "wireboard.db",

		MaxMessageBytes:   1 << 20,
		MessagesPerSecond: 60,
		MessageBurst:      120,
		RoomGracePeriod:   30 * time.Second,

		CursorTTL:           2 * time.Second,
		CursorSweepInterval: time.Second,
		CursorMinInterval:   50 * time.Millisecond,

		SaveMaxRetries:     5,
		SaveInitialBackoff: 200 * time.Millisecond,

		JWTSecret:    "change-me-in-production",
		JWTIssuer:    "wireboard",
		JWTAudience:  "wireboard-clients",
		JWTTTL:       24 * time.Hour,
		AuthRequired: false,

		AllowedOrigins: []string{"*"},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.StorageDriver != "" {
		c.StorageDriver = other.StorageDriver
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MessagesPerSecond != 0 {
		c.MessagesPerSecond = other.MessagesPerSecond
	}
	if other.MessageBurst != 0 {
		c.MessageBurst = other.MessageBurst
	}
	if other.RoomGracePeriod != 0 {
		c.RoomGracePeriod = other.RoomGracePeriod
	}
	if other.CursorTTL != 0 {
		c.CursorTTL = other.CursorTTL
	}
	if other.CursorSweepInterval != 0 {
		c.CursorSweepInterval = other.CursorSweepInterval
	}
	if other.CursorMinInterval != 0 {
		c.CursorMinInterval = other.CursorMinInterval
	}
	if other.SaveMaxRetries != 0 {
		c.SaveMaxRetries = other.SaveMaxRetries
	}
	if other.SaveInitialBackoff != 0 {
		c.SaveInitialBackoff = other.SaveInitialBackoff
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.AuthRequired {
		c.AuthRequired = true
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
}
