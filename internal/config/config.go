package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// AuthRateLimit caps register/login requests per minute. Zero disables it.
	AuthRateLimit int `mapstructure:"auth_rate_limit" yaml:"auth_rate_limit"`

	Realtime Realtime `mapstructure:"realtime" yaml:"realtime"`
	Avatar   Avatar   `mapstructure:"avatar" yaml:"avatar"`
}

// Realtime holds knobs for the event distribution layer.
type Realtime struct {
	// OriginLimit caps concurrently admitted connections per network origin.
	OriginLimit int `mapstructure:"origin_limit" yaml:"origin_limit"`
	// HeartbeatInterval is the period between liveness probes.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	// SendTimeout bounds a single frame write or probe during fan-out.
	SendTimeout time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
	// DevSubprotocol names the reserved subprotocol that bypasses workspace
	// validation so a dev server's live-reload socket can pass through.
	DevSubprotocol string `mapstructure:"dev_subprotocol" yaml:"dev_subprotocol"`
}

// Avatar configures the external retrieval pipeline producing AI replies.
type Avatar struct {
	// Command is the pipeline argv; the prompt is appended as the last argument.
	// Empty disables the avatar.
	Command []string `mapstructure:"command" yaml:"command"`
	// Timeout bounds a single pipeline invocation.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "crewchat.db",
		LogLevel:          "info",
		JWTSecret:         "",
		JWTIssuer:         "crewchat",
		JWTAudience:       "crewchat",
		JWTTTL:            24 * time.Hour,
		AuthRateLimit:     30,
		Realtime: Realtime{
			OriginLimit:       3,
			HeartbeatInterval: 30 * time.Second,
			SendTimeout:       5 * time.Second,
			DevSubprotocol:    "vite-hmr",
		},
		Avatar: Avatar{
			Timeout: 30 * time.Second,
		},
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
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
}
