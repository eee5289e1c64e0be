package config

import (
	"errors"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type GRPCConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	Host                  string `mapstructure:"host"`
	Port                  string `mapstructure:"port"`
	EnableReflection      bool   `mapstructure:"enable_reflection"`
	MaxReceiveMessageSize int    `mapstructure:"max_receive_message_size"`
	MaxSendMessageSize    int    `mapstructure:"max_send_message_size"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	LogLevel string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type SecurityConfig struct {
	AppSecret          string        `mapstructure:"app_secret"`
	SessionCookieName  string        `mapstructure:"session_cookie_name"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	RememberCookieName string        `mapstructure:"remember_cookie_name"`
	RememberLifetime   time.Duration `mapstructure:"remember_lifetime"`
	LoginMaxAttempts   int           `mapstructure:"login_max_attempts"`
	LoginLockWindow    time.Duration `mapstructure:"login_lock_window"`
	ResetTokenLifetime time.Duration `mapstructure:"reset_token_lifetime"`
	PasswordMinLength  int           `mapstructure:"password_min_length"`
	ResetLinkBase      string        `mapstructure:"reset_link_base"`
}

// Validate rejects settings that would silently weaken the engine.
func (c SecurityConfig) Validate() error {
	if len(c.AppSecret) < 32 {
		return errors.New("security.app_secret must be at least 32 bytes")
	}
	if c.SessionCookieName == "" || c.RememberCookieName == "" {
		return errors.New("security cookie names are required")
	}
	if c.SessionCookieName == c.RememberCookieName {
		return errors.New("session and remember cookies must differ")
	}
	if c.RememberLifetime <= 0 || c.SessionIdleTimeout <= 0 {
		return errors.New("security session lifetimes must be positive")
	}
	if c.LoginMaxAttempts <= 0 || c.LoginLockWindow <= 0 {
		return errors.New("security login throttle must be positive")
	}
	if c.ResetTokenLifetime <= 0 {
		return errors.New("security.reset_token_lifetime must be positive")
	}
	if c.PasswordMinLength < 6 {
		return errors.New("security.password_min_length must be at least 6")
	}
	return nil
}

type ModulesConfig struct {
	Dir    string `mapstructure:"dir"`
	Strict bool   `mapstructure:"strict"`
}

type AuditConfig struct {
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// JanitorConfig controls the purge of spent tokens and stale login
// attempts. A zero interval disables it.
type JanitorConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
}

type AppConfig struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	GRPC        GRPCConfig     `mapstructure:"grpc"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Security    SecurityConfig `mapstructure:"security"`
	Modules     ModulesConfig  `mapstructure:"modules"`
	Audit       AuditConfig    `mapstructure:"audit"`
	Janitor     JanitorConfig  `mapstructure:"janitor"`
}
