package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/elskow/backoffice/internal/config"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const envPrefix = "BACKOFFICE"

func LoadConfig() (*config.AppConfig, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	dir := os.Getenv("BACKOFFICE_CONFIG_DIR")
	if dir == "" {
		dir = "./config/server"
	}

	return loadConfig(env, dir)
}

func loadConfig(env, dir string) (*config.AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg config.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Load environment-specific configurations
	if envSettings := v.GetStringMap(fmt.Sprintf("grpc.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("grpc.%s", env), &cfg.GRPC); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}
	if envSettings := v.GetStringMap(fmt.Sprintf("security.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("security.%s", env), &cfg.Security); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}

	cfg.Environment = env

	if err := cfg.Security.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", "9090")
	v.SetDefault("grpc.max_receive_message_size", 4<<20)
	v.SetDefault("grpc.max_send_message_size", 4<<20)

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "backoffice")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.key_prefix", "bo")

	v.SetDefault("security.app_secret", "")
	v.SetDefault("security.session_cookie_name", "backoffice_sid")
	v.SetDefault("security.session_idle_timeout", 2*time.Hour)
	v.SetDefault("security.remember_cookie_name", "remember")
	v.SetDefault("security.remember_lifetime", 14*24*time.Hour)
	v.SetDefault("security.login_max_attempts", 7)
	v.SetDefault("security.login_lock_window", 15*time.Minute)
	v.SetDefault("security.reset_token_lifetime", 30*time.Minute)
	v.SetDefault("security.password_min_length", 6)
	v.SetDefault("security.reset_link_base", "/adm/auth?view=reset")

	v.SetDefault("modules.dir", "./modules")

	v.SetDefault("audit.buffer_size", 256)
	v.SetDefault("audit.drop_if_full", true)

	v.SetDefault("janitor.interval", time.Hour)
	v.SetDefault("janitor.retention", 7*24*time.Hour)
}
