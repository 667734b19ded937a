package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config: everything the server reads from the environment
type Config struct {
	Port           int
	Domains        []string
	JWTSecret      string
	TokenTTL       time.Duration
	LogLevel       string
	RedisAddr      string
	RedisChannel   string
	DatabaseURL    string
	MaxRoomSize    int
	MaxRooms       int
	MaxObjects     int
	MaxMessageSize int
	AuthTimeout    time.Duration
	CleanupEvery   time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("domains", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 15*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_channel", "collabboard:events")
	v.SetDefault("database_url", "")
	v.SetDefault("max_room_size", 50)
	v.SetDefault("max_rooms", 1000)
	v.SetDefault("max_objects", 5000)
	v.SetDefault("max_message_size", 1<<20)
	v.SetDefault("auth_timeout", 5*time.Second)
	v.SetDefault("cleanup_every", 5*time.Minute)
}

// Load: .env (if present) then process environment, over built-in defaults
func Load(files ...string) (*Config, error) {
	LoadDotEnv(files...)
	return FromViper(NewViper())
}

// LoadDotEnv: sets variables from .env files without overriding the environment.
// Missing files are fine, real deployments set the environment directly.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// NewViper: viper bound to the environment with defaults applied
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return v
}

// FromViper: reads and checks a Config
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetInt("port"),
		Domains:        splitList(v.GetString("domains")),
		JWTSecret:      v.GetString("jwt_secret"),
		TokenTTL:       v.GetDuration("token_ttl"),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
		RedisAddr:      v.GetString("redis_addr"),
		RedisChannel:   v.GetString("redis_channel"),
		DatabaseURL:    v.GetString("database_url"),
		MaxRoomSize:    v.GetInt("max_room_size"),
		MaxRooms:       v.GetInt("max_rooms"),
		MaxObjects:     v.GetInt("max_objects"),
		MaxMessageSize: v.GetInt("max_message_size"),
		AuthTimeout:    v.GetDuration("auth_timeout"),
		CleanupEvery:   v.GetDuration("cleanup_every"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate: rejects values the server cannot start with
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("AUTH_TIMEOUT must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// Addr: listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
