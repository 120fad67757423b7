package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string
	Environment      string
	AllowedOrigins   []string
	AllowCredentials bool

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaGroupID string

	GatewayBaseURL string
	GatewayTimeout time.Duration

	SweepInterval  time.Duration
	WriteDeadline  time.Duration
	MaxMessageSize int64
}

// Load reads configuration from the environment, with a local .env file
// applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8082")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("ALLOW_CREDENTIALS", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_ID", "supportchat-ws-group")
	v.SetDefault("GATEWAY_BASE_URL", "http://localhost:8080")
	v.SetDefault("GATEWAY_TIMEOUT_SECONDS", 8)
	v.SetDefault("SWEEP_INTERVAL_SECONDS", 30)
	v.SetDefault("WRITE_DEADLINE_SECONDS", 10)
	v.SetDefault("MAX_MESSAGE_SIZE_BYTES", 64*1024)

	cfg := &Config{
		Port:             v.GetString("PORT"),
		Environment:      v.GetString("ENVIRONMENT"),
		AllowedOrigins:   splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		AllowCredentials: v.GetBool("ALLOW_CREDENTIALS"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		KafkaBrokers:     splitAndTrim(v.GetString("KAFKA_BROKERS")),
		KafkaGroupID:     v.GetString("KAFKA_GROUP_ID"),
		GatewayBaseURL:   v.GetString("GATEWAY_BASE_URL"),
		GatewayTimeout:   time.Duration(v.GetInt("GATEWAY_TIMEOUT_SECONDS")) * time.Second,
		SweepInterval:    time.Duration(v.GetInt("SWEEP_INTERVAL_SECONDS")) * time.Second,
		WriteDeadline:    time.Duration(v.GetInt("WRITE_DEADLINE_SECONDS")) * time.Second,
		MaxMessageSize:   v.GetInt64("MAX_MESSAGE_SIZE_BYTES"),
	}
	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// CORSOrigins returns the origin list as the comma-separated string the
// CORS middleware expects. Production never falls back to the wildcard.
func (c *Config) CORSOrigins() string {
	if c.IsProduction() && len(c.AllowedOrigins) > 0 && c.AllowedOrigins[0] != "*" {
		return strings.Join(c.AllowedOrigins, ",")
	}
	return "*"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
