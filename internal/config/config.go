package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Broker    BrokerConfig
	Services  ServicesConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BrokerConfig struct {
	Queue       string
	Concurrency int
	MaxRetry    int
}

// ServicesConfig holds the upstream microservice endpoints the gateway
// fronts, plus the shared HTTP client settings.
type ServicesConfig struct {
	CollectorURL string
	ScriptGenURL string
	TimeoutSec   int
	MaxRetries   int
}

type RateLimitConfig struct {
	SubmitPerMin int
	ConfigPerMin int
}

type CORSConfig struct {
	Origins string
}

func Load() (*Config, error) {
	readSecret("REDIS_PASSWORD")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("broker.queue", "BROKER_QUEUE")
	_ = viper.BindEnv("broker.concurrency", "BROKER_CONCURRENCY")
	_ = viper.BindEnv("broker.max_retry", "BROKER_MAX_RETRY")
	_ = viper.BindEnv("services.collector_url", "DATA_COLLECTOR_URL")
	_ = viper.BindEnv("services.scriptgen_url", "SCRIPT_GENERATOR_URL")
	_ = viper.BindEnv("services.timeout", "SERVICE_TIMEOUT")
	_ = viper.BindEnv("services.max_retries", "SERVICE_MAX_RETRIES")
	_ = viper.BindEnv("ratelimit.submit_per_min", "RATE_LIMIT_SUBMIT_PER_MIN")
	_ = viper.BindEnv("ratelimit.config_per_min", "RATE_LIMIT_CONFIG_PER_MIN")
	_ = viper.BindEnv("cors.origins", "CORS_ORIGINS")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("broker.queue", "script_events")
	viper.SetDefault("broker.concurrency", 10)
	viper.SetDefault("broker.max_retry", 3)
	viper.SetDefault("services.collector_url", "http://localhost:8001")
	viper.SetDefault("services.scriptgen_url", "http://localhost:8002")
	viper.SetDefault("services.timeout", 30)
	viper.SetDefault("services.max_retries", 3)
	viper.SetDefault("ratelimit.submit_per_min", 30)
	viper.SetDefault("ratelimit.config_per_min", 60)
	viper.SetDefault("cors.origins", "*")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Broker: BrokerConfig{
			Queue:       viper.GetString("broker.queue"),
			Concurrency: viper.GetInt("broker.concurrency"),
			MaxRetry:    viper.GetInt("broker.max_retry"),
		},
		Services: ServicesConfig{
			CollectorURL: viper.GetString("services.collector_url"),
			ScriptGenURL: viper.GetString("services.scriptgen_url"),
			TimeoutSec:   viper.GetInt("services.timeout"),
			MaxRetries:   viper.GetInt("services.max_retries"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerMin: viper.GetInt("ratelimit.submit_per_min"),
			ConfigPerMin: viper.GetInt("ratelimit.config_per_min"),
		},
		CORS: CORSConfig{
			Origins: viper.GetString("cors.origins"),
		},
	}

	return cfg, nil
}
