package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит конфигурацию приложения.
// Пороги записи трека здесь намеренно отсутствуют: они фиксируются при сборке (tracker.DefaultConfig).
type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	Auth        AuthConfig
	Performance PerformanceConfig
	Monitoring  MonitoringConfig
	Features    FeaturesConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Address        string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// RedisConfig конфигурация Redis (пустой URL отключает публикацию позиции)
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Channel      string
	CurrentTTL   time.Duration
}

// MQTTConfig конфигурация MQTT (пустой URL отключает прием фиксов из брокера)
type MQTTConfig struct {
	URL          string
	ClientID     string
	Username     string
	Password     string
	CleanSession bool
	OrderMatters bool
	Topic        string
}

// AuthConfig конфигурация аутентификации
type AuthConfig struct {
	Token string // Bearer токен для изменяющих запросов; пустой отключает проверку
}

// PerformanceConfig конфигурация производительности
type PerformanceConfig struct {
	RateLimitRPS          float64
	RateLimitBurst        int
	LiveBatchSize         int
	LiveFlushInterval     time.Duration
	LiveQueueSize         int
	WebSocketPingInterval time.Duration
	WebSocketPongTimeout  time.Duration
}

// MonitoringConfig конфигурация мониторинга
type MonitoringConfig struct {
	MetricsEnabled bool
}

// FeaturesConfig флаги функций
type FeaturesConfig struct {
	EnableLivePublish bool
	EnableWebSocket   bool
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:        getEnv("SERVER_ADDRESS", ":8090"),
			Port:           getEnv("SERVER_PORT", "8090"),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:    getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			AllowedOrigins: getList("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getInt("REDIS_DB", 0),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			Channel:      getEnv("REDIS_LIVE_CHANNEL", "track:live"),
			CurrentTTL:   getDuration("REDIS_CURRENT_TTL", 5*time.Minute),
		},
		MQTT: MQTTConfig{
			URL:          getEnv("MQTT_URL", ""),
			ClientID:     getEnv("MQTT_CLIENT_ID", "track-api"),
			Username:     getEnv("MQTT_USERNAME", ""),
			Password:     getEnv("MQTT_PASSWORD", ""),
			CleanSession: getBool("MQTT_CLEAN_SESSION", true),
			OrderMatters: getBool("MQTT_ORDER_MATTERS", true),
			Topic:        getEnv("MQTT_TOPIC", "tracker/+/fix"),
		},
		Auth: AuthConfig{
			Token: getEnv("AUTH_TOKEN", ""),
		},
		Performance: PerformanceConfig{
			RateLimitRPS:          getFloat("RATE_LIMIT_RPS", 50),
			RateLimitBurst:        getInt("RATE_LIMIT_BURST", 100),
			LiveBatchSize:         getInt("LIVE_BATCH_SIZE", 50),
			LiveFlushInterval:     getDuration("LIVE_FLUSH_INTERVAL", 250*time.Millisecond),
			LiveQueueSize:         getInt("LIVE_QUEUE_SIZE", 1024),
			WebSocketPingInterval: getDuration("WEBSOCKET_PING_INTERVAL", 30*time.Second),
			WebSocketPongTimeout:  getDuration("WEBSOCKET_PONG_TIMEOUT", 60*time.Second),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
		},
		Features: FeaturesConfig{
			EnableLivePublish: getBool("ENABLE_LIVE_PUBLISH", true),
			EnableWebSocket:   getBool("ENABLE_WEBSOCKET", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.MQTT.URL != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("MQTT_TOPIC is required when MQTT_URL is set")
	}

	if c.Redis.URL != "" && c.Redis.Channel == "" {
		return fmt.Errorf("REDIS_LIVE_CHANNEL is required when REDIS_URL is set")
	}

	if c.Redis.CurrentTTL <= 0 {
		return fmt.Errorf("REDIS_CURRENT_TTL must be positive")
	}

	if c.Performance.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}

	if c.Performance.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive")
	}

	if c.Performance.LiveBatchSize <= 0 {
		return fmt.Errorf("LIVE_BATCH_SIZE must be positive")
	}

	if c.Performance.LiveQueueSize <= 0 {
		return fmt.Errorf("LIVE_QUEUE_SIZE must be positive")
	}

	return nil
}

// MQTTEnabled прием фиксов из брокера включен
func (c *Config) MQTTEnabled() bool {
	return c.MQTT.URL != ""
}

// RedisEnabled публикация живой позиции в Redis включена
func (c *Config) RedisEnabled() bool {
	return c.Redis.URL != "" && c.Features.EnableLivePublish
}

// Helper функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// LogLevel возвращает уровень логирования
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// LogFormat возвращает формат логирования
func LogFormat() string {
	return getEnv("LOG_FORMAT", "json")
}
