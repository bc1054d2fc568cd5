package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flybeeper/track-recorder/internal/config"
	"github.com/flybeeper/track-recorder/internal/metrics"
	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

const (
	// Префикс ключа текущей позиции сессии: track:current:{session_id}
	CurrentPrefix = "track:current:"

	// Счетчики публикаций
	StatsPrefix = "stats:"

	DefaultChannel    = "track:live"
	DefaultCurrentTTL = 5 * time.Minute
)

// RedisRepository публикует живую позицию через Redis Pub/Sub
// и хранит последнее обновление сессии с коротким TTL
type RedisRepository struct {
	client     *redis.Client
	logger     *utils.Logger
	channel    string
	currentTTL time.Duration
}

// NewRedisRepository создает новый Redis репозиторий
func NewRedisRepository(cfg *config.RedisConfig, logger *utils.Logger) (*RedisRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.MinIdleConns = cfg.MinIdleConns
	opt.ConnMaxIdleTime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	return NewRedisRepositoryWithClient(redis.NewClient(opt), cfg.Channel, cfg.CurrentTTL, logger), nil
}

// NewRedisRepositoryWithClient оборачивает готовый клиент
func NewRedisRepositoryWithClient(client *redis.Client, channel string, currentTTL time.Duration, logger *utils.Logger) *RedisRepository {
	if channel == "" {
		channel = DefaultChannel
	}
	if currentTTL <= 0 {
		currentTTL = DefaultCurrentTTL
	}
	return &RedisRepository{
		client:     client,
		logger:     logger,
		channel:    channel,
		currentTTL: currentTTL,
	}
}

// Ping проверяет соединение с Redis
func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Channel возвращает канал публикации
func (r *RedisRepository) Channel() string {
	return r.channel
}

// Publish публикует одно обновление
func (r *RedisRepository) Publish(ctx context.Context, update models.LiveUpdate) error {
	return r.PublishBatch(ctx, []models.LiveUpdate{update})
}

// PublishBatch публикует обновления одним pipeline: PUBLISH на каждое
// обновление и SET текущей позиции по последнему обновлению каждой сессии
func (r *RedisRepository) PublishBatch(ctx context.Context, updates []models.LiveUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	start := time.Now()
	pipe := r.client.Pipeline()

	latest := make(map[string][]byte)
	for _, update := range updates {
		data, err := json.Marshal(update)
		if err != nil {
			return fmt.Errorf("failed to marshal live update: %w", err)
		}
		pipe.Publish(ctx, r.channel, data)
		if update.SessionID != "" {
			latest[update.SessionID] = data
		}
	}

	for sessionID, data := range latest {
		pipe.Set(ctx, CurrentPrefix+sessionID, data, r.currentTTL)
	}
	pipe.IncrBy(ctx, StatsPrefix+"live:published", int64(len(updates)))

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisPublishErrors.Inc()
		return fmt.Errorf("failed to publish live updates: %w", err)
	}

	r.logger.WithField("updates", len(updates)).
		WithField("sessions", len(latest)).
		Debug("Published live updates to Redis")

	metrics.RedisOperationDuration.WithLabelValues("publish_batch").Observe(time.Since(start).Seconds())
	return nil
}

// Current возвращает последнее опубликованное обновление сессии
func (r *RedisRepository) Current(ctx context.Context, sessionID string) (*models.LiveUpdate, error) {
	start := time.Now()
	defer func() {
		metrics.RedisOperationDuration.WithLabelValues("get_current").Observe(time.Since(start).Seconds())
	}()

	data, err := r.client.Get(ctx, CurrentPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current position: %w", err)
	}

	var update models.LiveUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current position: %w", err)
	}
	return &update, nil
}

// GetStats возвращает статистику публикаций
func (r *RedisRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	published, err := r.client.Get(ctx, StatsPrefix+"live:published").Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return map[string]interface{}{
		"channel":        r.channel,
		"published":      published,
		"current_ttl_ms": r.currentTTL.Milliseconds(),
	}, nil
}
