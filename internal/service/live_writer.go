package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

// LivePublisher приемник батчей живых обновлений (Redis)
type LivePublisher interface {
	PublishBatch(ctx context.Context, updates []models.LiveUpdate) error
}

// LiveWriter асинхронно публикует живые обновления батчами.
// Реализует Listener: постановка в очередь не блокирует рекордер,
// при переполнении очереди обновление отбрасывается.
type LiveWriter struct {
	publisher LivePublisher
	logger    *utils.Logger
	config    *LiveWriterConfig

	updates chan models.LiveUpdate
	buffer  []models.LiveUpdate

	// Контроль жизненного цикла
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	metrics *LiveWriterMetrics
}

// LiveWriterConfig конфигурация публикации
type LiveWriterConfig struct {
	BatchSize     int           `json:"batch_size"`     // Размер батча
	FlushInterval time.Duration `json:"flush_interval"` // Интервал принудительного flush
	ChannelBuffer int           `json:"channel_buffer"` // Размер буфера канала
	MaxRetries    int           `json:"max_retries"`    // Максимум повторов
	RetryDelay    time.Duration `json:"retry_delay"`    // Задержка между повторами
	FlushTimeout  time.Duration `json:"flush_timeout"`  // Таймаут одной публикации
}

// LiveWriterMetrics счетчики публикации
type LiveWriterMetrics struct {
	mu sync.RWMutex

	Queued    int64 `json:"queued"`
	Dropped   int64 `json:"dropped"`
	Batches   int64 `json:"batches"`
	Published int64 `json:"published"`
	Errors    int64 `json:"errors"`

	QueueDepth        int64         `json:"queue_depth"`
	LastFlushDuration time.Duration `json:"last_flush_duration"`
	LastBatchSize     int           `json:"last_batch_size"`
}

// DefaultLiveWriterConfig возвращает конфигурацию по умолчанию
func DefaultLiveWriterConfig() *LiveWriterConfig {
	return &LiveWriterConfig{
		BatchSize:     50,
		FlushInterval: 250 * time.Millisecond,
		ChannelBuffer: 1024,
		MaxRetries:    3,
		RetryDelay:    50 * time.Millisecond,
		FlushTimeout:  2 * time.Second,
	}
}

// NewLiveWriter создает и запускает LiveWriter
func NewLiveWriter(publisher LivePublisher, logger *utils.Logger, config *LiveWriterConfig) *LiveWriter {
	if config == nil {
		config = DefaultLiveWriterConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	lw := &LiveWriter{
		publisher: publisher,
		logger:    logger,
		config:    config,
		updates:   make(chan models.LiveUpdate, config.ChannelBuffer),
		buffer:    make([]models.LiveUpdate, 0, config.BatchSize),
		ctx:       ctx,
		cancel:    cancel,
		metrics:   &LiveWriterMetrics{},
	}

	lw.wg.Add(1)
	go lw.worker()

	logger.WithField("batch_size", config.BatchSize).
		WithField("flush_interval", config.FlushInterval).
		Info("Started live update writer")

	return lw
}

// OnUpdate ставит обновление в очередь
func (lw *LiveWriter) OnUpdate(update models.LiveUpdate) {
	if err := lw.Queue(update); err != nil {
		lw.logger.WithError(err).
			WithField("kind", string(update.Kind)).
			Debug("Dropped live update")
	}
}

// Queue добавляет обновление в очередь без блокировки
func (lw *LiveWriter) Queue(update models.LiveUpdate) error {
	select {
	case <-lw.ctx.Done():
		return fmt.Errorf("live writer is shutting down")
	default:
	}

	select {
	case lw.updates <- update:
		lw.metrics.mu.Lock()
		lw.metrics.Queued++
		lw.metrics.QueueDepth = int64(len(lw.updates))
		lw.metrics.mu.Unlock()
		return nil
	default:
		lw.metrics.mu.Lock()
		lw.metrics.Dropped++
		lw.metrics.mu.Unlock()
		return fmt.Errorf("live update queue is full")
	}
}

func (lw *LiveWriter) worker() {
	defer lw.wg.Done()

	ticker := time.NewTicker(lw.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case update := <-lw.updates:
			lw.buffer = append(lw.buffer, update)
			if len(lw.buffer) >= lw.config.BatchSize {
				lw.flush()
			}

		case <-ticker.C:
			if len(lw.buffer) > 0 {
				lw.flush()
			}

		case <-lw.ctx.Done():
			lw.drain()
			return
		}
	}
}

// drain дочитывает очередь после остановки, соблюдая размер батча
func (lw *LiveWriter) drain() {
	for {
		select {
		case update := <-lw.updates:
			lw.buffer = append(lw.buffer, update)
			if len(lw.buffer) >= lw.config.BatchSize {
				lw.flush()
			}
		default:
			if len(lw.buffer) > 0 {
				lw.flush()
			}
			return
		}
	}
}

// flush публикует буфер. Контекст публикации не зависит от lw.ctx,
// чтобы остаток ушел и после Stop.
func (lw *LiveWriter) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), lw.config.FlushTimeout)
	defer cancel()

	start := time.Now()
	batch := make([]models.LiveUpdate, len(lw.buffer))
	copy(batch, lw.buffer)
	lw.buffer = lw.buffer[:0]

	err := lw.retryOperation(ctx, func() error {
		return lw.publisher.PublishBatch(ctx, batch)
	})

	duration := time.Since(start)

	lw.metrics.mu.Lock()
	if err != nil {
		lw.metrics.Errors += int64(len(batch))
		lw.logger.WithField("batch_size", len(batch)).
			WithField("duration", duration).
			WithError(err).
			Error("Failed to publish live updates")
	} else {
		lw.metrics.Batches++
		lw.metrics.Published += int64(len(batch))
		lw.logger.WithField("batch_size", len(batch)).
			WithField("duration", duration).
			Debug("Published live updates batch")
	}
	lw.metrics.LastFlushDuration = duration
	lw.metrics.LastBatchSize = len(batch)
	lw.metrics.mu.Unlock()
}

func (lw *LiveWriter) retryOperation(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= lw.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(lw.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		lw.logger.WithField("attempt", attempt+1).
			WithField("max_retries", lw.config.MaxRetries).
			WithError(lastErr).
			Warn("Live publish failed, retrying")
	}

	return fmt.Errorf("operation failed after %d retries: %w", lw.config.MaxRetries, lastErr)
}

// GetMetrics возвращает копию счетчиков
func (lw *LiveWriter) GetMetrics() LiveWriterMetrics {
	lw.metrics.mu.RLock()
	defer lw.metrics.mu.RUnlock()

	return LiveWriterMetrics{
		Queued:            lw.metrics.Queued,
		Dropped:           lw.metrics.Dropped,
		Batches:           lw.metrics.Batches,
		Published:         lw.metrics.Published,
		Errors:            lw.metrics.Errors,
		QueueDepth:        int64(len(lw.updates)),
		LastFlushDuration: lw.metrics.LastFlushDuration,
		LastBatchSize:     lw.metrics.LastBatchSize,
	}
}

// Stop останавливает LiveWriter, публикуя накопленные обновления
func (lw *LiveWriter) Stop() {
	lw.stopOnce.Do(func() {
		lw.logger.Info("Stopping live update writer...")
		lw.cancel()
		lw.wg.Wait()
		lw.logger.Info("Live update writer stopped")
	})
}
