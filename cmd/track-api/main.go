package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flybeeper/track-recorder/internal/config"
	"github.com/flybeeper/track-recorder/internal/handler"
	"github.com/flybeeper/track-recorder/internal/mqtt"
	"github.com/flybeeper/track-recorder/internal/repository"
	"github.com/flybeeper/track-recorder/internal/service"
	"github.com/flybeeper/track-recorder/internal/tracker"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

var (
	// Version будет установлен при сборке через ldflags
	Version = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.NewLogger(config.LogLevel(), config.LogFormat())
	utils.SetDefaultLogger(logger)
	logger.WithField("version", Version).
		WithField("environment", cfg.Environment).
		Info("Starting track recorder")

	recorder, err := service.NewRecorder(tracker.DefaultConfig(), logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize recorder")
	}

	// Публикация живой позиции в Redis (опционально)
	var (
		liveRepo   repository.LiveRepository
		liveWriter *service.LiveWriter
	)
	if cfg.RedisEnabled() {
		redisRepo, err := repository.NewRedisRepository(&cfg.Redis, logger)
		if err != nil {
			logger.WithField("error", err).Fatal("Failed to initialize Redis repository")
		}
		defer redisRepo.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisRepo.Ping(pingCtx); err != nil {
			logger.WithField("error", err).Warn("Redis is not reachable yet, live updates will be retried")
		} else {
			logger.Info("Connected to Redis")
		}
		pingCancel()

		liveRepo = redisRepo
		liveWriter = service.NewLiveWriter(redisRepo, logger, &service.LiveWriterConfig{
			BatchSize:     cfg.Performance.LiveBatchSize,
			FlushInterval: cfg.Performance.LiveFlushInterval,
			ChannelBuffer: cfg.Performance.LiveQueueSize,
			MaxRetries:    3,
			RetryDelay:    50 * time.Millisecond,
			FlushTimeout:  2 * time.Second,
		})
		recorder.AddListener(liveWriter)
	}

	// WebSocket трансляция позиции
	var hub *handler.LiveHub
	if cfg.Features.EnableWebSocket {
		hub = handler.NewLiveHub(recorder, logger.Entry(), cfg.Performance.WebSocketPingInterval, cfg.Performance.WebSocketPongTimeout)
		recorder.AddListener(hub)
	}

	server := handler.NewServer(cfg, recorder, liveRepo, hub, logger)

	// Прием фиксов из MQTT (опционально)
	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled() {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, logger, func(msg *mqtt.FixMessage) error {
			_, err := recorder.SubmitFix(service.SourceMQTT, msg.Fix)
			return err
		})
		if err != nil {
			logger.WithField("error", err).Fatal("Failed to initialize MQTT client")
		}

		if err := mqttClient.Connect(); err != nil {
			logger.WithField("error", err).Fatal("Failed to connect to MQTT broker")
		}
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithField("error", err).Fatal("Failed to start HTTP server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Сначала прекращаем прием фиксов, затем HTTP, затем дописываем очередь в Redis
	if mqttClient != nil {
		mqttClient.Disconnect()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err).Error("HTTP server shutdown error")
	}

	if liveWriter != nil {
		liveWriter.Stop()
	}

	logger.Info("Server stopped gracefully")
}
