package repository

import (
	"context"

	"github.com/flybeeper/track-recorder/internal/models"
)

// LiveRepository интерфейс хранилища живой позиции
type LiveRepository interface {
	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	// Публикация обновлений подписчикам и сохранение текущей позиции
	Publish(ctx context.Context, update models.LiveUpdate) error
	PublishBatch(ctx context.Context, updates []models.LiveUpdate) error

	// Последнее обновление сессии; nil если ключ истек
	Current(ctx context.Context, sessionID string) (*models.LiveUpdate, error)
}
