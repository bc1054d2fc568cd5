package tracker

import (
	"fmt"
	"time"

	"github.com/flybeeper/track-recorder/internal/filter"
)

// Config пороги записи трека. Фиксируются при сборке, из окружения не читаются.
type Config struct {
	// Минимальное смещение (м) от последней точки пути для допуска по расстоянию
	DistanceThresholdMeters float64 `json:"distance_threshold_meters"`

	// Базовый интервал обновления
	MinUpdateInterval time.Duration `json:"min_update_interval"`

	// Максимальная точность (м), при которой допускается точка по расстоянию
	AccuracyThresholdMeters float64 `json:"accuracy_threshold_meters"`

	// Множитель интервала для допуска по времени
	FallbackIntervalFactor int `json:"fallback_interval_factor"`

	// Параметры фильтров
	Kalman        filter.KalmanConfig `json:"kalman"`
	AltitudeAlpha float64             `json:"altitude_alpha"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		DistanceThresholdMeters: 5,
		MinUpdateInterval:       5000 * time.Millisecond,
		AccuracyThresholdMeters: 20,
		FallbackIntervalFactor:  2,
		Kalman:                  filter.DefaultKalmanConfig(),
		AltitudeAlpha:           filter.DefaultAltitudeAlpha,
	}
}

// FallbackInterval интервал, после которого точка допускается независимо от смещения
func (c Config) FallbackInterval() time.Duration {
	return c.MinUpdateInterval * time.Duration(c.FallbackIntervalFactor)
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.DistanceThresholdMeters < 0 {
		return fmt.Errorf("distance threshold must not be negative")
	}
	if c.MinUpdateInterval <= 0 {
		return fmt.Errorf("min update interval must be positive")
	}
	if c.AccuracyThresholdMeters <= 0 {
		return fmt.Errorf("accuracy threshold must be positive")
	}
	if c.FallbackIntervalFactor < 1 {
		return fmt.Errorf("fallback interval factor must be at least 1")
	}
	if c.AltitudeAlpha <= 0 || c.AltitudeAlpha > 1 {
		return fmt.Errorf("altitude alpha must be within (0, 1]")
	}
	if err := c.Kalman.Validate(); err != nil {
		return fmt.Errorf("kalman: %w", err)
	}
	return nil
}
