package filter

import (
	"fmt"

	"github.com/flybeeper/track-recorder/internal/models"
)

// PositionFilter потоковый фильтр горизонтальной позиции
type PositionFilter interface {
	// Filter принимает сырой фикс и возвращает сглаженную позицию
	Filter(raw models.GeoPoint, timestampMs int64, accuracyMeters float64) models.GeoPoint

	// Reset сбрасывает состояние (только при старте новой сессии)
	Reset()

	// Name возвращает имя фильтра
	Name() string
}

// ValueFilter потоковый фильтр скалярной величины (высота)
type ValueFilter interface {
	Filter(value float64) float64
	Reset()
	Name() string
}

// KalmanConfig параметры адаптивного фильтра позиции
type KalmanConfig struct {
	// Шум процесса: насколько доверяем модели движения
	ProcessNoise float64 `json:"process_noise"`

	// Шум измерения: насколько доверяем GPS
	MeasurementNoise float64 `json:"measurement_noise"`

	// Порог точности (м), относительно которого нормируется accuracyFactor
	AccuracyThresholdMeters float64 `json:"accuracy_threshold_meters"`

	// Начальная неопределенность позиции по каждой оси
	InitialUncertainty float64 `json:"initial_uncertainty"`

	// Вес нового значения при сглаживании скорости и курса
	SpeedSmoothing   float64 `json:"speed_smoothing"`
	HeadingSmoothing float64 `json:"heading_smoothing"`

	// Доля проекции по курсу, подмешиваемая при быстром движении
	HeadingBlend float64 `json:"heading_blend"`

	// Скорость (м/с), выше которой включается подмешивание проекции по курсу
	HeadingMinSpeed float64 `json:"heading_min_speed"`

	// Скорость (м/с), при которой шум измерения удваивается
	SpeedNoiseScale float64 `json:"speed_noise_scale"`

	// Минимальный dt (с) при неположительной разнице времени
	MinDtSeconds float64 `json:"min_dt_seconds"`
}

// DefaultKalmanConfig возвращает конфигурацию по умолчанию
func DefaultKalmanConfig() KalmanConfig {
	return KalmanConfig{
		ProcessNoise:            0.0015,
		MeasurementNoise:        1.2,
		AccuracyThresholdMeters: 20,
		InitialUncertainty:      1.0,
		SpeedSmoothing:          0.3,
		HeadingSmoothing:        0.3,
		HeadingBlend:            0.3,
		HeadingMinSpeed:         1.0,
		SpeedNoiseScale:         2.0,
		MinDtSeconds:            0.001,
	}
}

// Validate проверяет корректность параметров
func (c KalmanConfig) Validate() error {
	if c.ProcessNoise <= 0 {
		return fmt.Errorf("process noise must be positive")
	}
	if c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement noise must be positive")
	}
	if c.AccuracyThresholdMeters <= 0 {
		return fmt.Errorf("accuracy threshold must be positive")
	}
	if c.InitialUncertainty <= 0 {
		return fmt.Errorf("initial uncertainty must be positive")
	}
	for name, w := range map[string]float64{
		"speed smoothing":   c.SpeedSmoothing,
		"heading smoothing": c.HeadingSmoothing,
		"heading blend":     c.HeadingBlend,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be within [0, 1]", name)
		}
	}
	if c.SpeedNoiseScale <= 0 {
		return fmt.Errorf("speed noise scale must be positive")
	}
	if c.MinDtSeconds <= 0 {
		return fmt.Errorf("min dt must be positive")
	}
	return nil
}
