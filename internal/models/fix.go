package models

import (
	"fmt"
	"time"
)

// RawFix одна позиция от датчика положения устройства
type RawFix struct {
	Longitude         float64  `json:"lon"`
	Latitude          float64  `json:"lat"`
	Altitude          *float64 `json:"alt,omitempty"` // nil если высота неизвестна
	AccuracyMeters    float64  `json:"accuracy"`      // Горизонтальная точность (м)
	SensorTimestampMs int64    `json:"timestamp"`     // Unix время датчика (мс)
}

// Position возвращает координаты фикса
func (f RawFix) Position() GeoPoint {
	return GeoPoint{Longitude: f.Longitude, Latitude: f.Latitude}
}

// Time возвращает время датчика
func (f RawFix) Time() time.Time {
	return time.UnixMilli(f.SensorTimestampMs).UTC()
}

// FixPayload JSON фикс от внешнего источника (HTTP, MQTT шлюз).
// Координаты обязательны: отсутствующее поле не должно стать нулем.
type FixPayload struct {
	Longitude   *float64 `json:"lon"`
	Latitude    *float64 `json:"lat"`
	Altitude    *float64 `json:"alt"`
	Accuracy    float64  `json:"accuracy"`
	TimestampMs int64    `json:"timestamp"`
}

// RawFix преобразует полезную нагрузку в фикс
func (p FixPayload) RawFix() (RawFix, error) {
	if p.Longitude == nil || p.Latitude == nil {
		return RawFix{}, fmt.Errorf("%w: lon and lat are required", ErrMalformedFix)
	}
	return RawFix{
		Longitude:         *p.Longitude,
		Latitude:          *p.Latitude,
		Altitude:          p.Altitude,
		AccuracyMeters:    p.Accuracy,
		SensorTimestampMs: p.TimestampMs,
	}, nil
}

// SmoothedFix сглаженная позиция, используется только для решения о допуске и отображения
type SmoothedFix struct {
	Position GeoPoint `json:"position"`
	Altitude *float64 `json:"altitude,omitempty"`
}

// PathPoint точка пути; неизменяема после добавления в Path
type PathPoint struct {
	Coordinates GeoPoint `json:"coordinates"`
	Altitude    *float64 `json:"altitude,omitempty"`
	TimestampMs int64    `json:"timestamp"`
}

// Time возвращает время точки
func (p PathPoint) Time() time.Time {
	return time.UnixMilli(p.TimestampMs).UTC()
}

// POI именованная точка интереса, не зависит от порядка пути
type POI struct {
	Coordinates GeoPoint `json:"coordinates"`
	Name        string   `json:"name"`
	Comment     string   `json:"comment,omitempty"`
}

// Float возвращает указатель на значение (для опциональной высоты)
func Float(v float64) *float64 {
	return &v
}
