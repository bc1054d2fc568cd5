package filter

import (
	"math"

	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

// FilterState состояние фильтра позиции
type FilterState struct {
	PositionUncertainty [2]float64       `json:"position_uncertainty"` // lon, lat
	Velocity            [2]float64       `json:"velocity"`             // градусы/с
	LastPosition        *models.GeoPoint `json:"last_position,omitempty"`
	LastTimestampMs     int64            `json:"last_timestamp_ms"`
	Heading             *float64         `json:"heading,omitempty"` // градусы [0, 360)
	Speed               float64          `json:"speed"`             // м/с
}

// KalmanFilter адаптивный фильтр Калмана для горизонтальной позиции.
// Шум процесса и измерения подстраиваются под точность и скорость;
// при быстром движении подмешивается проекция по сглаженному курсу.
type KalmanFilter struct {
	config KalmanConfig
	state  FilterState
	logger *utils.Logger
}

var _ PositionFilter = (*KalmanFilter)(nil)

// NewKalmanFilter создает новый фильтр позиции
func NewKalmanFilter(config KalmanConfig, logger *utils.Logger) *KalmanFilter {
	f := &KalmanFilter{
		config: config,
		logger: logger,
	}
	f.Reset()
	return f
}

// Filter применяет фильтр к сырому фиксу
func (f *KalmanFilter) Filter(raw models.GeoPoint, timestampMs int64, accuracyMeters float64) models.GeoPoint {
	s := &f.state

	if s.LastPosition == nil {
		last := raw
		s.LastPosition = &last
		s.LastTimestampMs = timestampMs
		return raw
	}

	dt := float64(timestampMs-s.LastTimestampMs) / 1000
	if dt <= 0 {
		f.logger.WithField("dt_seconds", dt).
			WithField("timestamp_ms", timestampMs).
			Debug("Non-positive dt, clamping")
		dt = f.config.MinDtSeconds
	}
	s.LastTimestampMs = timestampMs

	lastPos := *s.LastPosition

	// Шум процесса растет при плохой точности
	accuracyFactor := math.Min(1, accuracyMeters/f.config.AccuracyThresholdMeters)
	adaptiveQ := f.config.ProcessNoise * (1 + accuracyFactor)

	// Скорость и курс
	distance := lastPos.DistanceTo(raw)
	currentSpeed := distance / dt
	s.Speed = s.Speed*(1-f.config.SpeedSmoothing) + currentSpeed*f.config.SpeedSmoothing

	// Для нулевого смещения азимут не определен, курс не трогаем
	if distance > 0 {
		bearing := lastPos.BearingTo(raw)
		if s.Heading == nil {
			heading := normalizeDegrees(bearing)
			s.Heading = &heading
		} else {
			diff := shortestAngle(bearing - *s.Heading)
			heading := normalizeDegrees(*s.Heading + diff*f.config.HeadingSmoothing)
			s.Heading = &heading
		}
	}

	// Прогноз по текущей скорости
	predicted := [2]float64{
		lastPos.Longitude + s.Velocity[0]*dt,
		lastPos.Latitude + s.Velocity[1]*dt,
	}

	s.PositionUncertainty[0] += adaptiveQ
	s.PositionUncertainty[1] += adaptiveQ

	// Шум измерения растет с ухудшением точности и со скоростью
	speedFactor := math.Min(1, s.Speed/f.config.SpeedNoiseScale)
	adaptiveR := f.config.MeasurementNoise * (1 + accuracyFactor) * (1 + speedFactor)

	k := [2]float64{
		s.PositionUncertainty[0] / (s.PositionUncertainty[0] + adaptiveR),
		s.PositionUncertainty[1] / (s.PositionUncertainty[1] + adaptiveR),
	}

	measurement := [2]float64{raw.Longitude, raw.Latitude}
	position := [2]float64{
		predicted[0] + k[0]*(measurement[0]-predicted[0]),
		predicted[1] + k[1]*(measurement[1]-predicted[1]),
	}

	s.Velocity = [2]float64{
		(position[0] - lastPos.Longitude) / dt,
		(position[1] - lastPos.Latitude) / dt,
	}

	s.PositionUncertainty[0] *= 1 - k[0]
	s.PositionUncertainty[1] *= 1 - k[1]

	// Подавление бокового дрожания при быстром направленном движении
	if s.Speed > f.config.HeadingMinSpeed && s.Heading != nil {
		projected := lastPos.Destination(distance, *s.Heading)
		w := f.config.HeadingBlend
		position[0] = position[0]*(1-w) + projected.Longitude*w
		position[1] = position[1]*(1-w) + projected.Latitude*w
	}

	corrected := models.GeoPoint{Longitude: position[0], Latitude: position[1]}
	s.LastPosition = &corrected

	return corrected
}

// Reset сбрасывает состояние фильтра
func (f *KalmanFilter) Reset() {
	f.state = FilterState{
		PositionUncertainty: [2]float64{f.config.InitialUncertainty, f.config.InitialUncertainty},
	}
}

// State возвращает копию текущего состояния
func (f *KalmanFilter) State() FilterState {
	state := f.state
	if f.state.LastPosition != nil {
		last := *f.state.LastPosition
		state.LastPosition = &last
	}
	if f.state.Heading != nil {
		heading := *f.state.Heading
		state.Heading = &heading
	}
	return state
}

// Name возвращает имя фильтра
func (f *KalmanFilter) Name() string {
	return "KalmanFilter"
}

// shortestAngle приводит разницу углов к диапазону [-180, 180)
func shortestAngle(delta float64) float64 {
	return normalizeDegrees(delta+180) - 180
}

// normalizeDegrees приводит угол к диапазону [0, 360)
func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
