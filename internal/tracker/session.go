package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flybeeper/track-recorder/internal/filter"
	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

// State состояние сессии записи
type State int

const (
	StateIdle State = iota
	StateTracking
	StatePaused
	StateStopped
)

// String возвращает имя состояния
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText сериализует состояние строкой
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText разбирает имя состояния
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "tracking":
		*s = StateTracking
	case "paused":
		*s = StatePaused
	case "stopped":
		*s = StateStopped
	default:
		return fmt.Errorf("unknown session state: %q", text)
	}
	return nil
}

// FixResult результат обработки одного фикса
type FixResult struct {
	Smoothed   models.SmoothedFix `json:"smoothed"`
	Admitted   bool               `json:"admitted"`
	Reason     AdmitReason        `json:"reason,omitempty"`
	PathLength int                `json:"path_length"`
	State      State              `json:"state"`
	Ignored    bool               `json:"ignored,omitempty"` // Фикс пришел вне записи
}

// Snapshot копия состояния сессии для чтения
type Snapshot struct {
	ID             string              `json:"id,omitempty"`
	Name           string              `json:"name"`
	POIOnlyMode    bool                `json:"poi_only_mode"`
	State          State               `json:"state"`
	Path           models.Path         `json:"path"`
	POIs           []models.POI        `json:"pois"`
	Current        *models.SmoothedFix `json:"current,omitempty"`
	LastAdmittedMs int64               `json:"last_admitted_ms"`
	PauseBoundary  *models.PathPoint   `json:"pause_boundary,omitempty"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	StoppedAt      *time.Time          `json:"stopped_at,omitempty"`
}

// Session конечный автомат записи трека: Idle -> Tracking <-> Paused -> Stopped.
// Владеет путем, POI и состоянием фильтров. Не потокобезопасна,
// вызовы должны сериализоваться вызывающей стороной.
type Session struct {
	config   Config
	policy   *DecisionPolicy
	position *filter.KalmanFilter
	altitude *filter.LowPassFilter
	logger   *utils.Logger
	now      func() time.Time

	id             string
	name           string
	poiOnly        bool
	state          State
	path           models.Path
	pois           []models.POI
	current        *models.SmoothedFix
	lastAdmittedMs int64
	pauseBoundary  *models.PathPoint
	resumePending  bool
	startedAt      time.Time
	stoppedAt      time.Time
}

// NewSession создает сессию в состоянии Idle
func NewSession(config Config, logger *utils.Logger) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}

	return &Session{
		config:   config,
		policy:   NewDecisionPolicy(config),
		position: filter.NewKalmanFilter(config.Kalman, logger),
		altitude: filter.NewLowPassFilter(config.AltitudeAlpha),
		logger:   logger,
		now:      time.Now,
		state:    StateIdle,
	}, nil
}

// SetClock подменяет часы (используются только для StartedAt/StoppedAt)
func (s *Session) SetClock(now func() time.Time) {
	s.now = now
}

// Start начинает новую запись. Допустим только из Idle или Stopped.
func (s *Session) Start(name string, poiOnly bool) error {
	if s.state != StateIdle && s.state != StateStopped {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, s.state)
	}
	if err := models.ValidateName(name); err != nil {
		return err
	}

	for _, f := range []interface{ Reset(); Name() string }{s.position, s.altitude} {
		f.Reset()
		s.logger.WithField("filter", f.Name()).Debug("Filter state reset")
	}

	s.id = uuid.NewString()
	s.name = strings.TrimSpace(name)
	s.poiOnly = poiOnly
	s.path = nil
	s.pois = nil
	s.current = nil
	s.lastAdmittedMs = 0
	s.pauseBoundary = nil
	s.resumePending = false
	s.startedAt = s.now()
	s.stoppedAt = time.Time{}
	s.state = StateTracking

	s.logger.WithFields(map[string]interface{}{
		"session_id": s.id,
		"name":       s.name,
		"poi_only":   poiOnly,
	}).Info("Track recording started")

	return nil
}

// OnFix прогоняет фикс через фильтры и решает, добавлять ли точку в путь.
// Вне Tracking/Paused фикс игнорируется.
func (s *Session) OnFix(raw models.RawFix) FixResult {
	if s.state != StateTracking && s.state != StatePaused {
		return FixResult{State: s.state, PathLength: len(s.path), Ignored: true}
	}

	smoothed := models.SmoothedFix{
		Position: s.position.Filter(raw.Position(), raw.SensorTimestampMs, raw.AccuracyMeters),
	}
	if raw.Altitude != nil {
		alt := s.altitude.Filter(*raw.Altitude)
		smoothed.Altitude = &alt
	}
	current := smoothed
	s.current = &current

	result := FixResult{Smoothed: smoothed, State: s.state}

	switch {
	case s.state == StatePaused:
		// Граница паузы фиксируется на первом фиксе во время паузы
		if s.pauseBoundary == nil && len(s.path) > 0 {
			boundary := s.path[len(s.path)-1]
			s.pauseBoundary = &boundary
		}

	case s.pauseBoundary != nil || s.resumePending:
		s.admit(smoothed, raw.SensorTimestampMs)
		s.pauseBoundary = nil
		s.resumePending = false
		result.Admitted = true
		result.Reason = AdmitResume

	default:
		ok, reason := s.policy.ShouldAdmit(s.path, smoothed.Position, raw.AccuracyMeters, raw.SensorTimestampMs, s.lastAdmittedMs)
		if ok {
			s.admit(smoothed, raw.SensorTimestampMs)
		}
		result.Admitted = ok
		result.Reason = reason
	}

	result.PathLength = len(s.path)

	s.logger.WithFields(map[string]interface{}{
		"state":       s.state.String(),
		"admitted":    result.Admitted,
		"reason":      string(result.Reason),
		"path_points": result.PathLength,
		"accuracy":    raw.AccuracyMeters,
	}).Debug("Fix processed")

	return result
}

func (s *Session) admit(smoothed models.SmoothedFix, timestampMs int64) {
	// Путь не убывает по времени даже при сбоях часов датчика
	if last, ok := s.path.Last(); ok && timestampMs < last.TimestampMs {
		timestampMs = last.TimestampMs
	}
	s.path = append(s.path, models.PathPoint{
		Coordinates: smoothed.Position,
		Altitude:    smoothed.Altitude,
		TimestampMs: timestampMs,
	})
	s.lastAdmittedMs = timestampMs
}

// Pause приостанавливает запись пути. Путь и фильтры не меняются.
func (s *Session) Pause() error {
	if s.state != StateTracking {
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, s.state)
	}
	s.state = StatePaused

	s.logger.WithField("session_id", s.id).
		WithField("path_points", len(s.path)).
		Info("Track recording paused")
	return nil
}

// Resume продолжает запись. Фильтры не сбрасываются,
// следующий фикс добавляется в путь безусловно.
func (s *Session) Resume() error {
	if s.state != StatePaused {
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateTracking
	s.resumePending = true

	s.logger.WithField("session_id", s.id).
		WithField("path_points", len(s.path)).
		Info("Track recording resumed")
	return nil
}

// AddPOI добавляет точку интереса. Допустимо в Tracking и Paused.
func (s *Session) AddPOI(poi models.POI) error {
	if s.state != StateTracking && s.state != StatePaused {
		return fmt.Errorf("%w: cannot add POI in %s", ErrInvalidTransition, s.state)
	}
	if err := models.ValidateName(poi.Name); err != nil {
		return err
	}

	poi.Name = strings.TrimSpace(poi.Name)
	poi.Comment = strings.TrimSpace(poi.Comment)
	s.pois = append(s.pois, poi)

	s.logger.WithFields(map[string]interface{}{
		"session_id": s.id,
		"name":       poi.Name,
		"geohash":    poi.Coordinates.Geohash(models.DefaultGeohashPrecision),
	}).Info("POI added")
	return nil
}

// Stop завершает запись. Путь и POI остаются доступны для экспорта до следующего Start.
func (s *Session) Stop() error {
	if s.state != StateTracking && s.state != StatePaused {
		return fmt.Errorf("%w: cannot stop from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateStopped
	s.pauseBoundary = nil
	s.resumePending = false
	s.stoppedAt = s.now()

	s.logger.WithFields(map[string]interface{}{
		"session_id":  s.id,
		"path_points": len(s.path),
		"pois":        len(s.pois),
		"distance_km": models.TrackLength(s.path),
	}).Info("Track recording stopped")
	return nil
}

// ID возвращает идентификатор текущей записи (пустой в Idle)
func (s *Session) ID() string {
	return s.id
}

// Name возвращает имя трека
func (s *Session) Name() string {
	return s.name
}

// State возвращает текущее состояние
func (s *Session) State() State {
	return s.state
}

// Path возвращает копию пути
func (s *Session) Path() models.Path {
	path := make(models.Path, len(s.path))
	copy(path, s.path)
	return path
}

// POIs возвращает копию списка POI
func (s *Session) POIs() []models.POI {
	pois := make([]models.POI, len(s.pois))
	copy(pois, s.pois)
	return pois
}

// Current возвращает последнюю сглаженную позицию
func (s *Session) Current() (models.SmoothedFix, bool) {
	if s.current == nil {
		return models.SmoothedFix{}, false
	}
	return *s.current, true
}

// Metrics вычисляет показатели по текущему пути
func (s *Session) Metrics() models.TrackSummary {
	return s.path.Summary()
}

// FilterState возвращает состояние фильтра позиции
func (s *Session) FilterState() filter.FilterState {
	return s.position.State()
}

// Snapshot возвращает копию состояния сессии
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:             s.id,
		Name:           s.name,
		POIOnlyMode:    s.poiOnly,
		State:          s.state,
		Path:           s.Path(),
		POIs:           s.POIs(),
		LastAdmittedMs: s.lastAdmittedMs,
	}
	if s.current != nil {
		current := *s.current
		snap.Current = &current
	}
	if s.pauseBoundary != nil {
		boundary := *s.pauseBoundary
		snap.PauseBoundary = &boundary
	}
	if !s.startedAt.IsZero() {
		startedAt := s.startedAt
		snap.StartedAt = &startedAt
	}
	if !s.stoppedAt.IsZero() {
		stoppedAt := s.stoppedAt
		snap.StoppedAt = &stoppedAt
	}
	return snap
}
