package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/flybeeper/track-recorder/internal/export"
	"github.com/flybeeper/track-recorder/internal/metrics"
	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/internal/tracker"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

// Источники фиксов
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Listener получает живые обновления. Вызывается под блокировкой рекордера,
// поэтому не должен блокироваться (только постановка в очередь).
type Listener interface {
	OnUpdate(update models.LiveUpdate)
}

// ExportResult файл трека для выдачи клиенту
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
	Format      export.Format
}

// Recorder владеет единственной сессией записи и сериализует обращения к ней
// из MQTT обработчика и HTTP запросов
type Recorder struct {
	mu                sync.Mutex
	session           *tracker.Session
	accuracyThreshold float64
	listeners         []Listener
	now               func() time.Time
	logger            *utils.Logger
}

// NewRecorder создает рекордер с сессией в состоянии Idle
func NewRecorder(config tracker.Config, logger *utils.Logger) (*Recorder, error) {
	session, err := tracker.NewSession(config, logger)
	if err != nil {
		return nil, err
	}

	metrics.SessionState.Set(float64(tracker.StateIdle))
	metrics.PathPoints.Set(0)

	return &Recorder{
		session:           session,
		accuracyThreshold: config.AccuracyThresholdMeters,
		now:               time.Now,
		logger:            logger,
	}, nil
}

// SetClock подменяет часы рекордера и сессии
func (r *Recorder) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	r.session.SetClock(now)
}

// AddListener регистрирует получателя живых обновлений
func (r *Recorder) AddListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Start начинает новую запись
func (r *Recorder) Start(name string, poiOnly bool) (tracker.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.session.Start(name, poiOnly); err != nil {
		return tracker.Snapshot{}, err
	}
	r.afterTransition()
	return r.session.Snapshot(), nil
}

// Pause приостанавливает запись
func (r *Recorder) Pause() error {
	return r.transition(r.session.Pause)
}

// Resume продолжает запись
func (r *Recorder) Resume() error {
	return r.transition(r.session.Resume)
}

// Stop завершает запись
func (r *Recorder) Stop() error {
	return r.transition(r.session.Stop)
}

func (r *Recorder) transition(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}
	r.afterTransition()
	return nil
}

func (r *Recorder) afterTransition() {
	state := r.session.State()
	metrics.SessionState.Set(float64(state))
	metrics.PathPoints.Set(float64(len(r.session.Path())))

	r.notify(r.stateUpdate())
}

// LiveSnapshot возвращает текущее состояние в виде живого обновления
// (приветствие новых WebSocket клиентов)
func (r *Recorder) LiveSnapshot() models.LiveUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateUpdate()
}

func (r *Recorder) stateUpdate() models.LiveUpdate {
	update := r.baseUpdate(models.LiveState)
	update.TimestampMs = r.now().UnixMilli()
	if current, ok := r.session.Current(); ok {
		pos := current.Position
		update.Position = &pos
		update.Altitude = current.Altitude
	}
	return update
}

// SubmitFix проверяет фикс на границе сбора и передает его сессии
func (r *Recorder) SubmitFix(source string, fix models.RawFix) (tracker.FixResult, error) {
	metrics.FixesReceived.WithLabelValues(source).Inc()

	if err := models.ValidateRawFix(fix, r.accuracyThreshold); err != nil {
		metrics.ObserveRejectedFix(err)
		r.logger.WithField("source", source).
			WithError(err).
			Debug("Rejected raw fix")
		return tracker.FixResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result := r.session.OnFix(fix)
	if result.Ignored {
		return result, nil
	}

	if result.Admitted {
		metrics.FixesAdmitted.WithLabelValues(string(result.Reason)).Inc()
	} else {
		metrics.FixesDiscarded.Inc()
	}
	metrics.PathPoints.Set(float64(result.PathLength))

	update := r.baseUpdate(models.LiveFix)
	pos := result.Smoothed.Position
	update.Position = &pos
	update.Altitude = result.Smoothed.Altitude
	update.Geohash = pos.Geohash(models.DefaultGeohashPrecision)
	update.Admitted = result.Admitted
	update.Reason = string(result.Reason)
	update.TimestampMs = fix.SensorTimestampMs
	r.notify(update)

	return result, nil
}

// AddPOI добавляет точку интереса и возвращает сохраненную (очищенную) версию
func (r *Recorder) AddPOI(poi models.POI) (models.POI, error) {
	if err := poi.Coordinates.Validate(); err != nil {
		return models.POI{}, fmt.Errorf("%w: %v", models.ErrInvalidFix, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.session.AddPOI(poi); err != nil {
		return models.POI{}, err
	}
	metrics.POIsTotal.Inc()

	pois := r.session.POIs()
	added := pois[len(pois)-1]
	update := r.baseUpdate(models.LivePOI)
	update.POI = &added
	update.Geohash = added.Coordinates.Geohash(models.DefaultGeohashPrecision)
	update.TimestampMs = r.now().UnixMilli()
	r.notify(update)
	return added, nil
}

// Snapshot возвращает копию состояния сессии
func (r *Recorder) Snapshot() tracker.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Snapshot()
}

// Metrics вычисляет показатели текущего пути
func (r *Recorder) Metrics() models.TrackSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Metrics()
}

// GeoJSON возвращает текущий путь и POI для карты
func (r *Recorder) GeoJSON() *geojson.FeatureCollection {
	r.mu.Lock()
	path, pois := r.session.Path(), r.session.POIs()
	r.mu.Unlock()

	return export.GeoJSON(path, pois)
}

// Export рендерит текущий трек. Допустим в любом состоянии кроме Idle.
func (r *Recorder) Export(format export.Format) (*ExportResult, error) {
	r.mu.Lock()
	if r.session.State() == tracker.StateIdle {
		r.mu.Unlock()
		return nil, tracker.ErrNoSession
	}
	track := export.Track{
		Name: r.session.Name(),
		Path: r.session.Path(),
		POIs: r.session.POIs(),
	}
	sessionID := r.session.ID()
	exportedAt := r.now()
	r.mu.Unlock()

	start := time.Now()
	data, err := export.Render(format, track, exportedAt)
	if err != nil {
		return nil, err
	}
	metrics.ExportDuration.Observe(time.Since(start).Seconds())
	metrics.ExportsTotal.WithLabelValues(string(format)).Inc()

	result := &ExportResult{
		Data:        data,
		Filename:    export.SuggestedFilename(track.Name, format.Extension(), exportedAt),
		ContentType: format.ContentType(),
		Format:      format,
	}

	r.logger.WithFields(map[string]interface{}{
		"session_id":  sessionID,
		"format":      string(format),
		"path_points": len(track.Path),
		"pois":        len(track.POIs),
		"bytes":       len(data),
		"filename":    result.Filename,
	}).Info("Track exported")

	return result, nil
}

func (r *Recorder) baseUpdate(kind models.LiveUpdateKind) models.LiveUpdate {
	summary := r.session.Metrics()
	return models.LiveUpdate{
		Kind:           kind,
		SessionID:      r.session.ID(),
		State:          r.session.State().String(),
		PathPoints:     summary.Points,
		DistanceKm:     summary.DistanceKm,
		ElevationGainM: summary.ElevationGainM,
	}
}

func (r *Recorder) notify(update models.LiveUpdate) {
	for _, l := range r.listeners {
		l.OnUpdate(update)
	}
}
