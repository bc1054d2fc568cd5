package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flybeeper/track-recorder/internal/export"
	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/internal/repository"
	"github.com/flybeeper/track-recorder/internal/service"
	"github.com/flybeeper/track-recorder/internal/tracker"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

// RESTHandler обработчик REST API записи трека
type RESTHandler struct {
	recorder *service.Recorder
	live     repository.LiveRepository
	logger   *utils.Logger
	timeout  time.Duration
}

// StartRequest тело POST /track/start
type StartRequest struct {
	Name    string `json:"name"`
	POIOnly bool   `json:"poi_only"`
}

// POIRequest тело POST /track/poi
type POIRequest struct {
	Longitude *float64 `json:"lon"`
	Latitude  *float64 `json:"lat"`
	Name      string   `json:"name"`
	Comment   string   `json:"comment"`
}

// TrackResponse ответ GET /track
type TrackResponse struct {
	Track   tracker.Snapshot    `json:"track"`
	Metrics models.TrackSummary `json:"metrics"`
}

// NewRESTHandler создает REST handler. live может быть nil.
func NewRESTHandler(recorder *service.Recorder, live repository.LiveRepository, logger *utils.Logger) *RESTHandler {
	return &RESTHandler{
		recorder: recorder,
		live:     live,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// Start начинает запись
// POST /api/v1/track/start
func (h *RESTHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid_request", err)
		return
	}

	snapshot, err := h.recorder.Start(req.Name, req.POIOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, snapshot)
}

// Pause приостанавливает запись
// POST /api/v1/track/pause
func (h *RESTHandler) Pause(c *gin.Context) {
	h.transition(c, h.recorder.Pause)
}

// Resume продолжает запись
// POST /api/v1/track/resume
func (h *RESTHandler) Resume(c *gin.Context) {
	h.transition(c, h.recorder.Resume)
}

// Stop завершает запись
// POST /api/v1/track/stop
func (h *RESTHandler) Stop(c *gin.Context) {
	h.transition(c, h.recorder.Stop)
}

func (h *RESTHandler) transition(c *gin.Context, fn func() error) {
	if err := fn(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.recorder.Snapshot())
}

// PostFix принимает фикс по HTTP
// POST /api/v1/track/fix
func (h *RESTHandler) PostFix(c *gin.Context) {
	var req models.FixPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid_request", err)
		return
	}
	fix, err := req.RawFix()
	if err != nil {
		h.badRequest(c, "invalid_request", err)
		return
	}

	result, err := h.recorder.SubmitFix(service.SourceHTTP, fix)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if result.Ignored {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "not_recording",
			"message": fmt.Sprintf("fix ignored in state %s", result.State),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// PostPOI добавляет точку интереса
// POST /api/v1/track/poi
func (h *RESTHandler) PostPOI(c *gin.Context) {
	var req POIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid_request", err)
		return
	}
	if req.Longitude == nil || req.Latitude == nil {
		h.badRequest(c, "invalid_request", errors.New("lon and lat are required"))
		return
	}

	poi := models.POI{
		Coordinates: models.NewGeoPoint(*req.Longitude, *req.Latitude),
		Name:        req.Name,
		Comment:     req.Comment,
	}
	added, err := h.recorder.AddPOI(poi)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, added)
}

// GetTrack возвращает состояние, путь, POI и метрики
// GET /api/v1/track
func (h *RESTHandler) GetTrack(c *gin.Context) {
	snapshot := h.recorder.Snapshot()
	c.JSON(http.StatusOK, TrackResponse{
		Track:   snapshot,
		Metrics: snapshot.Path.Summary(),
	})
}

// GetMetrics возвращает метрики пути
// GET /api/v1/track/metrics
func (h *RESTHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.recorder.Metrics())
}

// GetGeoJSON возвращает путь и POI как FeatureCollection
// GET /api/v1/track/geojson
func (h *RESTHandler) GetGeoJSON(c *gin.Context) {
	data, err := h.recorder.GeoJSON().MarshalJSON()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, export.FormatGeoJSON.ContentType(), data)
}

// Export выдает файл трека
// GET /api/v1/track/export?format=gpx|kml|geojson
func (h *RESTHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.recorder.Export(format)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// GetLive возвращает последнее опубликованное обновление сессии из Redis
// GET /api/v1/live/:session_id
func (h *RESTHandler) GetLive(c *gin.Context) {
	if h.live == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "live_disabled",
			"message": "Live publishing is disabled",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	sessionID := c.Param("session_id")
	update, err := h.live.Current(ctx, sessionID)
	if err != nil {
		h.logger.WithField("session_id", sessionID).WithError(err).Error("Failed to read live position")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to read live position",
		})
		return
	}
	if update == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "No live position for session",
		})
		return
	}

	c.JSON(http.StatusOK, update)
}

func (h *RESTHandler) badRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    code,
		"message": err.Error(),
	})
}

// respondError отображает ошибки домена в HTTP статусы
func (h *RESTHandler) respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"

	switch {
	case errors.Is(err, tracker.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, tracker.ErrEmptyName):
		status, code = http.StatusBadRequest, "empty_name"
	case errors.Is(err, tracker.ErrNoSession):
		status, code = http.StatusNotFound, "no_session"
	case errors.Is(err, export.ErrUnknownFormat):
		status, code = http.StatusBadRequest, "unknown_format"
	case errors.Is(err, models.ErrPoorAccuracy):
		status, code = http.StatusUnprocessableEntity, "poor_accuracy"
	case errors.Is(err, models.ErrInvalidFix):
		status, code = http.StatusUnprocessableEntity, "invalid_fix"
	}

	if status == http.StatusInternalServerError {
		h.logger.WithField("path", c.Request.URL.Path).WithError(err).Error("Request failed")
	}

	c.JSON(status, gin.H{
		"code":    code,
		"message": err.Error(),
	})
}
