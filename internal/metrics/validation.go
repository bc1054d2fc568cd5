package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flybeeper/track-recorder/internal/models"
)

var (
	// FixesReceived фиксы, поступившие на границу сбора по источникам (http, mqtt)
	FixesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "track_fixes_received_total",
		Help: "Total number of raw fixes received, by source",
	}, []string{"source"})

	// FixesRejected фиксы, отклоненные проверкой до попадания в трекер
	FixesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "track_fixes_rejected_total",
		Help: "Raw fixes rejected by boundary validation, by reason",
	}, []string{"reason"})
)

// Причины отклонения фиксов
const (
	RejectDecode     = "decode"
	RejectCoordinate = "coordinates"
	RejectAccuracy   = "accuracy"
	RejectOther      = "invalid"
)

// ObserveRejectedFix учитывает отклоненный фикс с причиной по типу ошибки
func ObserveRejectedFix(err error) {
	FixesRejected.WithLabelValues(RejectReason(err)).Inc()
}

// RejectReason возвращает метку причины отклонения
func RejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrPoorAccuracy):
		return RejectAccuracy
	case errors.Is(err, models.ErrInvalidFix):
		return RejectCoordinate
	case errors.Is(err, models.ErrMalformedFix):
		return RejectDecode
	default:
		return RejectOther
	}
}
