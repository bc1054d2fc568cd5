package tracker

import (
	"github.com/flybeeper/track-recorder/internal/models"
)

// AdmitReason причина, по которой точка попала в путь
type AdmitReason string

const (
	AdmitNone     AdmitReason = ""
	AdmitFirst    AdmitReason = "first"
	AdmitDistance AdmitReason = "distance"
	AdmitInterval AdmitReason = "interval"
	AdmitResume   AdmitReason = "resume"
)

// DecisionPolicy решает, становится ли сглаженный фикс точкой пути.
// Порог расстояния ограничивает плотность точек, а допуск по времени
// не дает пути пустовать во время провалов GPS.
type DecisionPolicy struct {
	distanceThreshold float64
	accuracyThreshold float64
	fallbackMs        int64
}

// NewDecisionPolicy создает политику прореживания
func NewDecisionPolicy(config Config) *DecisionPolicy {
	return &DecisionPolicy{
		distanceThreshold: config.DistanceThresholdMeters,
		accuracyThreshold: config.AccuracyThresholdMeters,
		fallbackMs:        config.FallbackInterval().Milliseconds(),
	}
}

// ShouldAdmit проверяет правила по порядку: пустой путь, расстояние с точностью, интервал
func (p *DecisionPolicy) ShouldAdmit(path models.Path, candidate models.GeoPoint, accuracyMeters float64, nowMs, lastAdmittedMs int64) (bool, AdmitReason) {
	last, ok := path.Last()
	if !ok {
		return true, AdmitFirst
	}

	distance := last.Coordinates.DistanceTo(candidate)
	if distance > p.distanceThreshold && accuracyMeters <= p.accuracyThreshold {
		return true, AdmitDistance
	}

	if nowMs-lastAdmittedMs >= p.fallbackMs {
		return true, AdmitInterval
	}

	return false, AdmitNone
}
