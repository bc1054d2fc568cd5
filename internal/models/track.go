package models

import (
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

// Path упорядоченная по времени последовательность точек пути
type Path []PathPoint

// Last возвращает последнюю точку пути
func (p Path) Last() (PathPoint, bool) {
	if len(p) == 0 {
		return PathPoint{}, false
	}
	return p[len(p)-1], true
}

// LineString конвертирует путь в orb.LineString
func (p Path) LineString() orb.LineString {
	ls := make(orb.LineString, len(p))
	for i, point := range p {
		ls[i] = point.Coordinates.Point()
	}
	return ls
}

// segmentDistances расстояния между соседними точками в метрах
func (p Path) segmentDistances() []float64 {
	if len(p) < 2 {
		return nil
	}
	distances := make([]float64, len(p)-1)
	for i := 1; i < len(p); i++ {
		distances[i-1] = p[i-1].Coordinates.DistanceTo(p[i].Coordinates)
	}
	return distances
}

// TrackLength возвращает длину пути в километрах; 0 для менее чем двух точек
func TrackLength(path Path) float64 {
	distances := path.segmentDistances()
	if len(distances) == 0 {
		return 0
	}
	return floats.Sum(distances) / 1000
}

// ElevationGain возвращает суммарный набор высоты в метрах.
// Граница, где у одной из точек высота неизвестна, не дает вклада.
func ElevationGain(path Path) float64 {
	gain, _ := elevationDeltas(path)
	return gain
}

func elevationDeltas(path Path) (gain, loss float64) {
	for i := 1; i < len(path); i++ {
		prev, curr := path[i-1].Altitude, path[i].Altitude
		if prev == nil || curr == nil {
			continue
		}
		diff := *curr - *prev
		if diff > 0 {
			gain += diff
		} else {
			loss -= diff
		}
	}
	return gain, loss
}

// TrackSummary метрики трека, вычисляемые по требованию
type TrackSummary struct {
	Points          int           `json:"points"`
	DistanceKm      float64       `json:"distance_km"`
	ElevationGainM  float64       `json:"elevation_gain_m"`
	ElevationLossM  float64       `json:"elevation_loss_m"`
	MinAltitudeM    *float64      `json:"min_altitude_m,omitempty"`
	MaxAltitudeM    *float64      `json:"max_altitude_m,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
	AverageSpeedKmh float64       `json:"average_speed_kmh"`
}

// Summary вычисляет сводные метрики пути
func (p Path) Summary() TrackSummary {
	summary := TrackSummary{
		Points:     len(p),
		DistanceKm: TrackLength(p),
	}
	summary.ElevationGainM, summary.ElevationLossM = elevationDeltas(p)

	altitudes := make([]float64, 0, len(p))
	for _, point := range p {
		if point.Altitude != nil {
			altitudes = append(altitudes, *point.Altitude)
		}
	}
	if len(altitudes) > 0 {
		summary.MinAltitudeM = Float(floats.Min(altitudes))
		summary.MaxAltitudeM = Float(floats.Max(altitudes))
	}

	if len(p) >= 2 {
		summary.Duration = time.Duration(p[len(p)-1].TimestampMs-p[0].TimestampMs) * time.Millisecond
		if hours := summary.Duration.Hours(); hours > 0 {
			summary.AverageSpeedKmh = summary.DistanceKm / hours
		}
	}

	return summary
}
