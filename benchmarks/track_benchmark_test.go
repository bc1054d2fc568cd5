package benchmarks

// Бенчмарки горячего пути записи трека
//
// Ожидаемые результаты:
// - KalmanFilter: < 1µs/op, 0 allocs/op
// - SessionOnFix: < 2µs/op
// - GPX (3600 точек, час записи с шагом 1 с): < 5ms
// - DecodeFix: < 200 ns/op

import (
	"math/rand"
	"testing"
	"time"

	"github.com/flybeeper/track-recorder/internal/export"
	"github.com/flybeeper/track-recorder/internal/filter"
	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/internal/mqtt"
	"github.com/flybeeper/track-recorder/internal/tracker"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

const benchStartMs = int64(1_700_000_000_000)

// noisyWalk генерирует фиксы пешехода с шагом 1 с и шумом ~4 м
func noisyWalk(n int, seed int64) []models.RawFix {
	rng := rand.New(rand.NewSource(seed))
	pos := models.NewGeoPoint(7.0, 46.0)
	heading := 45.0
	alt := 1200.0

	fixes := make([]models.RawFix, n)
	for i := range fixes {
		heading += rng.NormFloat64() * 5
		pos = pos.Destination(1.4, heading)
		alt += rng.NormFloat64() * 0.3
		noisy := pos.Destination(rng.NormFloat64()*4, rng.Float64()*360)

		fixes[i] = models.RawFix{
			Longitude:         noisy.Longitude,
			Latitude:          noisy.Latitude,
			Altitude:          models.Float(alt),
			AccuracyMeters:    3 + rng.Float64()*5,
			SensorTimestampMs: benchStartMs + int64(i)*1000,
		}
	}
	return fixes
}

func BenchmarkKalmanFilter(b *testing.B) {
	fixes := noisyWalk(1024, 1)
	kf := filter.NewKalmanFilter(filter.DefaultKalmanConfig(), utils.NewLogger("error", "text"))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fix := fixes[i%len(fixes)]
		if i%len(fixes) == 0 {
			kf.Reset()
		}
		_ = kf.Filter(fix.Position(), fix.SensorTimestampMs, fix.AccuracyMeters)
	}
}

func BenchmarkLowPassFilter(b *testing.B) {
	lp := filter.NewLowPassFilter(filter.DefaultAltitudeAlpha)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = lp.Filter(1200 + float64(i%17))
	}
}

func BenchmarkSessionOnFix(b *testing.B) {
	fixes := noisyWalk(3600, 2)
	logger := utils.NewLogger("error", "text")

	var session *tracker.Session

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % len(fixes)
		if j == 0 {
			// Новая сессия на каждый час записи, чтобы путь не рос бесконечно
			b.StopTimer()
			session, _ = tracker.NewSession(tracker.DefaultConfig(), logger)
			_ = session.Start("bench", false)
			b.StartTimer()
		}
		_ = session.OnFix(fixes[j])
	}
}

func BenchmarkDecisionPolicy(b *testing.B) {
	policy := tracker.NewDecisionPolicy(tracker.DefaultConfig())
	path := models.Path{{Coordinates: models.NewGeoPoint(7.0, 46.0), TimestampMs: benchStartMs}}
	candidate := models.NewGeoPoint(7.00003, 46.00002)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = policy.ShouldAdmit(path, candidate, 5, benchStartMs+3000, benchStartMs)
	}
}

func buildPath(n int) models.Path {
	fixes := noisyWalk(n, 3)
	path := make(models.Path, n)
	for i, fix := range fixes {
		path[i] = models.PathPoint{Coordinates: fix.Position(), Altitude: fix.Altitude, TimestampMs: fix.SensorTimestampMs}
	}
	return path
}

func BenchmarkGPX(b *testing.B) {
	path := buildPath(3600)
	pois := []models.POI{{Coordinates: path[100].Coordinates, Name: "Summit"}}
	exportedAt := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := export.GPX(path, "bench", pois, exportedAt); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkKML(b *testing.B) {
	track := export.Track{Name: "bench", Path: buildPath(3600)}
	exportedAt := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := export.Render(export.FormatKML, track, exportedAt); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPathSummary(b *testing.B) {
	path := buildPath(3600)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = path.Summary()
	}
}

func BenchmarkEncodeFix(b *testing.B) {
	fix := noisyWalk(1, 4)[0]

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = mqtt.EncodeFix(fix)
	}
}

func BenchmarkDecodeFix(b *testing.B) {
	payload := mqtt.EncodeFix(noisyWalk(1, 5)[0])

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := mqtt.DecodeFix(payload); err != nil {
			b.Fatal(err)
		}
	}
}
