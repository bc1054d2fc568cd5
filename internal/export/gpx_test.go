package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/track-recorder/internal/models"
)

var exportedAt = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

func fixturePath() models.Path {
	return models.Path{
		{
			Coordinates: models.NewGeoPoint(7.123456, 46.654321),
			Altitude:    models.Float(1012.3),
			TimestampMs: time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC).UnixMilli(),
		},
		{
			Coordinates: models.NewGeoPoint(7.124001, 46.655002),
			Altitude:    nil,
			TimestampMs: time.Date(2026, 5, 1, 7, 0, 10, 250_000_000, time.UTC).UnixMilli(),
		},
		{
			Coordinates: models.NewGeoPoint(7.125999, 46.656789),
			Altitude:    models.Float(1030.8),
			TimestampMs: time.Date(2026, 5, 1, 7, 0, 20, 0, time.UTC).UnixMilli(),
		},
	}
}

func fixturePOIs() []models.POI {
	return []models.POI{
		{Coordinates: models.NewGeoPoint(7.124500, 46.655500), Name: "Hut <Alpha>", Comment: "water & shelter"},
	}
}

func TestGPX_RoundTrip(t *testing.T) {
	data, err := GPX(fixturePath(), "Morning Walk", fixturePOIs(), exportedAt)
	require.NoError(t, err)

	track, err := ParseGPX(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "Morning Walk", track.Name)
	assert.Equal(t, exportedAt, track.ExportedAt)

	approx := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(fixturePath(), track.Path, approx); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(fixturePOIs(), track.POIs, approx); diff != "" {
		t.Errorf("POI mismatch (-want +got):\n%s", diff)
	}
}

func TestGPX_Format(t *testing.T) {
	data, err := GPX(fixturePath(), "Morning Walk", fixturePOIs(), exportedAt)
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `creator="QROSS Tracker"`)
	assert.Contains(t, out, `xmlns="http://www.topografix.com/GPX/1/1"`)
	assert.Contains(t, out, `<time>2026-05-01T08:30:00.000Z</time>`)
	assert.Contains(t, out, `<wpt lat="46.655500" lon="7.124500">`)
	assert.Contains(t, out, `<name>Hut &lt;Alpha&gt;</name>`)
	assert.Contains(t, out, `<sym>Flag, Blue</sym>`)
	assert.Contains(t, out, `<desc>Track recorded by QROSS Tracker</desc>`)
	assert.Contains(t, out, `<trkpt lat="46.654321" lon="7.123456">`)
	assert.Contains(t, out, `<ele>1012.3</ele>`)
	assert.Contains(t, out, `<time>2026-05-01T07:00:10.250Z</time>`)
	assert.Equal(t, 2, strings.Count(out, "<ele>"))
	assert.Equal(t, 1, strings.Count(out, "<trkseg>"))

	// Вейпоинты идут перед треком
	assert.Less(t, strings.Index(out, "<wpt"), strings.Index(out, "<trk>"))
}

func TestGPX_Deterministic(t *testing.T) {
	first, err := GPX(fixturePath(), "x", fixturePOIs(), exportedAt)
	require.NoError(t, err)
	second, err := GPX(fixturePath(), "x", fixturePOIs(), exportedAt)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGPX_EmptyPath(t *testing.T) {
	data, err := GPX(nil, "Nothing", nil, exportedAt)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "<trkpt")
	assert.NotContains(t, string(data), "<wpt")

	track, err := ParseGPX(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, track.Path)
	assert.Empty(t, track.POIs)
}

func TestGPX_OmitsEmptyComment(t *testing.T) {
	pois := []models.POI{{Coordinates: models.NewGeoPoint(1, 2), Name: "Spring"}}

	data, err := GPX(nil, "x", pois, exportedAt)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "<desc></desc>")
}

func TestParseGPX_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "not xml",
			input:   "hello",
			wantErr: "failed to parse GPX",
		},
		{
			name:    "bad latitude",
			input:   `<gpx version="1.1"><trk><trkseg><trkpt lat="north" lon="7"/></trkseg></trk></gpx>`,
			wantErr: "invalid latitude",
		},
		{
			name:    "latitude out of range",
			input:   `<gpx version="1.1"><wpt lat="91" lon="7"><name>x</name></wpt></gpx>`,
			wantErr: "waypoint 0",
		},
		{
			name:    "bad time",
			input:   `<gpx version="1.1"><trk><trkseg><trkpt lat="1" lon="7"><time>yesterday</time></trkpt></trkseg></trk></gpx>`,
			wantErr: "invalid time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGPX(strings.NewReader(tt.input))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseGPX_ForeignFile(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test">
	<trk>
		<name>Test Track</name>
		<trkseg>
			<trkpt lat="46.0" lon="7.0">
				<ele>1000</ele>
				<time>2025-01-01T10:00:00Z</time>
			</trkpt>
		</trkseg>
		<trkseg>
			<trkpt lat="46.001" lon="7.001">
				<time>2025-01-01T10:00:01Z</time>
			</trkpt>
		</trkseg>
	</trk>
</gpx>`

	track, err := ParseGPX(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "Test Track", track.Name)
	require.Len(t, track.Path, 2)
	require.NotNil(t, track.Path[0].Altitude)
	assert.Equal(t, 1000.0, *track.Path[0].Altitude)
	assert.Nil(t, track.Path[1].Altitude)
	assert.Equal(t, int64(1735725601000), track.Path[1].TimestampMs)
}
