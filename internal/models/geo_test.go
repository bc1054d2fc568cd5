package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoPoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		point   GeoPoint
		wantErr bool
		errMsg  string
	}{
		{
			name:    "Valid coordinates - Paris",
			point:   GeoPoint{Longitude: 2.3488, Latitude: 48.8534},
			wantErr: false,
		},
		{
			name:    "Valid coordinates - North Pole",
			point:   GeoPoint{Longitude: 0.0, Latitude: 90.0},
			wantErr: false,
		},
		{
			name:    "Valid coordinates - Date line negative",
			point:   GeoPoint{Longitude: -180.0, Latitude: 0.0},
			wantErr: false,
		},
		{
			name:    "Invalid latitude - too high",
			point:   GeoPoint{Longitude: 0.0, Latitude: 91.0},
			wantErr: true,
			errMsg:  "invalid latitude",
		},
		{
			name:    "Invalid latitude - NaN",
			point:   GeoPoint{Longitude: 0.0, Latitude: math.NaN()},
			wantErr: true,
			errMsg:  "invalid latitude",
		},
		{
			name:    "Invalid longitude - too low",
			point:   GeoPoint{Longitude: -181.0, Latitude: 0.0},
			wantErr: true,
			errMsg:  "invalid longitude",
		},
		{
			name:    "Invalid longitude - Inf",
			point:   GeoPoint{Longitude: math.Inf(1), Latitude: 0.0},
			wantErr: true,
			errMsg:  "invalid longitude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGeoPoint_DistanceTo(t *testing.T) {
	tests := []struct {
		name      string
		point1    GeoPoint
		point2    GeoPoint
		expected  float64
		tolerance float64
	}{
		{
			name:      "Same point",
			point1:    GeoPoint{Longitude: 8.0, Latitude: 46.0},
			point2:    GeoPoint{Longitude: 8.0, Latitude: 46.0},
			expected:  0.0,
			tolerance: 0.01,
		},
		{
			name:      "1 degree latitude difference",
			point1:    GeoPoint{Longitude: 8.0, Latitude: 46.0},
			point2:    GeoPoint{Longitude: 8.0, Latitude: 47.0},
			expected:  111_000, // ~111km
			tolerance: 1_000,
		},
		{
			name:      "1 degree longitude difference at 60° latitude",
			point1:    GeoPoint{Longitude: 0.0, Latitude: 60.0},
			point2:    GeoPoint{Longitude: 1.0, Latitude: 60.0},
			expected:  55_600, // cos(60°) ≈ 0.5
			tolerance: 1_000,
		},
		{
			name:      "Zurich to Bern (approximate)",
			point1:    GeoPoint{Longitude: 8.5417, Latitude: 47.3769},
			point2:    GeoPoint{Longitude: 7.4474, Latitude: 46.9481},
			expected:  95_000,
			tolerance: 10_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			distance := tt.point1.DistanceTo(tt.point2)
			assert.InDelta(t, tt.expected, distance, tt.tolerance)

			// Проверяем симметричность
			reverseDistance := tt.point2.DistanceTo(tt.point1)
			assert.InDelta(t, distance, reverseDistance, 0.001)
		})
	}
}

func TestGeoPoint_BearingTo(t *testing.T) {
	origin := GeoPoint{Longitude: 2.35, Latitude: 48.85}

	assert.InDelta(t, 0.0, origin.BearingTo(GeoPoint{Longitude: 2.35, Latitude: 48.86}), 0.01)
	assert.InDelta(t, 90.0, origin.BearingTo(GeoPoint{Longitude: 2.36, Latitude: 48.85}), 0.1)
	assert.InDelta(t, -90.0, origin.BearingTo(GeoPoint{Longitude: 2.34, Latitude: 48.85}), 0.1)
	assert.InDelta(t, 180.0, math.Abs(origin.BearingTo(GeoPoint{Longitude: 2.35, Latitude: 48.84})), 0.01)
}

func TestGeoPoint_Destination(t *testing.T) {
	origin := GeoPoint{Longitude: 2.35, Latitude: 48.85}

	for _, bearing := range []float64{0, 45, 90, 135, -90} {
		dest := origin.Destination(250, bearing)

		assert.InDelta(t, 250, origin.DistanceTo(dest), 0.5)
		assert.InDelta(t, bearing, origin.BearingTo(dest), 0.1)
	}
}

func TestGeoPoint_Geohash(t *testing.T) {
	point := GeoPoint{Longitude: 8.987654, Latitude: 46.123456}

	for _, precision := range []int{5, 7, 10} {
		hash := point.Geohash(precision)
		assert.Len(t, hash, precision)
	}

	// Соседние точки в пределах нескольких метров попадают в одну ячейку precision 5
	near := point.Destination(5, 90)
	assert.Equal(t, point.Geohash(5), near.Geohash(5))
}
