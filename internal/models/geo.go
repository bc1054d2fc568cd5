package models

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// DefaultGeohashPrecision точность geohash для живых обновлений (~150м)
const DefaultGeohashPrecision = 7

// GeoPoint представляет географическую точку (порядок координат lon, lat как в GeoJSON)
type GeoPoint struct {
	Longitude float64 `json:"lon"`
	Latitude  float64 `json:"lat"`
}

// NewGeoPoint создает точку из пары долгота/широта
func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Longitude: lon, Latitude: lat}
}

// Validate проверяет корректность координат
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %f", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %f", p.Longitude)
	}
	return nil
}

// Point возвращает orb.Point
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// FromOrb создает GeoPoint из orb.Point
func FromOrb(pt orb.Point) GeoPoint {
	return GeoPoint{Longitude: pt.Lon(), Latitude: pt.Lat()}
}

// DistanceTo вычисляет расстояние до другой точки в метрах (формула Haversine)
func (p GeoPoint) DistanceTo(other GeoPoint) float64 {
	return geo.DistanceHaversine(p.Point(), other.Point())
}

// BearingTo возвращает начальный азимут на другую точку в градусах [-180, 180]
func (p GeoPoint) BearingTo(other GeoPoint) float64 {
	return geo.Bearing(p.Point(), other.Point())
}

// Destination возвращает точку на расстоянии distance (м) по азимуту bearing (градусы)
func (p GeoPoint) Destination(distance, bearing float64) GeoPoint {
	return FromOrb(geo.PointAtBearingAndDistance(p.Point(), bearing, distance))
}

// Geohash возвращает geohash для точки с заданной точностью
func (p GeoPoint) Geohash(precision int) string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, uint(precision))
}
