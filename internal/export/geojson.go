package export

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/flybeeper/track-recorder/internal/models"
)

// GeoJSON строит FeatureCollection: линия пути (или точка при единственной
// точке пути) и точка на каждый POI.
func GeoJSON(path models.Path, pois []models.POI) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	switch len(path) {
	case 0:
	case 1:
		f := geojson.NewFeature(path[0].Coordinates.Point())
		f.Properties["kind"] = "track"
		f.Properties["points"] = 1
		fc.Append(f)
	default:
		summary := path.Summary()
		f := geojson.NewFeature(path.LineString())
		f.Properties["kind"] = "track"
		f.Properties["points"] = summary.Points
		f.Properties["distance_km"] = summary.DistanceKm
		f.Properties["elevation_gain_m"] = summary.ElevationGainM
		f.Properties["altitudes"] = altitudes(path)
		fc.Append(f)
	}

	for _, poi := range pois {
		f := geojson.NewFeature(orb.Point{poi.Coordinates.Longitude, poi.Coordinates.Latitude})
		f.Properties["kind"] = "poi"
		f.Properties["name"] = poi.Name
		if poi.Comment != "" {
			f.Properties["comment"] = poi.Comment
		}
		f.Properties["geohash"] = poi.Coordinates.Geohash(models.DefaultGeohashPrecision)
		fc.Append(f)
	}

	return fc
}

// altitudes высоты точек пути; nil для неизвестных
func altitudes(path models.Path) []*float64 {
	out := make([]*float64, len(path))
	for i, point := range path {
		out[i] = point.Altitude
	}
	return out
}
