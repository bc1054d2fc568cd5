package export

import (
	"fmt"

	"github.com/twpayne/go-kml/v3"

	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/pkg/pool"
)

// KML сериализует трек в KML: папка с POI и линия пути.
// Неизвестная высота записывается как 0.
func KML(path models.Path, name string, pois []models.POI) ([]byte, error) {
	docElements := []kml.Element{
		kml.Name(name),
		kml.Description(gpxTrackDesc),
	}

	if len(pois) > 0 {
		poiElements := []kml.Element{kml.Name("Points of interest")}
		for _, poi := range pois {
			poiElements = append(poiElements, kml.Placemark(
				kml.Name(poi.Name),
				kml.Description(poi.Comment),
				kml.Point(
					kml.Coordinates(kml.Coordinate{
						Lon: poi.Coordinates.Longitude,
						Lat: poi.Coordinates.Latitude,
					}),
				),
			))
		}
		docElements = append(docElements, kml.Folder(poiElements...))
	}

	if len(path) > 0 {
		coords := make([]kml.Coordinate, len(path))
		for i, point := range path {
			coords[i] = kml.Coordinate{
				Lon: point.Coordinates.Longitude,
				Lat: point.Coordinates.Latitude,
			}
			if point.Altitude != nil {
				coords[i].Alt = *point.Altitude
			}
		}

		summary := path.Summary()
		docElements = append(docElements, kml.Placemark(
			kml.Name(name),
			kml.Description(fmt.Sprintf("%.2f km, +%.0f m", summary.DistanceKm, summary.ElevationGainM)),
			kml.LineString(
				kml.Coordinates(coords...),
			),
		))
	}

	doc := kml.KML(
		kml.Document(docElements...),
	)

	buf := pool.Global.GetBuffer()
	defer pool.Global.PutBuffer(buf)

	if err := doc.WriteIndent(buf, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to write KML: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
