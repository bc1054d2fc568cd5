package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/pkg/pool"
)

const (
	gpxCreator     = "QROSS Tracker"
	gpxNamespace   = "http://www.topografix.com/GPX/1/1"
	xsiNamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	gpxSchema      = "http://www.topografix.com/GPX/1/1 http://www.topografix.com/GPX/1/1/gpx.xsd"
	gpxTrackDesc   = "Track recorded by QROSS Tracker"
	gpxWaypointSym = "Flag, Blue"

	// ISO 8601 с миллисекундами в UTC
	gpxTimeLayout = "2006-01-02T15:04:05.000Z"
)

// gpxDocument структура GPX 1.1 файла
type gpxDocument struct {
	XMLName  xml.Name `xml:"gpx"`
	Version  string   `xml:"version,attr"`
	Creator  string   `xml:"creator,attr"`
	XMLNS    string   `xml:"xmlns,attr,omitempty"`
	XMLNSXSI string   `xml:"xmlns:xsi,attr,omitempty"`
	XSI      string   `xml:"xsi:schemaLocation,attr,omitempty"`

	Metadata  gpxMetadata   `xml:"metadata"`
	Waypoints []gpxWaypoint `xml:"wpt"`
	Tracks    []gpxTrack    `xml:"trk"`
}

type gpxMetadata struct {
	Name string `xml:"name,omitempty"`
	Time string `xml:"time,omitempty"`
}

// gpxWaypoint точка интереса; координаты строками для фиксированной точности
type gpxWaypoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Name string `xml:"name"`
	Desc string `xml:"desc,omitempty"`
	Sym  string `xml:"sym,omitempty"`
}

type gpxTrack struct {
	Name     string       `xml:"name,omitempty"`
	Desc     string       `xml:"desc,omitempty"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat       string  `xml:"lat,attr"`
	Lon       string  `xml:"lon,attr"`
	Elevation *string `xml:"ele,omitempty"`
	Time      string  `xml:"time,omitempty"`
}

// GPX сериализует трек в GPX 1.1. Результат детерминирован при одинаковых
// входных данных и exportedAt. Пустой путь дает корректный файл без точек.
func GPX(path models.Path, name string, pois []models.POI, exportedAt time.Time) ([]byte, error) {
	doc := gpxDocument{
		Version:  "1.1",
		Creator:  gpxCreator,
		XMLNS:    gpxNamespace,
		XMLNSXSI: xsiNamespace,
		XSI:      gpxSchema,
		Metadata: gpxMetadata{
			Name: name,
			Time: formatTime(exportedAt),
		},
		Waypoints: make([]gpxWaypoint, 0, len(pois)),
	}

	for _, poi := range pois {
		doc.Waypoints = append(doc.Waypoints, gpxWaypoint{
			Lat:  formatCoordinate(poi.Coordinates.Latitude),
			Lon:  formatCoordinate(poi.Coordinates.Longitude),
			Name: poi.Name,
			Desc: poi.Comment,
			Sym:  gpxWaypointSym,
		})
	}

	segment := gpxSegment{Points: make([]gpxPoint, 0, len(path))}
	for _, point := range path {
		p := gpxPoint{
			Lat:  formatCoordinate(point.Coordinates.Latitude),
			Lon:  formatCoordinate(point.Coordinates.Longitude),
			Time: formatTime(point.Time()),
		}
		if point.Altitude != nil {
			ele := strconv.FormatFloat(*point.Altitude, 'f', 1, 64)
			p.Elevation = &ele
		}
		segment.Points = append(segment.Points, p)
	}

	doc.Tracks = []gpxTrack{{
		Name:     name,
		Desc:     gpxTrackDesc,
		Segments: []gpxSegment{segment},
	}}

	buf := pool.Global.GetBuffer()
	defer pool.Global.PutBuffer(buf)

	if err := writeGPX(buf, &doc); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func writeGPX(w io.Writer, doc *gpxDocument) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return nil
}

// ParseGPX читает GPX обратно в трек. Сегменты всех треков склеиваются в один путь.
func ParseGPX(r io.Reader) (*Track, error) {
	var doc gpxDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	track := &Track{
		Name: doc.Metadata.Name,
		Path: models.Path{},
		POIs: make([]models.POI, 0, len(doc.Waypoints)),
	}

	if doc.Metadata.Time != "" {
		t, err := time.Parse(time.RFC3339Nano, doc.Metadata.Time)
		if err != nil {
			return nil, fmt.Errorf("invalid metadata time %q: %w", doc.Metadata.Time, err)
		}
		track.ExportedAt = t
	}

	for i, wpt := range doc.Waypoints {
		coords, err := parseCoordinates(wpt.Lat, wpt.Lon)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		track.POIs = append(track.POIs, models.POI{
			Coordinates: coords,
			Name:        wpt.Name,
			Comment:     wpt.Desc,
		})
	}

	for _, trk := range doc.Tracks {
		if track.Name == "" {
			track.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			for i, pt := range seg.Points {
				point, err := parsePoint(pt)
				if err != nil {
					return nil, fmt.Errorf("track point %d: %w", i, err)
				}
				track.Path = append(track.Path, point)
			}
		}
	}

	return track, nil
}

func parsePoint(pt gpxPoint) (models.PathPoint, error) {
	coords, err := parseCoordinates(pt.Lat, pt.Lon)
	if err != nil {
		return models.PathPoint{}, err
	}

	point := models.PathPoint{Coordinates: coords}

	if pt.Elevation != nil {
		ele, err := strconv.ParseFloat(*pt.Elevation, 64)
		if err != nil {
			return models.PathPoint{}, fmt.Errorf("invalid elevation %q: %w", *pt.Elevation, err)
		}
		point.Altitude = &ele
	}

	if pt.Time != "" {
		t, err := time.Parse(time.RFC3339Nano, pt.Time)
		if err != nil {
			return models.PathPoint{}, fmt.Errorf("invalid time %q: %w", pt.Time, err)
		}
		point.TimestampMs = t.UnixMilli()
	}

	return point, nil
}

func parseCoordinates(lat, lon string) (models.GeoPoint, error) {
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("invalid latitude %q: %w", lat, err)
	}
	longitude, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("invalid longitude %q: %w", lon, err)
	}

	point := models.NewGeoPoint(longitude, latitude)
	if err := point.Validate(); err != nil {
		return models.GeoPoint{}, err
	}
	return point, nil
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(gpxTimeLayout)
}
