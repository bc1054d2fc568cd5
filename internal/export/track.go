package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flybeeper/track-recorder/internal/models"
)

// ErrUnknownFormat неподдерживаемый формат экспорта
var ErrUnknownFormat = errors.New("unknown export format")

// Track трек для экспорта: путь, POI и метаданные
type Track struct {
	Name       string
	Path       models.Path
	POIs       []models.POI
	ExportedAt time.Time // Заполняется только при разборе файла
}

// Format формат файла трека
type Format string

const (
	FormatGPX     Format = "gpx"
	FormatKML     Format = "kml"
	FormatGeoJSON Format = "geojson"
)

// Formats поддерживаемые форматы в порядке предпочтения
var Formats = []Format{FormatGPX, FormatKML, FormatGeoJSON}

// ParseFormat разбирает имя формата без учета регистра; пустая строка означает GPX
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatGPX, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType возвращает MIME тип формата
func (f Format) ContentType() string {
	switch f {
	case FormatGPX:
		return "application/gpx+xml"
	case FormatKML:
		return "application/vnd.google-earth.kml+xml"
	case FormatGeoJSON:
		return "application/geo+json"
	default:
		return "application/octet-stream"
	}
}

// Extension возвращает расширение файла без точки
func (f Format) Extension() string {
	return string(f)
}

// Render сериализует трек в заданном формате
func Render(format Format, track Track, exportedAt time.Time) ([]byte, error) {
	switch format {
	case FormatGPX:
		return GPX(track.Path, track.Name, track.POIs, exportedAt)
	case FormatKML:
		return KML(track.Path, track.Name, track.POIs)
	case FormatGeoJSON:
		fc := GeoJSON(track.Path, track.POIs)
		data, err := fc.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode GeoJSON: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}
