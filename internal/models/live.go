package models

// LiveUpdateKind тип живого обновления
type LiveUpdateKind string

const (
	LiveFix   LiveUpdateKind = "fix"
	LiveState LiveUpdateKind = "state"
	LivePOI   LiveUpdateKind = "poi"
)

// LiveUpdate обновление для подписчиков живой позиции (WebSocket, Redis)
type LiveUpdate struct {
	Kind           LiveUpdateKind `json:"kind"`
	SessionID      string         `json:"session_id"`
	State          string         `json:"state"`
	Position       *GeoPoint      `json:"position,omitempty"`
	Altitude       *float64       `json:"altitude,omitempty"`
	Geohash        string         `json:"geohash,omitempty"`
	Admitted       bool           `json:"admitted,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	PathPoints     int            `json:"path_points"`
	DistanceKm     float64        `json:"distance_km"`
	ElevationGainM float64        `json:"elevation_gain_m"`
	POI            *POI           `json:"poi,omitempty"`
	TimestampMs    int64          `json:"timestamp"`
}
