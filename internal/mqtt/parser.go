package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flybeeper/track-recorder/internal/models"
	"github.com/flybeeper/track-recorder/pkg/pool"
	"github.com/flybeeper/track-recorder/pkg/utils"
)

// Номера полей RawFix в protobuf wire формате
const (
	fieldLongitude   protowire.Number = 1
	fieldLatitude    protowire.Number = 2
	fieldAltitude    protowire.Number = 3
	fieldAccuracy    protowire.Number = 4
	fieldTimestampMs protowire.Number = 5
)

// Кодировки полезной нагрузки
const (
	EncodingProtobuf = "protobuf"
	EncodingJSON     = "json"
)

// FixMessage распарсенный фикс из MQTT
type FixMessage struct {
	Topic    string        `json:"topic"`
	DeviceID string        `json:"device_id"` // Сегмент топика на месте '+'
	Encoding string        `json:"encoding"`
	Fix      models.RawFix `json:"fix"`
}

// Parser парсер сообщений с фиксами
type Parser struct {
	topic  string
	logger *utils.Logger
}

// NewParser создает парсер для шаблона топика вида tracker/+/fix
func NewParser(topic string, logger *utils.Logger) *Parser {
	return &Parser{
		topic:  topic,
		logger: logger,
	}
}

// Parse разбирает MQTT сообщение. Ошибки оборачивают models.ErrMalformedFix.
func (p *Parser) Parse(topic string, payload []byte) (*FixMessage, error) {
	deviceID, ok := matchTopic(p.topic, topic)
	if !ok {
		return nil, fmt.Errorf("%w: topic %q does not match %q", models.ErrMalformedFix, topic, p.topic)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", models.ErrMalformedFix)
	}

	msg := &FixMessage{Topic: topic, DeviceID: deviceID}

	var err error
	if payload[0] == '{' {
		msg.Encoding = EncodingJSON
		msg.Fix, err = decodeJSONFix(payload)
	} else {
		msg.Encoding = EncodingProtobuf
		msg.Fix, err = DecodeFix(payload)
	}
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(map[string]interface{}{
		"device_id": deviceID,
		"encoding":  msg.Encoding,
		"timestamp": msg.Fix.SensorTimestampMs,
	}).Debug("Parsed fix message")

	return msg, nil
}

// DecodeFix разбирает RawFix в protobuf wire формате.
// Неизвестные поля пропускаются, отсутствие поля 3 означает неизвестную высоту.
func DecodeFix(b []byte) (models.RawFix, error) {
	var (
		fix            models.RawFix
		hasLon, hasLat bool
		hasTimestamp   bool
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return models.RawFix{}, fmt.Errorf("%w: %v", models.ErrMalformedFix, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldTimestampMs && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return models.RawFix{}, fmt.Errorf("%w: timestamp: %v", models.ErrMalformedFix, protowire.ParseError(m))
			}
			fix.SensorTimestampMs = int64(v)
			hasTimestamp = true
			b = b[m:]

		case num >= fieldLongitude && num <= fieldAccuracy && typ == protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return models.RawFix{}, fmt.Errorf("%w: field %d: %v", models.ErrMalformedFix, num, protowire.ParseError(m))
			}
			value := math.Float64frombits(v)
			switch num {
			case fieldLongitude:
				fix.Longitude, hasLon = value, true
			case fieldLatitude:
				fix.Latitude, hasLat = value, true
			case fieldAltitude:
				fix.Altitude = models.Float(value)
			case fieldAccuracy:
				fix.AccuracyMeters = value
			}
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return models.RawFix{}, fmt.Errorf("%w: field %d: %v", models.ErrMalformedFix, num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}

	if !hasLon || !hasLat || !hasTimestamp {
		return models.RawFix{}, fmt.Errorf("%w: lon, lat and timestamp are required", models.ErrMalformedFix)
	}
	return fix, nil
}

// EncodeFix кодирует фикс в protobuf wire формат
func EncodeFix(fix models.RawFix) []byte {
	buf := pool.Global.GetByteSlice()
	defer pool.Global.PutByteSlice(buf)

	b := *buf
	b = appendDouble(b, fieldLongitude, fix.Longitude)
	b = appendDouble(b, fieldLatitude, fix.Latitude)
	if fix.Altitude != nil {
		b = appendDouble(b, fieldAltitude, *fix.Altitude)
	}
	b = appendDouble(b, fieldAccuracy, fix.AccuracyMeters)
	b = protowire.AppendTag(b, fieldTimestampMs, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(fix.SensorTimestampMs))
	*buf = b

	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func decodeJSONFix(payload []byte) (models.RawFix, error) {
	var raw models.FixPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.RawFix{}, fmt.Errorf("%w: %v", models.ErrMalformedFix, err)
	}
	return raw.RawFix()
}

// matchTopic сопоставляет топик с шаблоном MQTT (+ и завершающий #).
// Возвращает сегмент на месте первого '+'.
func matchTopic(pattern, topic string) (string, bool) {
	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")

	var wildcard string
	captured := false
	for i, part := range patternParts {
		if part == "#" {
			if i != len(patternParts)-1 {
				return "", false
			}
			return wildcard, true
		}
		if i >= len(topicParts) {
			return "", false
		}
		switch part {
		case "+":
			if !captured {
				wildcard, captured = topicParts[i], true
			}
		default:
			if part != topicParts[i] {
				return "", false
			}
		}
	}
	if len(patternParts) != len(topicParts) {
		return "", false
	}
	return wildcard, true
}
