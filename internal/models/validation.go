package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrEmptyName имя без непробельных символов
	ErrEmptyName = errors.New("name must not be empty")

	// ErrInvalidFix фикс не прошел проверку
	ErrInvalidFix = errors.New("invalid fix")

	// ErrMalformedFix полезная нагрузка фикса не разобрана
	ErrMalformedFix = errors.New("malformed fix payload")

	// ErrPoorAccuracy точность фикса хуже порога
	ErrPoorAccuracy = errors.New("accuracy exceeds threshold")
)

// ValidateRawFix проверяет фикс на границе сбора данных, до попадания в трекер.
// accuracyThreshold <= 0 отключает проверку точности.
func ValidateRawFix(fix RawFix, accuracyThreshold float64) error {
	if err := fix.Position().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFix, err)
	}
	if math.IsNaN(fix.AccuracyMeters) || fix.AccuracyMeters < 0 {
		return fmt.Errorf("%w: invalid accuracy: %f", ErrInvalidFix, fix.AccuracyMeters)
	}
	if accuracyThreshold > 0 && fix.AccuracyMeters > accuracyThreshold {
		return fmt.Errorf("%w: %.1fm exceeds threshold %.1fm", ErrPoorAccuracy, fix.AccuracyMeters, accuracyThreshold)
	}
	if fix.Altitude != nil && (math.IsNaN(*fix.Altitude) || math.IsInf(*fix.Altitude, 0)) {
		return fmt.Errorf("%w: invalid altitude: %f", ErrInvalidFix, *fix.Altitude)
	}
	if fix.SensorTimestampMs <= 0 {
		return fmt.Errorf("%w: invalid timestamp: %d", ErrInvalidFix, fix.SensorTimestampMs)
	}
	return nil
}

// ValidateName проверяет имя трека или POI
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return nil
}
