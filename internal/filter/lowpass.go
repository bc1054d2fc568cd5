package filter

// DefaultAltitudeAlpha коэффициент сглаживания высоты
const DefaultAltitudeAlpha = 0.15

// AltitudeFilterState состояние фильтра высоты
type AltitudeFilterState struct {
	SmoothingFactor   float64  `json:"smoothing_factor"`
	LastSmoothedValue *float64 `json:"last_smoothed_value,omitempty"`
}

// LowPassFilter экспоненциальный фильтр нижних частот
type LowPassFilter struct {
	alpha float64
	last  *float64
}

var _ ValueFilter = (*LowPassFilter)(nil)

// NewLowPassFilter создает фильтр; alpha вне (0, 1] заменяется значением по умолчанию
func NewLowPassFilter(alpha float64) *LowPassFilter {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAltitudeAlpha
	}
	return &LowPassFilter{alpha: alpha}
}

// Filter возвращает сглаженное значение; первый вызов возвращает вход без изменений
func (f *LowPassFilter) Filter(value float64) float64 {
	if f.last == nil {
		v := value
		f.last = &v
		return value
	}

	filtered := *f.last + f.alpha*(value-*f.last)
	*f.last = filtered
	return filtered
}

// Reset сбрасывает состояние
func (f *LowPassFilter) Reset() {
	f.last = nil
}

// State возвращает копию состояния
func (f *LowPassFilter) State() AltitudeFilterState {
	state := AltitudeFilterState{SmoothingFactor: f.alpha}
	if f.last != nil {
		v := *f.last
		state.LastSmoothedValue = &v
	}
	return state
}

// Name возвращает имя фильтра
func (f *LowPassFilter) Name() string {
	return "LowPassFilter"
}
