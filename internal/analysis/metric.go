package analysis

import (
	"math"
	"strconv"
)

// Metric is a report value that may be mathematically undefined on a
// degenerate graph. Undefined metrics render as a placeholder, never as NaN.
type Metric struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// Of wraps v, treating NaN and infinities as undefined.
func Of(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	return Metric{Value: v, Defined: true}
}

// Undefined is the zero Metric.
func Undefined() Metric { return Metric{} }

// Format renders the value with prec decimals, or placeholder when undefined.
func (m Metric) Format(prec int, placeholder string) string {
	if !m.Defined {
		return placeholder
	}
	return strconv.FormatFloat(m.Value, 'f', prec, 64)
}

// String renders with four decimals and "undefined" as placeholder.
func (m Metric) String() string {
	return m.Format(4, PlaceholderUndefined)
}

// Placeholders used in the rendered report.
const (
	PlaceholderUndefined     = "undefined"
	PlaceholderNotComputable = "not computable"
)
