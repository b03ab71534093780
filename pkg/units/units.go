// Package units converts package dimensions and weights between unit systems.
package units

import "math"

// System identifies the unit system a measurement was declared in.
type System string

const (
	// Imperial measures length in inches and weight in pounds.
	Imperial System = "imperial"
	// Metric measures length in centimetres and weight in kilograms.
	Metric System = "metric"
)

const (
	centimetresPerInch = 2.54
	kilogramsPerPound  = 0.45359237
	ouncesPerPound     = 16
)

// Valid reports whether s is a known unit system.
func (s System) Valid() bool {
	return s == Imperial || s == Metric
}

// LengthUnit returns the carrier-style length unit code ("IN" or "CM").
func (s System) LengthUnit() string {
	if s == Metric {
		return "CM"
	}
	return "IN"
}

// WeightUnit returns the carrier-style weight unit code ("LB" or "KG").
func (s System) WeightUnit() string {
	if s == Metric {
		return "KG"
	}
	return "LB"
}

// ConvertLength converts a length from one system to another.
func ConvertLength(v float64, from, to System) float64 {
	switch {
	case from == to:
		return v
	case from == Imperial && to == Metric:
		return v * centimetresPerInch
	case from == Metric && to == Imperial:
		return v / centimetresPerInch
	default:
		return v
	}
}

// ConvertWeight converts a weight from one system to another.
func ConvertWeight(v float64, from, to System) float64 {
	switch {
	case from == to:
		return v
	case from == Imperial && to == Metric:
		return v * kilogramsPerPound
	case from == Metric && to == Imperial:
		return v / kilogramsPerPound
	default:
		return v
	}
}

// PoundsAndOunces splits an imperial weight into whole pounds and remaining ounces.
// Ounces are rounded up to one decimal so the split never under-declares weight.
func PoundsAndOunces(pounds float64) (int, float64) {
	whole := math.Floor(pounds)
	ounces := (pounds - whole) * ouncesPerPound
	ounces = math.Ceil(ounces*10) / 10
	if ounces >= ouncesPerPound {
		return int(whole) + 1, 0
	}
	return int(whole), ounces
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
