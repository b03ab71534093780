package shipping

import (
	"github.com/shopspring/decimal"
)

// RateAdjuster transforms a rate before it is recorded. Implementations must
// return a new value and leave the input untouched.
type RateAdjuster interface {
	AdjustRate(rate Rate) Rate
}

// RateAdjusterFunc adapts a function to the RateAdjuster interface.
type RateAdjusterFunc func(rate Rate) Rate

// AdjustRate calls f(rate).
func (f RateAdjusterFunc) AdjustRate(rate Rate) Rate {
	return f(rate)
}

// PercentageAdjuster multiplies the total charges by factor, e.g. 0.9 for a 10% discount.
func PercentageAdjuster(factor decimal.Decimal) RateAdjuster {
	return RateAdjusterFunc(func(r Rate) Rate {
		r.TotalCharges = r.TotalCharges.Mul(factor)
		return r
	})
}

// RoundingAdjuster rounds the total charges to places decimals, half away from zero.
func RoundingAdjuster(places int32) RateAdjuster {
	return RateAdjusterFunc(func(r Rate) Rate {
		r.TotalCharges = r.TotalCharges.Round(places)
		return r
	})
}

// MarkupAdjuster adds a flat amount to the total charges.
func MarkupAdjuster(amount decimal.Decimal) RateAdjuster {
	return RateAdjusterFunc(func(r Rate) Rate {
		r.TotalCharges = r.TotalCharges.Add(amount)
		return r
	})
}

func applyAdjusters(rate Rate, adjusters []RateAdjuster) Rate {
	for _, adj := range adjusters {
		rate = adj.AdjustRate(rate)
	}
	return rate
}
