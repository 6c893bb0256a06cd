// Package money holds the currency helpers shared by the pipeline stages.
// Amounts are EUR float64 at the edges and decimal internally so that
// rounding to cents is exact.
package money

import "github.com/shopspring/decimal"

// microsPerUnit is the ad platform's fixed-point scale (1 EUR = 1,000,000 micros).
const microsPerUnit = 1_000_000

// Round2 rounds an amount to cents, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ToMicros converts EUR to ad platform micros.
func ToMicros(eur float64) int64 {
	return decimal.NewFromFloat(eur).Mul(decimal.NewFromInt(microsPerUnit)).Round(0).IntPart()
}

// FromMicros converts ad platform micros to EUR.
func FromMicros(micros int64) float64 {
	return decimal.NewFromInt(micros).Div(decimal.NewFromInt(microsPerUnit)).InexactFloat64()
}

// Ratio returns a/b, or 0 when b is zero.
func Ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
