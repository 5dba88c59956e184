package types

import "github.com/shopspring/decimal"

// MinorUnits converts a display-currency amount (rupees) into minor units
// (paise) using round-half-away-from-zero on the second decimal place.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts minor units back into a display-currency amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
