package utils

import (
	"strings"
	"tbs/src/config"
	"tbs/src/types"

	"github.com/shopspring/decimal"
)

// MaxSafeJSONInteger bounds every monetary value leaving the API: JSON
// consumers read numbers as IEEE doubles, so anything past 2^53-1 would be
// silently mangled.
const MaxSafeJSONInteger int64 = 1<<53 - 1

func ResolveTourPriceCents(tourIDRaw string) (int64, bool) {
	tourID := strings.TrimSpace(tourIDRaw)
	price, ok := config.TourPriceByIDCents[tourID]
	if !ok || price < 0 {
		return 0, false
	}
	return price, true
}

// PricedRow is the slice of intent/appointment fields that effective
// amount resolution reads. Nil price fields model legacy rows.
type PricedRow struct {
	Guests          int
	UnitPriceCents  *int64
	TotalPriceCents *int64
	TourID          string
}

// ResolveEffectiveAmountCents applies the amount precedence: explicit
// total, then unit price times guests, then the static tour table, then
// zero. Negative stored values count as missing.
func ResolveEffectiveAmountCents(row PricedRow) int64 {
	guests := int64(row.Guests)
	if guests < 0 {
		guests = 0
	}
	if row.TotalPriceCents != nil && *row.TotalPriceCents >= 0 {
		return *row.TotalPriceCents
	}
	if row.UnitPriceCents != nil && *row.UnitPriceCents >= 0 {
		return *row.UnitPriceCents * guests
	}
	if unit, ok := ResolveTourPriceCents(row.TourID); ok {
		return unit * guests
	}
	return 0
}

// SafeCents is the fail-loud downcast boundary for totals crossing into a
// JSON response.
func SafeCents(value int64, field string) (int64, error) {
	if value > MaxSafeJSONInteger || value < -MaxSafeJSONInteger {
		return 0, &types.OverflowError{Field: field}
	}
	return value, nil
}

func CentsToEur(cents int64) float64 {
	eur, _ := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).Round(2).Float64()
	return eur
}

// CentsToEurChecked gates the conversion behind SafeCents so unsafe
// totals fail loudly instead of rounding off in a JSON double.
func CentsToEurChecked(cents int64, field string) (float64, error) {
	safe, err := SafeCents(cents, field)
	if err != nil {
		return 0, err
	}
	return CentsToEur(safe), nil
}
