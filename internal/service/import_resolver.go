package service

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The legacy sheets reference each other only by opaque integer keys:
// GOODSMASTER rows point at SKUMASTER via SKU_KEY and at UOFQTY via UTQ_KEY,
// and ARPLU rows point at GOODSMASTER via GOODS_KEY. keyResolver holds the
// mapping tables built while importing, in that dependency order.

type unitDef struct {
	name string
	qty  decimal.Decimal
}

type goodsRef struct {
	productID uuid.UUID
	unitID    uuid.UUID
}

type keyResolver struct {
	units    map[int]unitDef
	products map[int]uuid.UUID
	goods    map[int]goodsRef
}

func newKeyResolver() *keyResolver {
	return &keyResolver{
		units:    make(map[int]unitDef),
		products: make(map[int]uuid.UUID),
		goods:    make(map[int]goodsRef),
	}
}

// fallbackUnit stands in when a goods row references a unit key that never
// appeared in the UOFQTY sheet.
var fallbackUnit = unitDef{name: "PCS", qty: decimal.NewFromInt(1)}

func (r *keyResolver) unitFor(key int) unitDef {
	if def, ok := r.units[key]; ok {
		return def
	}
	return fallbackUnit
}

// parseLegacyKey parses an opaque integer key read as a display string.
// Returns false for anything unparseable; the caller skips the row.
func parseLegacyKey(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	// Spreadsheet coercion sometimes yields "10.0" for integer cells.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// parsePrice parses a price cell after stripping thousands separators and
// whitespace. Non-positive or unparseable prices return false and the row is
// discarded.
func parsePrice(raw string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(raw, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(s)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

// parseQuantity parses a unit conversion quantity, defaulting to 1.
func parseQuantity(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.NewFromInt(1)
	}
	qty, err := decimal.NewFromString(s)
	if err != nil || qty.IsZero() {
		return decimal.NewFromInt(1)
	}
	return qty
}

// parseLevel parses a price-level cell, defaulting to 1 when absent or zero.
func parseLevel(raw string) int {
	if n, ok := parseLegacyKey(raw); ok && n > 0 {
		return n
	}
	return 1
}
