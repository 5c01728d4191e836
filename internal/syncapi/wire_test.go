package syncapi

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialDate(t *testing.T) {
	// Day zero of the legacy format plus the epoch offset.
	assert.Equal(t, 2, SerialDate(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3, SerialDate(time.Date(1900, 1, 2, 0, 0, 0, 0, time.UTC)))
	// Time-of-day must not change the day count.
	assert.Equal(t,
		SerialDate(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)),
		SerialDate(time.Date(2024, 6, 15, 23, 59, 59, 0, time.UTC)))
	// Matches the spreadsheet serial for a known date.
	assert.Equal(t, 45458, SerialDate(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)))
}

func TestPaymentWire(t *testing.T) {
	pmBy, bank := PaymentWire("CASH")
	assert.Equal(t, "Cash", pmBy)
	assert.Nil(t, bank)

	pmBy, bank = PaymentWire("TRANSFER")
	assert.Equal(t, "BANK", pmBy)
	require.NotNil(t, bank)
	assert.Equal(t, 1, *bank)

	pmBy, bank = PaymentWire("CREDIT")
	assert.Equal(t, "CREDIT", pmBy)
	assert.Nil(t, bank)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), MinorUnits(decimal.NewFromInt(100)))
	assert.Equal(t, int64(9950), MinorUnits(decimal.RequireFromString("99.50")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.01")))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
	// Sub-satang fractions round half away from zero.
	assert.Equal(t, int64(101), MinorUnits(decimal.RequireFromString("1.005")))
	assert.Equal(t, int64(-101), MinorUnits(decimal.RequireFromString("-1.005")))
}
