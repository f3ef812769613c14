package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		in   string
		want Model
	}{
		{"Piece Rate", PieceRate},
		{"piece rate", PieceRate},
		{"  Piece   Rate ", PieceRate},
		{"Weight Based", WeightBased},
		{"Gross Weight", WeightBased},
		{"", WeightBased},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseModel(tt.in))
		})
	}
}

func TestPriceWeightBasedExample(t *testing.T) {
	b := Price(WeightBased, Line{
		Quantity:     1,
		Rate:         dec("5000"),
		NetWeight:    dec("2"),
		MakingCharge: dec("200"),
		Wastage:      dec("50"),
	})

	assert.Equal(t, "10000", b.Amount.String())
	assert.Equal(t, "10250", b.PreTax().String())
	assert.Equal(t, "307.5", b.Tax.String())
	assert.Equal(t, "10557.5", b.Total.String())
}

func TestPriceWeightBasedScalesByQuantity(t *testing.T) {
	b := Price(WeightBased, Line{
		Quantity:     3,
		Rate:         dec("6123.45"),
		NetWeight:    dec("1.237"),
		MakingCharge: dec("412.10"),
		Wastage:      dec("33.3"),
	})

	unit := Price(WeightBased, Line{
		Quantity:     1,
		Rate:         dec("6123.45"),
		NetWeight:    dec("1.237"),
		MakingCharge: dec("412.10"),
		Wastage:      dec("33.3"),
	})

	three := decimal.NewFromInt(3)
	assert.True(t, unit.Total.Mul(three).Equal(b.Total))
	assert.True(t, unit.Tax.Mul(three).Equal(b.Tax))
	assert.True(t, b.MakingCharge.Equal(dec("1236.3")))
	assert.True(t, b.Wastage.Equal(dec("99.9")))
	assert.True(t, b.Total.Equal(b.PreTax().Add(b.Tax)), "total must equal amount+making+wastage+tax")
}

func TestPricePieceRateZeroesCharges(t *testing.T) {
	b := Price(PieceRate, Line{
		Quantity:     4,
		Rate:         dec("1250"),
		NetWeight:    dec("9"),
		MakingCharge: dec("999"),
		Wastage:      dec("77"),
	})

	assert.Equal(t, "5000", b.Amount.String())
	assert.True(t, b.MakingCharge.IsZero())
	assert.True(t, b.Wastage.IsZero())
	assert.Equal(t, "150", b.Tax.String())
	assert.Equal(t, "5150", b.Total.String())
	assert.True(t, b.Total.Equal(b.Amount.Add(b.Tax)))
}

func TestPriceMissingOptionalFields(t *testing.T) {
	b := Price(WeightBased, Line{Quantity: 2, Rate: dec("100")})

	assert.True(t, b.Amount.IsZero())
	assert.True(t, b.Total.IsZero())
}

func TestPriceIsDeterministic(t *testing.T) {
	line := Line{Quantity: 7, Rate: dec("4321.09"), NetWeight: dec("0.853"), MakingCharge: dec("12.5")}
	first := Price(WeightBased, line)
	for i := 0; i < 10; i++ {
		again := Price(WeightBased, line)
		assert.True(t, first.Amount.Equal(again.Amount))
		assert.True(t, first.Tax.Equal(again.Tax))
		assert.True(t, first.Total.Equal(again.Total))
	}
}
