// Package pricing computes per-line amounts for the two catalog pricing
// models. Everything here is pure; no rounding is applied.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxPercentage is applied to the pre-tax subtotal of every line.
const TaxPercentage = 3

var taxRate = decimal.New(TaxPercentage, -2)

const pieceRateType = "piece rate"

type Model int

const (
	WeightBased Model = iota
	PieceRate
)

func (m Model) String() string {
	switch m {
	case PieceRate:
		return "Piece Rate"
	case WeightBased:
		return "Weight Based"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// ParseModel maps the catalog's product_type column onto a Model. Only
// "Piece Rate" selects piece pricing; every other value is weight based.
func ParseModel(productType string) Model {
	normalized := strings.Join(strings.Fields(strings.ToLower(productType)), " ")
	if normalized == pieceRateType {
		return PieceRate
	}
	return WeightBased
}

// Line carries the priced inputs of one order line. Zero values stand in for
// omitted optional fields.
type Line struct {
	Quantity     int
	Rate         decimal.Decimal
	NetWeight    decimal.Decimal
	MakingCharge decimal.Decimal
	Wastage      decimal.Decimal
}

type Breakdown struct {
	Amount       decimal.Decimal
	MakingCharge decimal.Decimal
	Wastage      decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

// PreTax is amount + making charge + wastage for the whole line.
func (b Breakdown) PreTax() decimal.Decimal {
	return b.Amount.Add(b.MakingCharge).Add(b.Wastage)
}

func Price(model Model, line Line) Breakdown {
	switch model {
	case PieceRate:
		return pricePieceRate(line)
	case WeightBased:
		return priceWeightBased(line)
	default:
		panic(fmt.Sprintf("pricing: unknown model %d", int(model)))
	}
}

func pricePieceRate(line Line) Breakdown {
	qty := decimal.NewFromInt(int64(line.Quantity))
	amount := line.Rate.Mul(qty)
	tax := amount.Mul(taxRate)
	return Breakdown{
		Amount:       amount,
		MakingCharge: decimal.Zero,
		Wastage:      decimal.Zero,
		Tax:          tax,
		Total:        amount.Add(tax),
	}
}

// priceWeightBased taxes the per-unit subtotal first and only then scales
// every component by quantity.
func priceWeightBased(line Line) Breakdown {
	material := line.Rate.Mul(line.NetWeight)
	subtotal := material.Add(line.MakingCharge).Add(line.Wastage)
	tax := subtotal.Mul(taxRate)
	total := subtotal.Add(tax)

	qty := decimal.NewFromInt(int64(line.Quantity))
	return Breakdown{
		Amount:       material.Mul(qty),
		MakingCharge: line.MakingCharge.Mul(qty),
		Wastage:      line.Wastage.Mul(qty),
		Tax:          tax.Mul(qty),
		Total:        total.Mul(qty),
	}
}
