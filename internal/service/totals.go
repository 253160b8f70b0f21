package service

import (
	"github.com/shopspring/decimal"

	"stockflow/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// round2 is the single rounding rule for money in this codebase: half-up to
// two decimal places, applied at every intermediate step rather than once at
// the end.
func round2(val float64) float64 {
	return decimal.NewFromFloat(val).Round(2).InexactFloat64()
}

type lineAmounts struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Total          float64
}

// computeLine prices one bill line. Each monetary output is rounded to two
// decimals independently before feeding the next step.
func computeLine(quantity int, unitPrice float64, discountPct float64, taxPct float64) lineAmounts {
	price := decimal.NewFromFloat(unitPrice)
	subtotal := price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	discount := subtotal.Mul(decimal.NewFromFloat(discountPct)).Div(hundred).Round(2)
	taxable := subtotal.Sub(discount).Round(2)
	tax := taxable.Mul(decimal.NewFromFloat(taxPct)).Div(hundred).Round(2)
	total := taxable.Add(tax).Round(2)

	return lineAmounts{
		Subtotal:       subtotal.InexactFloat64(),
		DiscountAmount: discount.InexactFloat64(),
		TaxAmount:      tax.InexactFloat64(),
		Total:          total.InexactFloat64(),
	}
}

type documentAmounts struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	TotalAmount    float64
}

// computeDocument derives the bill-level amounts from the line subtotals. The
// document total is built from the document subtotal (sum of line subtotals)
// with the document-level discount and tax applied, NOT from the sum of line
// totals; line-level discount and tax live only on the line snapshot.
func computeDocument(items []domain.BillItem, discountPct float64, taxPct float64) documentAmounts {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(item.Subtotal))
	}
	subtotal = subtotal.Round(2)
	discount := subtotal.Mul(decimal.NewFromFloat(discountPct)).Div(hundred).Round(2)
	taxable := subtotal.Sub(discount).Round(2)
	tax := taxable.Mul(decimal.NewFromFloat(taxPct)).Div(hundred).Round(2)
	total := taxable.Add(tax).Round(2)

	return documentAmounts{
		Subtotal:       subtotal.InexactFloat64(),
		DiscountAmount: discount.InexactFloat64(),
		TaxAmount:      tax.InexactFloat64(),
		TotalAmount:    total.InexactFloat64(),
	}
}
