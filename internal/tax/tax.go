// Package tax computes GST for an invoice.
//
// Within one jurisdiction each line's tax is split evenly into CGST and SGST;
// across jurisdictions, or when either side is unknown, it is charged as IGST.
// Every per-line component is rounded half-up to two places before it is
// summed, which is what existing invoices were issued with.
package tax

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

type Line struct {
	Qty        int64
	UnitPrice  decimal.Decimal
	TaxPercent decimal.Decimal
}

type Breakdown struct {
	Subtotal   decimal.Decimal
	CGST       decimal.Decimal
	SGST       decimal.Decimal
	IGST       decimal.Decimal
	TotalTax   decimal.Decimal
	Total      decimal.Decimal
	IntraState bool
}

// Round rounds to two decimal places, halves away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsIntraState reports whether both jurisdictions are known and equal,
// ignoring case and surrounding whitespace.
func IsIntraState(supplierState, customerState string) bool {
	s := strings.TrimSpace(supplierState)
	c := strings.TrimSpace(customerState)
	if s == "" || c == "" {
		return false
	}
	return strings.EqualFold(s, c)
}

// LineNet is qty × unit price, unrounded.
func LineNet(l Line) decimal.Decimal {
	return decimal.NewFromInt(l.Qty).Mul(l.UnitPrice)
}

func Compute(supplierState, customerState string, lines []Line) Breakdown {
	intra := IsIntraState(supplierState, customerState)

	subtotal := decimal.Zero
	cgst := decimal.Zero
	sgst := decimal.Zero
	igst := decimal.Zero

	for _, l := range lines {
		net := LineNet(l)
		subtotal = subtotal.Add(net)
		lineTax := net.Mul(l.TaxPercent).Div(hundred)

		if intra {
			half := Round(lineTax.Div(two))
			cgst = cgst.Add(half)
			sgst = sgst.Add(half)
		} else {
			igst = igst.Add(Round(lineTax))
		}
	}

	subtotal = Round(subtotal)
	totalTax := Round(cgst.Add(sgst).Add(igst))

	return Breakdown{
		Subtotal:   subtotal,
		CGST:       Round(cgst),
		SGST:       Round(sgst),
		IGST:       Round(igst),
		TotalTax:   totalTax,
		Total:      Round(subtotal.Add(totalTax)),
		IntraState: intra,
	}
}
