package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	// DiscountPercent interprets the value as a percentage of the subtotal.
	DiscountPercent DiscountKind = "percent"
	// DiscountFixed interprets the value as an absolute amount, clamped to the subtotal.
	DiscountFixed DiscountKind = "fixed"
)

// TaxModel selects how document tax is derived.
type TaxModel string

const (
	// TaxPerItem applies each line's own rate to its pre-discount amount.
	TaxPerItem TaxModel = "per_item"
	// TaxGlobalOnNet applies a single rate to the subtotal net of discount.
	TaxGlobalOnNet TaxModel = "global_net"
)

var hundred = decimal.NewFromInt(100)

// Line is the pricing view of one document line item. Amount is the
// pre-discount line amount (qty * unit rate); TaxRate is a percentage and is
// only meaningful under TaxPerItem.
type Line struct {
	Amount  decimal.Decimal
	TaxRate decimal.Decimal
}

// DiscountSpec describes a single document-level discount.
type DiscountSpec struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// TaxSpec describes which tax model applies and, for TaxGlobalOnNet, the rate.
type TaxSpec struct {
	Model TaxModel
	Rate  decimal.Decimal
}

// Totals is the derived financial summary of a document. It is republished as
// one value on every recompute; callers never update individual fields.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeDiscount converts a discount spec plus a base amount into a discount
// amount. A zero subtotal always yields a zero discount, a fixed discount
// never exceeds the subtotal, and the result is never negative.
func ComputeDiscount(subtotal decimal.Decimal, spec DiscountSpec) decimal.Decimal {
	if subtotal.Sign() <= 0 || spec.Value.Sign() <= 0 {
		return decimal.Zero
	}
	switch spec.Kind {
	case DiscountPercent:
		return subtotal.Mul(spec.Value).Div(hundred)
	case DiscountFixed:
		if spec.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return spec.Value
	default:
		panic(fmt.Sprintf("pricing: unknown discount kind %q", spec.Kind))
	}
}

// ComputeTax derives the document tax amount under the model named by spec.
//
// TaxPerItem sums line.Amount * line.TaxRate / 100 over pre-discount line
// amounts; the discount is not distributed across lines. TaxGlobalOnNet
// applies spec.Rate to (subtotal - discount), treating a negative base as
// zero. The result is never negative.
func ComputeTax(lines []Line, subtotal, discount decimal.Decimal, spec TaxSpec) decimal.Decimal {
	switch spec.Model {
	case TaxPerItem:
		tax := decimal.Zero
		for _, ln := range lines {
			if ln.Amount.Sign() <= 0 || ln.TaxRate.Sign() <= 0 {
				continue
			}
			tax = tax.Add(ln.Amount.Mul(ln.TaxRate).Div(hundred))
		}
		return tax
	case TaxGlobalOnNet:
		base := subtotal.Sub(discount)
		if base.Sign() <= 0 || spec.Rate.Sign() <= 0 {
			return decimal.Zero
		}
		return base.Mul(spec.Rate).Div(hundred)
	default:
		panic(fmt.Sprintf("pricing: unknown tax model %q", spec.Model))
	}
}

// Compute calculates the full totals snapshot for the provided inputs. It is
// a pure function: identical inputs always produce identical totals, and the
// invariant total == (subtotal - discount) + tax + shipping holds immediately
// after every call.
func Compute(lines []Line, discount DiscountSpec, tax TaxSpec, shipping decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, ln := range lines {
		if ln.Amount.Sign() <= 0 {
			continue
		}
		subtotal = subtotal.Add(ln.Amount)
	}
	if shipping.Sign() < 0 {
		shipping = decimal.Zero
	}
	disc := ComputeDiscount(subtotal, discount)
	taxAmount := ComputeTax(lines, subtotal, disc, tax)
	total := subtotal.Sub(disc).Add(taxAmount).Add(shipping)
	return Totals{
		Subtotal: subtotal,
		Discount: disc,
		Tax:      taxAmount,
		Shipping: shipping,
		Total:    total,
	}
}
