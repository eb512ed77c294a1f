// Package pricing computes line and document totals for quotations and
// invoices. All functions are pure; amounts are derived from inputs on every
// call and never accumulated.
package pricing

import (
	"fmt"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// DiscountType selects how a line discount is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "Percentage"
	DiscountFixed      DiscountType = "Fixed"
)

// Default GST split applied to invoice lines when rates are not set.
const (
	DefaultCGSTRate = 9.0
	DefaultSGSTRate = 9.0
	DefaultIGSTRate = 0.0
)

// QuotationLine is the pricing input for a quotation item: a single tax rate.
type QuotationLine struct {
	Quantity     float64
	UnitPrice    float64
	Discount     float64
	DiscountType DiscountType
	TaxRate      float64
}

// InvoiceLine is the pricing input for an invoice item: independent GST rates.
type InvoiceLine struct {
	Quantity     float64
	UnitPrice    float64
	Discount     float64
	DiscountType DiscountType
	CGSTRate     float64
	SGSTRate     float64
	IGSTRate     float64
}

// LineAmounts carries the derived amounts for one line.
// TotalAmount == (Quantity*UnitPrice - DiscountAmount) + TaxAmount.
type LineAmounts struct {
	GrossAmount    float64
	DiscountAmount float64
	TaxableAmount  float64
	TaxAmount      float64
	TotalAmount    float64
}

// DocumentTotals aggregates line amounts.
// GrandTotal == Subtotal - TotalDiscount + TotalTax.
type DocumentTotals struct {
	Subtotal      float64
	TotalDiscount float64
	TotalTax      float64
	GrandTotal    float64
}

// ComputeQuotationLine derives amounts for a quotation line.
func ComputeQuotationLine(line QuotationLine) (LineAmounts, error) {
	return computeLine(line.Quantity, line.UnitPrice, line.Discount, line.DiscountType, line.TaxRate)
}

// ComputeInvoiceLine derives amounts for an invoice line. The tax applied is
// the sum of the cgst/sgst/igst rates over the post-discount taxable amount.
func ComputeInvoiceLine(line InvoiceLine) (LineAmounts, error) {
	if line.CGSTRate < 0 || line.SGSTRate < 0 || line.IGSTRate < 0 {
		return LineAmounts{}, fmt.Errorf("%w: negative tax rate", shared.ErrValidation)
	}
	return computeLine(line.Quantity, line.UnitPrice, line.Discount, line.DiscountType, line.CGSTRate+line.SGSTRate+line.IGSTRate)
}

func computeLine(quantity, unitPrice, discount float64, discountType DiscountType, taxRate float64) (LineAmounts, error) {
	if quantity < 1 {
		return LineAmounts{}, fmt.Errorf("%w: quantity must be at least 1", shared.ErrValidation)
	}
	if unitPrice < 0 {
		return LineAmounts{}, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	if discount < 0 {
		return LineAmounts{}, fmt.Errorf("%w: discount must not be negative", shared.ErrValidation)
	}
	if taxRate < 0 {
		return LineAmounts{}, fmt.Errorf("%w: tax rate must not be negative", shared.ErrValidation)
	}

	gross := quantity * unitPrice

	var discountAmount float64
	switch discountType {
	case DiscountFixed:
		discountAmount = discount
	case DiscountPercentage, "":
		discountAmount = gross * discount / 100
	default:
		return LineAmounts{}, fmt.Errorf("%w: unknown discount type %q", shared.ErrValidation, discountType)
	}

	// Discount applies before tax: tax is charged on the taxable amount.
	taxable := gross - discountAmount
	taxAmount := taxable * taxRate / 100

	return LineAmounts{
		GrossAmount:    gross,
		DiscountAmount: discountAmount,
		TaxableAmount:  taxable,
		TaxAmount:      taxAmount,
		TotalAmount:    taxable + taxAmount,
	}, nil
}

// TotalsOf sums line amounts into document aggregates.
func TotalsOf(lines []LineAmounts) DocumentTotals {
	var totals DocumentTotals
	for _, line := range lines {
		totals.Subtotal += line.GrossAmount
		totals.TotalDiscount += line.DiscountAmount
		totals.TotalTax += line.TaxAmount
		totals.GrandTotal += line.TotalAmount
	}
	return totals
}
