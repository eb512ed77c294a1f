package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

func TestComputeQuotationLinePercentageDiscount(t *testing.T) {
	amounts, err := ComputeQuotationLine(QuotationLine{
		Quantity:     4,
		UnitPrice:    250,
		Discount:     10,
		DiscountType: DiscountPercentage,
		TaxRate:      18,
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, amounts.GrossAmount)
	require.Equal(t, 100.0, amounts.DiscountAmount)
	require.Equal(t, 900.0, amounts.TaxableAmount)
	require.Equal(t, 162.0, amounts.TaxAmount)
	require.Equal(t, 1062.0, amounts.TotalAmount)
	require.Equal(t, amounts.GrossAmount-amounts.DiscountAmount+amounts.TaxAmount, amounts.TotalAmount)
}

func TestComputeQuotationLineFixedDiscount(t *testing.T) {
	amounts, err := ComputeQuotationLine(QuotationLine{
		Quantity:     2,
		UnitPrice:    500,
		Discount:     50,
		DiscountType: DiscountFixed,
		TaxRate:      18,
	})
	require.NoError(t, err)
	require.Equal(t, 50.0, amounts.DiscountAmount)
	require.Equal(t, 950.0, amounts.TaxableAmount)
	require.Equal(t, 171.0, amounts.TaxAmount)
	require.Equal(t, 1121.0, amounts.TotalAmount)
}

func TestComputeInvoiceLineSplitsGST(t *testing.T) {
	amounts, err := ComputeInvoiceLine(InvoiceLine{
		Quantity:  1,
		UnitPrice: 10000,
		CGSTRate:  DefaultCGSTRate,
		SGSTRate:  DefaultSGSTRate,
		IGSTRate:  DefaultIGSTRate,
	})
	require.NoError(t, err)
	require.Equal(t, 1800.0, amounts.TaxAmount)
	require.Equal(t, 11800.0, amounts.TotalAmount)
}

func TestComputeInvoiceLineIGSTOnly(t *testing.T) {
	amounts, err := ComputeInvoiceLine(InvoiceLine{
		Quantity:  3,
		UnitPrice: 100,
		IGSTRate:  12,
	})
	require.NoError(t, err)
	require.Equal(t, 36.0, amounts.TaxAmount)
	require.Equal(t, 336.0, amounts.TotalAmount)
}

func TestComputeLineRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		line QuotationLine
	}{
		{"zero quantity", QuotationLine{Quantity: 0, UnitPrice: 10}},
		{"negative price", QuotationLine{Quantity: 1, UnitPrice: -1}},
		{"negative discount", QuotationLine{Quantity: 1, UnitPrice: 10, Discount: -5}},
		{"negative tax", QuotationLine{Quantity: 1, UnitPrice: 10, TaxRate: -1}},
		{"unknown discount type", QuotationLine{Quantity: 1, UnitPrice: 10, DiscountType: "Flat"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeQuotationLine(tc.line)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestTotalsOfMatchesLineSums(t *testing.T) {
	lines := []QuotationLine{
		{Quantity: 2, UnitPrice: 100, Discount: 10, DiscountType: DiscountPercentage, TaxRate: 18},
		{Quantity: 1, UnitPrice: 300, Discount: 25, DiscountType: DiscountFixed, TaxRate: 12},
		{Quantity: 5, UnitPrice: 40, TaxRate: 5},
	}
	var amounts []LineAmounts
	for _, line := range lines {
		a, err := ComputeQuotationLine(line)
		require.NoError(t, err)
		amounts = append(amounts, a)
	}

	totals := TotalsOf(amounts)

	var subtotal, discount, tax, grand float64
	for _, a := range amounts {
		subtotal += a.GrossAmount
		discount += a.DiscountAmount
		tax += a.TaxAmount
		grand += a.TotalAmount
	}
	require.Equal(t, subtotal, totals.Subtotal)
	require.Equal(t, discount, totals.TotalDiscount)
	require.Equal(t, tax, totals.TotalTax)
	require.Equal(t, grand, totals.GrandTotal)
	require.InDelta(t, totals.Subtotal-totals.TotalDiscount+totals.TotalTax, totals.GrandTotal, 1e-9)
}

func TestRecomputationIsIdempotent(t *testing.T) {
	line := QuotationLine{Quantity: 7, UnitPrice: 99.99, Discount: 12.5, DiscountType: DiscountPercentage, TaxRate: 18}

	first, err := ComputeQuotationLine(line)
	require.NoError(t, err)
	second, err := ComputeQuotationLine(line)
	require.NoError(t, err)
	require.Equal(t, first, second)

	totalsA := TotalsOf([]LineAmounts{first})
	totalsB := TotalsOf([]LineAmounts{second})
	require.Equal(t, totalsA, totalsB)
}
