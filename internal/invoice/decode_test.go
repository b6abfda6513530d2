package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-printer-bridge/internal/receipt"
)

const validBody = `{
	"company_name": "Acme",
	"branch_name": "Main",
	"phone": "+961-1-000000",
	"invoice_number": "INV-1",
	"date": "2024-01-01",
	"customer_name": "Jane",
	"items": [
		{"name": "Widget", "quantity": 2, "price": 5000, "total": 10000},
		{"name": "Gadget", "quantity": "1.0", "price": "7,500 LBP", "total": "7500"}
	],
	"subtotal": 17500,
	"discount": 0,
	"grand_total": "17,500 LBP"
}`

func TestDecodeValid(t *testing.T) {
	inv, err := Decode([]byte(validBody), Defaults{})
	require.NoError(t, err)

	assert.Equal(t, "Acme", inv.CompanyName)
	assert.Equal(t, "Main", inv.BranchName)
	assert.Equal(t, "+961-1-000000", inv.Phone)
	assert.Equal(t, "INV-1", inv.InvoiceNumber)
	assert.Equal(t, "Jane", inv.CustomerName)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Widget", inv.Items[0].Name)
	assert.Equal(t, "2", inv.Items[0].Quantity.String())
	assert.Equal(t, "1.0", inv.Items[1].Quantity.String())
	assert.True(t, inv.Items[1].Price.IsText())
	assert.False(t, inv.Subtotal.IsText())

	lines, err := receipt.NewFormatter(nil).Format(inv, receipt.MerchantCopy, 32)
	require.NoError(t, err)
	var contents []string
	for _, in := range lines {
		if text, ok := in.(receipt.Text); ok {
			contents = append(contents, text.Content)
		}
	}
	assert.Contains(t, contents, "Unit Price: 7,500 LBP")
	assert.Contains(t, contents, "Total: 7,500 LBP")
	assert.Contains(t, contents, receipt.TotalLine("Grand Total:", "17,500 LBP"))
}

func TestDecodeMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "empty object", body: `{}`, field: "customer_name"},
		{name: "null counts as missing", body: `{"customer_name": null}`, field: "customer_name"},
		{name: "order is fixed", body: `{"customer_name": "a", "date": "d", "items": [], "subtotal": 1, "discount": 0, "grand_total": 1}`, field: "invoice_number"},
		{name: "totals", body: `{"customer_name": "a", "date": "d", "invoice_number": "1", "items": [], "subtotal": 1, "discount": 0}`, field: "grand_total"},
		{name: "item price", body: `{"customer_name": "a", "date": "d", "invoice_number": "1", "items": [{"name": "x", "quantity": 1, "total": 1}], "subtotal": 1, "discount": 0, "grand_total": 1}`, field: "items[0].price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), Defaults{})
			var missing *MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.field, missing.Field)
			assert.Equal(t, "Missing required field: "+tt.field, err.Error())
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"customer_name":`), Defaults{})
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = Decode([]byte(`[1, 2]`), Defaults{})
	assert.ErrorIs(t, err, ErrInvalidJSON)

	base := `"customer_name": "a", "date": "d", "invoice_number": "1", "subtotal": 1, "discount": 0, "grand_total": 1`
	_, err = Decode([]byte(`{`+base+`, "items": "none"}`), Defaults{})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = Decode([]byte(`{`+base+`, "items": [42]}`), Defaults{})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = Decode([]byte(`{`+base+`, "items": [{"name": "x", "quantity": 1, "price": true, "total": 1}]}`), Defaults{})
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestDecodeDefaultsAndNumericText(t *testing.T) {
	body := `{"customer_name": "Jane", "date": "2024-01-01", "invoice_number": 1042, "items": [], "subtotal": 0, "discount": 0, "grand_total": 0, "phone": null}`
	inv, err := Decode([]byte(body), Defaults{CompanyName: "Acme", BranchName: "Hamra", Phone: "01-000000"})
	require.NoError(t, err)
	assert.Equal(t, "1042", inv.InvoiceNumber)
	assert.Equal(t, "Acme", inv.CompanyName)
	assert.Equal(t, "Hamra", inv.BranchName)
	assert.Equal(t, "01-000000", inv.Phone)
	assert.Empty(t, inv.Items)
}

func TestDecodeOversizedNumbers(t *testing.T) {
	base := `"customer_name": "a", "date": "d", "invoice_number": "1", "discount": 0, "grand_total": 1`

	_, err := Decode([]byte(`{`+base+`, "subtotal": 1, "items": [{"name": "x", "quantity": 1e5000000, "price": 1, "total": 1}]}`), Defaults{})
	assert.ErrorIs(t, err, ErrInvalidField)
	assert.ErrorContains(t, err, "items[0].quantity")

	inv, err := Decode([]byte(`{`+base+`, "subtotal": 1e5000000, "items": []}`), Defaults{})
	require.NoError(t, err)
	_, err = receipt.NewFormatter(nil).Format(inv, receipt.MerchantCopy, 32)
	var formatErr *receipt.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "subtotal", formatErr.Field)
	assert.ErrorIs(t, err, receipt.ErrNotNumeric)
}
