package receipt

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Invoice is the already validated input for one print request.
type Invoice struct {
	CompanyName   string
	BranchName    string
	Phone         string
	InvoiceNumber string
	Date          string
	CustomerName  string
	Items         []LineItem
	Subtotal      Price
	Discount      Price
	GrandTotal    Price
}

type LineItem struct {
	Name     string
	Quantity Quantity
	Price    Price
	Total    Price
}

// Quantity keeps the client's value in its printable form.
type Quantity struct {
	raw string
}

func QuantityText(s string) Quantity { return Quantity{raw: strings.TrimSpace(s)} }

// QuantityAmount prints a number without trailing zeros, so 2.0 shows as 2.
func QuantityAmount(d decimal.Decimal) Quantity { return Quantity{raw: d.String()} }

func QuantityInt(n int64) Quantity { return QuantityAmount(decimal.NewFromInt(n)) }

func (q Quantity) String() string { return q.raw }
