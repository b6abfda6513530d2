// Package invoice turns a print request body into a receipt.Invoice.
package invoice

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"invoice-printer-bridge/internal/receipt"
)

// RequiredFields are checked in this order; the first missing one is
// reported.
var RequiredFields = []string{"customer_name", "date", "invoice_number", "items", "subtotal", "discount", "grand_total"}

var (
	ErrInvalidJSON  = errors.New("invalid JSON body")
	ErrInvalidField = errors.New("invalid field")
)

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "Missing required field: " + e.Field
}

// Defaults fill the store details when a request leaves them out.
type Defaults struct {
	CompanyName string
	BranchName  string
	Phone       string
}

// Decode validates body and builds the invoice. Text fields accept JSON
// strings or numbers; prices accept numbers, numeric strings and already
// formatted strings such as "50,000 LBP". A null counts as missing.
func Decode(body []byte, defaults Defaults) (*receipt.Invoice, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidJSON)
	}
	for _, field := range RequiredFields {
		if v := root.Get(field); !v.Exists() || v.Type == gjson.Null {
			return nil, &MissingFieldError{Field: field}
		}
	}

	inv := &receipt.Invoice{
		CompanyName:   textOr(root.Get("company_name"), defaults.CompanyName),
		BranchName:    textOr(root.Get("branch_name"), defaults.BranchName),
		Phone:         textOr(root.Get("phone"), defaults.Phone),
		InvoiceNumber: root.Get("invoice_number").String(),
		Date:          root.Get("date").String(),
		CustomerName:  root.Get("customer_name").String(),
	}

	items := root.Get("items")
	if !items.IsArray() {
		return nil, fmt.Errorf("%w: items must be an array", ErrInvalidField)
	}
	for i, item := range items.Array() {
		li, err := lineItem(item, i)
		if err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, li)
	}

	var err error
	if inv.Subtotal, err = price(root.Get("subtotal"), "subtotal"); err != nil {
		return nil, err
	}
	if inv.Discount, err = price(root.Get("discount"), "discount"); err != nil {
		return nil, err
	}
	if inv.GrandTotal, err = price(root.Get("grand_total"), "grand_total"); err != nil {
		return nil, err
	}
	return inv, nil
}

func lineItem(item gjson.Result, i int) (receipt.LineItem, error) {
	if !item.IsObject() {
		return receipt.LineItem{}, fmt.Errorf("%w: items[%d] must be an object", ErrInvalidField, i)
	}
	qty, err := quantity(item.Get("quantity"), fmt.Sprintf("items[%d].quantity", i))
	if err != nil {
		return receipt.LineItem{}, err
	}
	p, err := price(item.Get("price"), fmt.Sprintf("items[%d].price", i))
	if err != nil {
		return receipt.LineItem{}, err
	}
	total, err := price(item.Get("total"), fmt.Sprintf("items[%d].total", i))
	if err != nil {
		return receipt.LineItem{}, err
	}
	return receipt.LineItem{Name: item.Get("name").String(), Quantity: qty, Price: p, Total: total}, nil
}

// price keeps strings as text so the formatter decides whether they are
// already formatted.
func price(v gjson.Result, field string) (receipt.Price, error) {
	switch v.Type {
	case gjson.String:
		return receipt.PriceText(v.Str), nil
	case gjson.Number:
		p, err := receipt.ParsePriceAmount(v.Raw)
		if err != nil {
			return receipt.Price{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, field, err)
		}
		return p, nil
	case gjson.Null:
		if !v.Exists() {
			return receipt.Price{}, &MissingFieldError{Field: field}
		}
	}
	return receipt.Price{}, fmt.Errorf("%w: %s must be a number or string", ErrInvalidField, field)
}

func quantity(v gjson.Result, field string) (receipt.Quantity, error) {
	switch v.Type {
	case gjson.String:
		return receipt.QuantityText(v.Str), nil
	case gjson.Number:
		d, err := decimal.NewFromString(v.Raw)
		if err == nil {
			err = receipt.CheckMagnitude(d)
		}
		if err != nil {
			return receipt.Quantity{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, field, err)
		}
		return receipt.QuantityAmount(d), nil
	case gjson.Null:
		if !v.Exists() {
			return receipt.Quantity{}, &MissingFieldError{Field: field}
		}
	}
	return receipt.Quantity{}, fmt.Errorf("%w: %s must be a number or string", ErrInvalidField, field)
}

func textOr(v gjson.Result, fallback string) string {
	if !v.Exists() || v.Type == gjson.Null {
		return fallback
	}
	return v.String()
}
