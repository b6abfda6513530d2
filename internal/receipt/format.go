// Package receipt lays out an invoice as a sequence of printer instructions.
// It performs no I/O; an encoder turns the instructions into device bytes.
package receipt

import (
	"fmt"
	"strings"
)

const (
	// MinLineWidth is the narrowest width that still produces a readable
	// receipt. Narrower widths are accepted.
	MinLineWidth = 20

	// MerchantCopy labels the first of the two printed copies.
	MerchantCopy = "MERCHANT COPY"

	labelWidth = 25
	valueWidth = 15
	thankYou   = "Thank you for your business!"
)

// FormatError reports a price field that could not be formatted.
type FormatError struct {
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot format %s: %v", e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Formatter is safe for concurrent use.
type Formatter struct {
	logo *Logo
}

// NewFormatter returns a formatter that prints logo on unlabelled copies.
// A nil logo disables the logo block.
func NewFormatter(logo *Logo) *Formatter {
	return &Formatter{logo: logo}
}

func (f *Formatter) Logo() *Logo { return f.logo }

// Format lays out one copy of inv. An empty copyLabel produces the customer
// copy, which carries the logo instead of a banner. The returned sequence
// never contains a Cut.
func (f *Formatter) Format(inv *Invoice, copyLabel string, lineWidth int) ([]Instruction, error) {
	b := &builder{width: max(lineWidth, 0)}

	if copyLabel == "" && f.logo != nil {
		b.feed(1)
		b.justify = JustifyCenter
		b.out = append(b.out, Image{Logo: f.logo, Justify: JustifyCenter})
		b.feed(1)
	}

	b.feed(1)
	b.rule("=")
	b.justify = JustifyCenter
	if copyLabel != "" {
		b.feed(1)
		b.styled("*** "+copyLabel+" ***", StyleEmphasized|StyleDoubleHeight)
		b.feed(1)
		b.rule("=")
	}
	b.line(inv.CompanyName)
	b.line("Branch: " + inv.BranchName)
	b.line("Tel: " + inv.Phone)
	b.rule("=")

	b.feed(1)
	b.justify = JustifyLeft
	b.line("Invoice #: " + inv.InvoiceNumber)
	b.line("Date: " + inv.Date)
	b.line("Customer: " + inv.CustomerName)
	b.line("")

	b.line("ITEMS:")
	b.rule("-")
	b.feed(1)
	for i, item := range inv.Items {
		price, err := formatField(item.Price, fmt.Sprintf("items[%d].price", i))
		if err != nil {
			return nil, err
		}
		total, err := formatField(item.Total, fmt.Sprintf("items[%d].total", i))
		if err != nil {
			return nil, err
		}
		b.line(fmt.Sprintf("%d. %s - QTY %s", i+1, item.Name, item.Quantity))
		b.line("Unit Price: " + price)
		b.line("Total: " + total)
		b.line("")
	}

	b.rule("-")
	b.justify = JustifyRight
	totals := []struct {
		label, field string
		value        Price
	}{
		{"Subtotal:", "subtotal", inv.Subtotal},
		{"Discount:", "discount", inv.Discount},
		{"Grand Total:", "grand_total", inv.GrandTotal},
	}
	for _, t := range totals {
		v, err := formatField(t.value, t.field)
		if err != nil {
			return nil, err
		}
		b.line(TotalLine(t.label, v))
	}

	b.justify = JustifyCenter
	b.feed(1)
	b.line(thankYou)
	b.feed(2)

	return b.out, nil
}

// TotalLine right-aligns label in a 25 column field followed by value in
// a 15 column field. Longer inputs are not truncated.
func TotalLine(label, value string) string {
	return fmt.Sprintf("%*s%*s", labelWidth, label, valueWidth, value)
}

func formatField(p Price, field string) (string, error) {
	s, err := FormatForDisplay(p)
	if err != nil {
		return "", &FormatError{Field: field, Err: err}
	}
	return s, nil
}

type builder struct {
	out     []Instruction
	justify Justification
	width   int
}

func (b *builder) line(s string) {
	b.out = append(b.out, Text{Content: s, Justify: b.justify})
}

func (b *builder) styled(s string, st Style) {
	b.out = append(b.out, Text{Content: s, Justify: b.justify, Style: st})
}

func (b *builder) rule(ch string) {
	b.line(strings.Repeat(ch, b.width))
}

func (b *builder) feed(n int) {
	b.out = append(b.out, Feed{Lines: n})
}
