package printing

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"invoice-printer-bridge/internal/receipt"
)

const (
	esc byte = 0x1b
	gs  byte = 0x1d
	lf  byte = 0x0a

	modeEmphasized   byte = 0x08
	modeDoubleHeight byte = 0x10
)

// Encoder turns receipt instructions into ESC/POS bytes. It tracks the
// justification and print mode it last sent so each is only emitted on
// change. An Encoder is not safe for concurrent use.
type Encoder struct {
	buf     bytes.Buffer
	justify receipt.Justification
	mode    byte
	maxDots int
}

// NewEncoder returns an encoder that scales images down to maxDots pixels
// wide (384 for 80mm paper at 203 dpi).
func NewEncoder(maxDots int) *Encoder {
	return &Encoder{maxDots: maxDots}
}

// Begin resets the printer (ESC @). Call it before every copy.
func (e *Encoder) Begin() {
	e.buf.Write([]byte{esc, '@'})
	e.justify = receipt.JustifyLeft
	e.mode = 0
}

func (e *Encoder) Encode(instrs []receipt.Instruction) error {
	for _, in := range instrs {
		switch v := in.(type) {
		case receipt.Text:
			e.setJustify(v.Justify)
			e.setMode(printMode(v.Style))
			e.buf.WriteString(toASCII(v.Content))
			e.buf.WriteByte(lf)
		case receipt.Feed:
			e.setMode(0)
			e.feed(v.Lines)
		case receipt.Image:
			if v.Logo == nil {
				continue
			}
			img, _, err := image.Decode(bytes.NewReader(v.Logo.Data))
			if err != nil {
				return fmt.Errorf("decode logo %s: %w", v.Logo.Path, err)
			}
			e.setMode(0)
			e.setJustify(v.Justify)
			e.buf.Write(Raster(img, e.maxDots))
		case receipt.Cut:
			e.setMode(0)
			e.buf.Write([]byte{gs, 'V', 65, 3})
		default:
			return fmt.Errorf("unsupported instruction %T", in)
		}
	}
	return nil
}

func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) setJustify(j receipt.Justification) {
	if j == e.justify {
		return
	}
	e.buf.Write([]byte{esc, 'a', byte(j)})
	e.justify = j
}

func (e *Encoder) setMode(mode byte) {
	if mode == e.mode {
		return
	}
	e.buf.Write([]byte{esc, '!', mode})
	e.mode = mode
}

func (e *Encoder) feed(lines int) {
	switch {
	case lines <= 0:
	case lines == 1:
		e.buf.WriteByte(lf)
	default:
		for lines > 255 {
			e.buf.Write([]byte{esc, 'd', 255})
			lines -= 255
		}
		e.buf.Write([]byte{esc, 'd', byte(lines)})
	}
}

func printMode(st receipt.Style) byte {
	var m byte
	if st&receipt.StyleEmphasized != 0 {
		m |= modeEmphasized
	}
	if st&receipt.StyleDoubleHeight != 0 {
		m |= modeDoubleHeight
	}
	return m
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// toASCII drops diacritics and replaces what is left outside printable
// ASCII with '?', so text can never inject printer commands.
func toASCII(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		if r == '\t' {
			return r
		}
		if r < 0x20 || r >= 0x7f {
			return '?'
		}
		return r
	}, folded)
}

// TextReceipt encodes free text as a complete job: reset, one line per
// input line, then a cut.
func TextReceipt(text string) []byte {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := strings.Split(text, "\n")
	instrs := make([]receipt.Instruction, 0, len(lines)+1)
	for _, line := range lines {
		instrs = append(instrs, receipt.Text{Content: line})
	}
	instrs = append(instrs, receipt.Cut{})

	e := NewEncoder(0)
	e.Begin()
	// Only Image instructions can fail to encode.
	_ = e.Encode(instrs)
	return e.Bytes()
}
