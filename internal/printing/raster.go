package printing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	"golang.org/x/image/draw"

	"invoice-printer-bridge/internal/receipt"
)

const maxRasterHeight = 0xffff

// Raster converts img to a GS v 0 raster bit image. The image is flattened
// onto white, scaled down to maxDots when wider, and thresholded at 50%
// luminance.
func Raster(img image.Image, maxDots int) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDots > 0 && w > maxDots {
		h = h * maxDots / w
		w = maxDots
	}
	h = min(max(h, 1), maxRasterHeight)
	w = max(w, 1)

	flat := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(flat, flat.Bounds(), image.White, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(flat, flat.Bounds(), img, b, draw.Over, nil)

	widthBytes := (w + 7) / 8
	out := make([]byte, 0, 8+widthBytes*h)
	out = append(out, gs, 'v', '0', 0,
		byte(widthBytes), byte(widthBytes>>8),
		byte(h), byte(h>>8))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x += 8 {
			var packed byte
			for bit := 0; bit < 8 && x+bit < w; bit++ {
				if isDark(flat, x+bit, y) {
					packed |= 1 << uint(7-bit)
				}
			}
			out = append(out, packed)
		}
	}
	return out
}

func isDark(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	gray := (299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B)) / 1000
	return gray < 128
}

// LoadLogo reads the logo file at path. A missing file is not an error:
// it returns nil and the receipt is printed without a logo.
func LoadLogo(path string) (*receipt.Logo, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("logo %s: %w", path, err)
	}
	return &receipt.Logo{Path: path, Data: data}, nil
}
