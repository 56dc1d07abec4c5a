package printer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Raster is a 1-bit image packed MSB-first, one row after another, with a
// set bit meaning a black dot.
type Raster struct {
	WidthBytes int
	Height     int
	Data       []byte
}

var bilevel = color.Palette{color.Black, color.White}

// Rasterize decodes a PNG, JPEG or GIF image, scales it down to at most
// maxWidth dots, flattens transparency onto white, converts it to grayscale
// and dithers it to 1 bit.
func Rasterize(data []byte, maxWidth int) (*Raster, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode image: empty %dx%d image", b.Dx(), b.Dy())
	}

	w, h := b.Dx(), b.Dy()
	if maxWidth > 0 && w > maxWidth {
		h = h * maxWidth / w
		if h == 0 {
			h = 1
		}
		w = maxWidth
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(gray, gray.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Over)
	} else {
		xdraw.CatmullRom.Scale(gray, gray.Bounds(), src, b, xdraw.Over, nil)
	}

	mono := image.NewPaletted(gray.Bounds(), bilevel)
	draw.FloydSteinberg.Draw(mono, mono.Bounds(), gray, image.Point{})

	return pack(mono), nil
}

// pack converts a black/white paletted image to a Raster.
func pack(img *image.Paletted) *Raster {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	r := &Raster{
		WidthBytes: (w + 7) / 8,
		Height:     h,
	}
	r.Data = make([]byte, r.WidthBytes*h)

	for y := 0; y < h; y++ {
		row := r.Data[y*r.WidthBytes:]
		for x := 0; x < w; x++ {
			if img.ColorIndexAt(x, y) == 0 {
				row[x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return r
}
