// Package pipeline provides the shared conversion plumbing between the
// dispatch layer's pixel buffers and the Go image types the codec backends
// consume, plus the unified-quality mapping tables.
package pipeline

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
)

// FromImage converts a decoded image.Image into the codec's native PixelData
// variant.  The mapping is deliberately conservative: each source type maps
// to the variant that loses nothing, and anything unrecognized goes through
// an NRGBA clone.
func FromImage(img image.Image) (*core.PixelData, error) {
	switch src := img.(type) {
	case *image.Gray:
		return fromGray(src)
	case *image.NRGBA:
		return fromNRGBA(src)
	case *image.NRGBA64:
		return fromNRGBA64(src)
	case *image.YCbCr:
		return fromYCbCr(src)
	case *image.Gray16:
		return fromGray16(src)
	case *image.RGBA:
		// Premultiplied; only the fully opaque case converts without loss.
		if src.Opaque() {
			return fromOpaqueRGBA(src)
		}
		return fromNRGBA(imaging.Clone(src))
	case *image.RGBA64:
		if src.Opaque() {
			return fromOpaqueRGBA64(src)
		}
		return fromNRGBA64(nrgba64Clone(src))
	case *image.Paletted:
		// Palette entries may be translucent; expand to RGBA8.
		return fromNRGBA(imaging.Clone(src))
	default:
		return fromNRGBA(imaging.Clone(img))
	}
}

func fromGray(src *image.Gray) (*core.PixelData, error) {
	b := src.Bounds()
	px, err := core.NewPixelData(core.LayoutGray8, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		copy(px.Pix[y*b.Dx():], row)
	}
	return px, nil
}

func fromNRGBA(src *image.NRGBA) (*core.PixelData, error) {
	b := src.Bounds()
	px, err := core.NewPixelData(core.LayoutRGBA8, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	rowLen := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		copy(px.Pix[y*rowLen:], src.Pix[y*src.Stride:y*src.Stride+rowLen])
	}
	return px, nil
}

func fromNRGBA64(src *image.NRGBA64) (*core.PixelData, error) {
	b := src.Bounds()
	px, err := core.NewPixelData(core.LayoutRGBA16, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	rowLen := b.Dx() * 8
	for y := 0; y < b.Dy(); y++ {
		copy(px.Pix[y*rowLen:], src.Pix[y*src.Stride:y*src.Stride+rowLen])
	}
	return px, nil
}

func fromGray16(src *image.Gray16) (*core.PixelData, error) {
	b := src.Bounds()
	px, err := core.NewPixelData(core.LayoutRGB16, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	i := 0
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*2]
		for x := 0; x < len(row); x += 2 {
			px.Pix[i] = row[x]
			px.Pix[i+1] = row[x+1]
			px.Pix[i+2] = row[x]
			px.Pix[i+3] = row[x+1]
			px.Pix[i+4] = row[x]
			px.Pix[i+5] = row[x+1]
			i += 6
		}
	}
	return px, nil
}

func fromOpaqueRGBA(src *image.RGBA) (*core.PixelData, error) {
	b := src.Bounds()
	px, err := core.NewPixelData(core.LayoutRGB8, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	i := 0
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			px.Pix[i] = row[x]
			px.Pix[i+1] = row[x+1]
			px.Pix[i+2] = row[x+2]
			i += 3
		}
	}
	return px, nil
}

func fromOpaqueRGBA64(src *image.RGBA64) (*core.PixelData, error) {
	b := src.Bounds()
	px, err := core.NewPixelData(core.LayoutRGB16, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	i := 0
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*8]
		for x := 0; x < len(row); x += 8 {
			copy(px.Pix[i:i+6], row[x:x+6])
			i += 6
		}
	}
	return px, nil
}

func nrgba64Clone(src image.Image) *image.NRGBA64 {
	b := src.Bounds()
	dst := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, color.NRGBA64Model.Convert(src.At(x, y)))
		}
	}
	return dst
}

func fromYCbCr(src *image.YCbCr) (*core.PixelData, error) {
	b := src.Bounds()
	px, err := core.NewPixelData(core.LayoutRGB8, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.YCbCrAt(x, y)
			r, g, bb := color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
			px.Pix[i] = r
			px.Pix[i+1] = g
			px.Pix[i+2] = bb
			i += 3
		}
	}
	return px, nil
}

// ToImage converts a PixelData back into a standard image for an encoder.
// The pixel buffer is copied, never aliased, so the caller's data stays
// untouched by encoder-side mutation.
func ToImage(px *core.PixelData) (image.Image, error) {
	if err := px.Validate(); err != nil {
		return nil, err
	}
	w, h := px.Width, px.Height

	switch px.Layout {
	case core.LayoutGray8:
		dst := image.NewGray(image.Rect(0, 0, w, h))
		copy(dst.Pix, px.Pix)
		return dst, nil

	case core.LayoutRGBA8:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		copy(dst.Pix, px.Pix)
		return dst, nil

	case core.LayoutRGB8:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i, j := 0, 0; i < len(px.Pix); i, j = i+3, j+4 {
			dst.Pix[j] = px.Pix[i]
			dst.Pix[j+1] = px.Pix[i+1]
			dst.Pix[j+2] = px.Pix[i+2]
			dst.Pix[j+3] = 0xFF
		}
		return dst, nil

	case core.LayoutRGBA16:
		dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
		copy(dst.Pix, px.Pix)
		return dst, nil

	case core.LayoutRGB16:
		dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
		for i, j := 0, 0; i < len(px.Pix); i, j = i+6, j+8 {
			copy(dst.Pix[j:j+6], px.Pix[i:i+6])
			dst.Pix[j+6] = 0xFF
			dst.Pix[j+7] = 0xFF
		}
		return dst, nil

	case core.LayoutRGBF32, core.LayoutRGBAF32:
		return floatToImage(px)
	}

	return nil, apperrors.New(apperrors.KindInvalidInput, "", "unknown pixel layout")
}

// floatToImage clamps [0,1] float channels into 16-bit.
func floatToImage(px *core.PixelData) (image.Image, error) {
	w, h := px.Width, px.Height
	hasAlpha := px.Layout.HasAlpha()
	channels := px.Layout.Channels()
	dst := image.NewNRGBA64(image.Rect(0, 0, w, h))

	pixelCount := w * h
	for p := 0; p < pixelCount; p++ {
		base := p * channels * 4
		out := p * 8
		for c := 0; c < 3; c++ {
			v := math.Float32frombits(binary.BigEndian.Uint32(px.Pix[base+c*4:]))
			binary.BigEndian.PutUint16(dst.Pix[out+c*2:], floatTo16(v))
		}
		a := uint16(0xFFFF)
		if hasAlpha {
			v := math.Float32frombits(binary.BigEndian.Uint32(px.Pix[base+12:]))
			a = floatTo16(v)
		}
		binary.BigEndian.PutUint16(dst.Pix[out+6:], a)
	}
	return dst, nil
}

func floatTo16(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xFFFF
	}
	return uint16(v*65535 + 0.5)
}

// ToNRGBA renders any PixelData as an 8-bit NRGBA image.  Used by encoders
// whose backend wants exactly that layout (WebP, GIF quantization).
func ToNRGBA(px *core.PixelData) (*image.NRGBA, error) {
	img, err := ToImage(px)
	if err != nil {
		return nil, err
	}
	if n, ok := img.(*image.NRGBA); ok {
		return n, nil
	}
	return imaging.Clone(img), nil
}
