package zencodecs

import (
	"github.com/cespare/xxhash/v2"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
)

// Automatic format selection walks a fixed candidate order and picks the
// first format the registry can encode.  The order depends only on the
// lossless flag, the pixel layout's alpha channel, and a cheap content
// classification, so the same input always selects the same format.
//
// Lossy requests never fall back to lossless-only formats; when no lossy
// encoder is enabled the selection fails rather than quietly producing a
// much larger file.

const (
	// classifySampleCap bounds the classification work on large images.
	classifySampleCap = 4096
	// flatColorThreshold splits flat graphics from photographic content:
	// at most this many distinct sampled colors counts as flat.
	flatColorThreshold = 256
)

type imageClass int

const (
	classFlat imageClass = iota
	classPhotographic
)

// classify samples up to classifySampleCap evenly spaced pixels and counts
// distinct colors.  Screenshots, diagrams and icons land far under the
// threshold; camera output goes far over it.
func classify(px *core.PixelData) imageClass {
	bpp := px.Layout.BytesPerPixel()
	pixels := px.Width * px.Height
	if pixels == 0 || bpp == 0 {
		return classFlat
	}
	step := pixels / classifySampleCap
	if step < 1 {
		step = 1
	}
	distinct := make(map[uint64]struct{}, flatColorThreshold+1)
	for p := 0; p < pixels; p += step {
		off := p * bpp
		distinct[xxhash.Sum64(px.Pix[off:off+bpp])] = struct{}{}
		if len(distinct) > flatColorThreshold {
			return classPhotographic
		}
	}
	return classFlat
}

// selectFormat returns the first candidate the registry can encode.
func selectFormat(px *core.PixelData, lossless bool, reg Registry) (Format, error) {
	for _, f := range candidates(px, lossless) {
		if reg.CanEncode(f) {
			return f, nil
		}
	}
	return core.FormatUnknown, apperrors.New(apperrors.KindNoSuitableEncoder, "",
		"no enabled encoder fits the request")
}

func candidates(px *core.PixelData, lossless bool) []Format {
	switch {
	case lossless:
		return []Format{WebP, PNG}
	case px.Layout.HasAlpha():
		return []Format{WebP, AVIF}
	case classify(px) == classFlat:
		return []Format{WebP, AVIF, JPEG}
	default:
		return []Format{JPEG, WebP, AVIF}
	}
}
