package codec

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/pipeline"
	"github.com/imazen/zencodecs/utils"
)

// jpegCodec adapts the standard library JPEG implementation.  One-shot only;
// streaming callers get the single frame through the buffering normalizer.
// The unified quality scale maps 1:1 onto JPEG's native 0-100 scale.
// Metadata embedding is not supported by the backend and is dropped.
type jpegCodec struct{}

func init() { register(jpegCodec{}, true, true) }

func (jpegCodec) Format() core.Format { return core.FormatJPEG }

func (jpegCodec) Probe(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, error) {
	if err := core.CheckContext(ctx, core.FormatJPEG); err != nil {
		return nil, err
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "jpeg", err)
	}
	if err := limits.CheckDimensions(core.FormatJPEG, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	return &core.ImageInfo{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     core.FormatJPEG,
		FrameCount: 1,
	}, nil
}

func (c jpegCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	// Header dimensions are validated before any pixel buffer is sized.
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	if err := limits.CheckMemory(core.FormatJPEG,
		uint64(info.Width)*uint64(info.Height)*4); err != nil {
		return nil, err
	}

	img, err := jpeg.Decode(decodeReader(ctx, data, core.FormatJPEG))
	if err != nil {
		return nil, backendError(ctx, core.FormatJPEG, err)
	}

	// Native representation: Gray8 for grayscale scans, RGB8 otherwise.
	px, err := pipeline.FromImage(img)
	if err != nil {
		return nil, err
	}
	return &core.DecodeOutput{Pixels: px, Info: info}, nil
}

func (jpegCodec) Encode(ctx context.Context, pixels *core.PixelData, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	if err := core.CheckContext(ctx, core.FormatJPEG); err != nil {
		return nil, err
	}
	if opts.Lossless {
		return nil, apperrors.New(apperrors.KindUnsupportedOperation, "jpeg",
			"lossless encoding not supported")
	}

	img, err := pipeline.ToImage(pixels)
	if err != nil {
		return nil, err
	}
	// JPEG carries no alpha; composite down to opaque before encoding.
	if pixels.Layout.HasAlpha() {
		img = flattenAlpha(img)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	cw := &utils.CappedWriter{W: buf, Max: maxOutput(limits), Ctx: ctx, Format: "jpeg"}
	if err := jpeg.Encode(cw, img, &jpeg.Options{
		Quality: pipeline.NativeQuality(core.FormatJPEG, quality),
	}); err != nil {
		return nil, backendError(ctx, core.FormatJPEG, err)
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(buf.Bytes()), Format: core.FormatJPEG}, nil
}

// flattenAlpha drops the alpha channel by drawing over opaque black.
func flattenAlpha(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			i := dst.PixOffset(x, y)
			dst.Pix[i] = uint8(r >> 8)
			dst.Pix[i+1] = uint8(g >> 8)
			dst.Pix[i+2] = uint8(bl >> 8)
			dst.Pix[i+3] = 0xFF
		}
	}
	return dst
}

const defaultQuality = 85

func maxOutput(limits *core.Limits) uint64 {
	if limits == nil {
		return 0
	}
	return limits.MaxOutputBytes
}
