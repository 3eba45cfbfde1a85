package codec

import (
	"bytes"
	"context"
	"image/color"
	"image/png"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/pipeline"
	"github.com/imazen/zencodecs/utils"
)

// pngCodec adapts the standard library PNG implementation.  Always lossless:
// the quality parameter is ignored without erroring, and effort maps onto the
// deflate compression level.  Metadata embedding is not supported by the
// backend and is dropped.
type pngCodec struct{}

func init() { register(pngCodec{}, true, true) }

func (pngCodec) Format() core.Format { return core.FormatPNG }

func (pngCodec) Probe(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, error) {
	if err := core.CheckContext(ctx, core.FormatPNG); err != nil {
		return nil, err
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "png", err)
	}
	if err := limits.CheckDimensions(core.FormatPNG, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	return &core.ImageInfo{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     core.FormatPNG,
		HasAlpha:   pngModelHasAlpha(cfg.ColorModel),
		FrameCount: 1,
	}, nil
}

func pngModelHasAlpha(m color.Model) bool {
	switch m {
	case color.NRGBAModel, color.NRGBA64Model, color.RGBAModel, color.RGBA64Model,
		color.AlphaModel, color.Alpha16Model:
		return true
	}
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a < 0xFFFF {
				return true
			}
		}
	}
	return false
}

func (c pngCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	// 16-bit RGBA worst case.
	if err := limits.CheckMemory(core.FormatPNG,
		uint64(info.Width)*uint64(info.Height)*8); err != nil {
		return nil, err
	}

	img, err := png.Decode(decodeReader(ctx, data, core.FormatPNG))
	if err != nil {
		return nil, backendError(ctx, core.FormatPNG, err)
	}

	px, err := pipeline.FromImage(img)
	if err != nil {
		return nil, err
	}
	info.HasAlpha = px.Layout.HasAlpha()
	return &core.DecodeOutput{Pixels: px, Info: info}, nil
}

func (pngCodec) Encode(ctx context.Context, pixels *core.PixelData, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	if err := core.CheckContext(ctx, core.FormatPNG); err != nil {
		return nil, err
	}

	img, err := pipeline.ToImage(pixels)
	if err != nil {
		return nil, err
	}

	enc := png.Encoder{CompressionLevel: pngLevel(opts.Effort)}
	if p := opts.Params.PNG; p != nil {
		switch p.Compression {
		case 1:
			enc.CompressionLevel = png.BestSpeed
		case 2:
			enc.CompressionLevel = png.BestCompression
		}
	}
	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	cw := &utils.CappedWriter{W: buf, Max: maxOutput(limits), Ctx: ctx, Format: "png"}
	if err := enc.Encode(cw, img); err != nil {
		return nil, backendError(ctx, core.FormatPNG, err)
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(buf.Bytes()), Format: core.FormatPNG}, nil
}

// pngLevel maps the unified 0-10 effort scale onto deflate levels.
func pngLevel(effort int) png.CompressionLevel {
	switch {
	case effort == 0:
		return png.DefaultCompression
	case effort <= 2:
		return png.BestSpeed
	case effort >= 7:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}
