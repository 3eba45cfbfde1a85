//go:build vips

package codec

import (
	"bytes"
	"context"
	"image/png"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/pipeline"
	"github.com/imazen/zencodecs/utils"
)

// jxlCodec adapts libvips' JPEG XL support through govips, following the
// same shape as the avif adapter: vips build tag, host-managed
// vips.Startup, and PNG as the pixel interchange in both directions.
// Requires a libvips built with libjxl; without it every operation fails as
// a codec error at runtime.
type jxlCodec struct{}

func init() { register(jxlCodec{}, true, true) }

func (jxlCodec) Format() core.Format { return core.FormatJXL }

func (jxlCodec) Probe(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, error) {
	if err := core.CheckContext(ctx, core.FormatJXL); err != nil {
		return nil, err
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "jxl", err)
	}
	defer ref.Close()

	w, h := ref.Width(), ref.Height()
	if err := limits.CheckDimensions(core.FormatJXL, w, h); err != nil {
		return nil, err
	}
	pages := ref.Pages()
	if pages < 1 {
		pages = 1
	}
	return &core.ImageInfo{
		Width:        w,
		Height:       h,
		Format:       core.FormatJXL,
		HasAlpha:     ref.HasAlpha(),
		HasAnimation: pages > 1,
		FrameCount:   pages,
	}, nil
}

func (c jxlCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	if err := limits.CheckMemory(core.FormatJXL,
		uint64(info.Width)*uint64(info.Height)*8); err != nil {
		return nil, err
	}

	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.Codec("jxl", err)
	}
	defer ref.Close()

	pngBytes, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.Codec("jxl", err)
	}
	if err := core.CheckContext(ctx, core.FormatJXL); err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, apperrors.Codec("jxl", err)
	}
	px, err := pipeline.FromImage(img)
	if err != nil {
		return nil, err
	}
	return &core.DecodeOutput{Pixels: px, Info: info}, nil
}

func (jxlCodec) Encode(ctx context.Context, pixels *core.PixelData, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	if err := core.CheckContext(ctx, core.FormatJXL); err != nil {
		return nil, err
	}
	img, err := pipeline.ToImage(pixels)
	if err != nil {
		return nil, err
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, apperrors.Codec("jxl", err)
	}
	ref, err := govips.NewImageFromBuffer(pngBuf.Bytes())
	if err != nil {
		return nil, apperrors.Codec("jxl", err)
	}
	defer ref.Close()
	if err := core.CheckContext(ctx, core.FormatJXL); err != nil {
		return nil, err
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}
	ep := govips.NewJxlExportParams()
	ep.Quality = pipeline.NativeQuality(core.FormatJXL, quality)
	ep.Lossless = opts.Lossless
	if e := jxlEffort(opts); e > 0 {
		ep.Effort = e
	}

	out, _, err := ref.ExportJxl(ep)
	if err != nil {
		return nil, apperrors.Codec("jxl", err)
	}
	if err := limits.CheckOutput(core.FormatJXL, uint64(len(out))); err != nil {
		return nil, err
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(out), Format: core.FormatJXL}, nil
}

// jxlEffort maps the 0-10 effort scale onto the backend's 1-9 scale; an
// explicit param wins over the mapping.
func jxlEffort(opts core.EncodeOptions) int {
	if p := opts.Params.JXL; p != nil && p.Effort >= 1 && p.Effort <= 9 {
		return p.Effort
	}
	if opts.Effort <= 0 {
		return 0
	}
	e := (opts.Effort*9 + 9) / 10
	if e > 9 {
		e = 9
	}
	return e
}
