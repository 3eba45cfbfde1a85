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

// avifCodec adapts libvips through govips.  It only exists under the vips
// build tag; in other builds AVIF stays out of the compiled-in capability
// set and dispatch reports it as not supported.
//
// govips must be started by the host process (vips.Startup) before the
// first AVIF operation.  Pixel transfer goes through an intermediate PNG
// buffer in both directions, which keeps the adapter on the stable part of
// the govips surface at an extra copy's cost.
type avifCodec struct{}

func init() { register(avifCodec{}, true, true) }

func (avifCodec) Format() core.Format { return core.FormatAVIF }

func (avifCodec) Probe(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, error) {
	if err := core.CheckContext(ctx, core.FormatAVIF); err != nil {
		return nil, err
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "avif", err)
	}
	defer ref.Close()

	w, h := ref.Width(), ref.Height()
	if err := limits.CheckDimensions(core.FormatAVIF, w, h); err != nil {
		return nil, err
	}
	pages := ref.Pages()
	if pages < 1 {
		pages = 1
	}
	return &core.ImageInfo{
		Width:        w,
		Height:       h,
		Format:       core.FormatAVIF,
		HasAlpha:     ref.HasAlpha(),
		HasAnimation: pages > 1,
		FrameCount:   pages,
	}, nil
}

func (c avifCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	if err := limits.CheckMemory(core.FormatAVIF,
		uint64(info.Width)*uint64(info.Height)*8); err != nil {
		return nil, err
	}

	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.Codec("avif", err)
	}
	defer ref.Close()

	pngBytes, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.Codec("avif", err)
	}
	if err := core.CheckContext(ctx, core.FormatAVIF); err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, apperrors.Codec("avif", err)
	}
	px, err := pipeline.FromImage(img)
	if err != nil {
		return nil, err
	}
	return &core.DecodeOutput{Pixels: px, Info: info}, nil
}

func (avifCodec) Encode(ctx context.Context, pixels *core.PixelData, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	if err := core.CheckContext(ctx, core.FormatAVIF); err != nil {
		return nil, err
	}
	img, err := pipeline.ToImage(pixels)
	if err != nil {
		return nil, err
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, apperrors.Codec("avif", err)
	}
	ref, err := govips.NewImageFromBuffer(pngBuf.Bytes())
	if err != nil {
		return nil, apperrors.Codec("avif", err)
	}
	defer ref.Close()
	if err := core.CheckContext(ctx, core.FormatAVIF); err != nil {
		return nil, err
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}
	ep := govips.NewAvifExportParams()
	ep.Quality = pipeline.NativeQuality(core.FormatAVIF, quality)
	ep.Lossless = opts.Lossless
	if p := opts.Params.AVIF; p != nil && p.Speed > 0 {
		ep.Speed = p.Speed
	}

	out, _, err := ref.ExportAvif(ep)
	if err != nil {
		return nil, apperrors.Codec("avif", err)
	}
	if err := limits.CheckOutput(core.FormatAVIF, uint64(len(out))); err != nil {
		return nil, err
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(out), Format: core.FormatAVIF}, nil
}
