package codec

import (
	"bytes"
	"context"

	"golang.org/x/image/bmp"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/pipeline"
	"github.com/imazen/zencodecs/utils"
)

// bmpCodec adapts the x/image BMP implementation.  Uncompressed storage;
// quality and effort are ignored and lossless requests are trivially
// satisfied.
type bmpCodec struct{}

func init() { register(bmpCodec{}, true, true) }

func (bmpCodec) Format() core.Format { return core.FormatBMP }

func (bmpCodec) Probe(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, error) {
	if err := core.CheckContext(ctx, core.FormatBMP); err != nil {
		return nil, err
	}
	cfg, err := bmp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "bmp", err)
	}
	if err := limits.CheckDimensions(core.FormatBMP, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	return &core.ImageInfo{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     core.FormatBMP,
		FrameCount: 1,
	}, nil
}

func (c bmpCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	if err := limits.CheckMemory(core.FormatBMP,
		uint64(info.Width)*uint64(info.Height)*4); err != nil {
		return nil, err
	}

	img, err := bmp.Decode(decodeReader(ctx, data, core.FormatBMP))
	if err != nil {
		return nil, backendError(ctx, core.FormatBMP, err)
	}

	px, err := pipeline.FromImage(img)
	if err != nil {
		return nil, err
	}
	info.HasAlpha = px.Layout.HasAlpha() && !opaquePixels(px)
	return &core.DecodeOutput{Pixels: px, Info: info}, nil
}

func (bmpCodec) Encode(ctx context.Context, pixels *core.PixelData, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	if err := core.CheckContext(ctx, core.FormatBMP); err != nil {
		return nil, err
	}
	img, err := pipeline.ToImage(pixels)
	if err != nil {
		return nil, err
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	cw := &utils.CappedWriter{W: buf, Max: maxOutput(limits), Ctx: ctx, Format: "bmp"}
	if err := bmp.Encode(cw, img); err != nil {
		return nil, backendError(ctx, core.FormatBMP, err)
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(buf.Bytes()), Format: core.FormatBMP}, nil
}
