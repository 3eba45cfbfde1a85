package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"time"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/pipeline"
	"github.com/imazen/zencodecs/utils"
)

// gifCodec adapts the standard library GIF implementation.  The backend has
// no incremental frame API, so the adapter implements SequenceDecoder and
// SequenceEncoder: streaming callers get real frame iteration but the whole
// sequence is materialized up front, with the memory cost charged against
// limits before decoding begins.  Quality is ignored; GIF output is always
// a quantized 256-color palette.
type gifCodec struct{}

func init() { register(gifCodec{}, true, true) }

func (gifCodec) Format() core.Format { return core.FormatGIF }

func (gifCodec) Probe(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, error) {
	if err := core.CheckContext(ctx, core.FormatGIF); err != nil {
		return nil, err
	}
	cfg, err := gif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "gif", err)
	}
	if err := limits.CheckDimensions(core.FormatGIF, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	info := &core.ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: core.FormatGIF,
		// Frame count needs a full parse; 0 signals unknown.  Animation
		// status is likewise undetermined at header level.
		FrameCount: 0,
	}
	if p, ok := cfg.ColorModel.(color.Palette); ok {
		info.HasAlpha = paletteHasAlpha(p)
	}
	return info, nil
}

func (c gifCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	if err := limits.CheckMemory(core.FormatGIF,
		uint64(info.Width)*uint64(info.Height)*4); err != nil {
		return nil, err
	}

	img, err := gif.Decode(decodeReader(ctx, data, core.FormatGIF))
	if err != nil {
		return nil, backendError(ctx, core.FormatGIF, err)
	}

	px, err := pipeline.FromImage(img)
	if err != nil {
		return nil, err
	}
	info.FrameCount = 1
	info.HasAlpha = px.Layout.HasAlpha() && !opaquePixels(px)
	return &core.DecodeOutput{Pixels: px, Info: info}, nil
}

// DecodeFrames parses the full sequence and composites each frame onto the
// logical screen, honoring per-frame disposal.  Every returned frame is a
// standalone canvas-sized RGBA8 snapshot.
func (c gifCodec) DecodeFrames(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, []*core.Frame, error) {
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, nil, err
	}

	// The sequence memory bound must hold before any frame is decoded: a
	// small-canvas file can still declare thousands of frames.  Counting
	// image descriptors walks only the block structure, no pixel data.
	declared, err := countGIFFrames(data)
	if err != nil {
		return nil, nil, err
	}
	if err := limits.CheckMemory(core.FormatGIF,
		uint64(info.Width)*uint64(info.Height)*4*uint64(declared)); err != nil {
		return nil, nil, err
	}

	g, err := gif.DecodeAll(decodeReader(ctx, data, core.FormatGIF))
	if err != nil {
		return nil, nil, backendError(ctx, core.FormatGIF, err)
	}
	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		// Some encoders omit the logical screen size.
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
	}
	if err := limits.CheckDimensions(core.FormatGIF, w, h); err != nil {
		return nil, nil, err
	}
	// The whole composited sequence is held at once.
	if err := limits.CheckMemory(core.FormatGIF,
		uint64(w)*uint64(h)*4*uint64(len(g.Image))); err != nil {
		return nil, nil, err
	}

	info.Width, info.Height = w, h
	info.FrameCount = len(g.Image)
	info.HasAnimation = len(g.Image) > 1

	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	var previous *image.NRGBA
	frames := make([]*core.Frame, 0, len(g.Image))

	for i, pm := range g.Image {
		if err := core.CheckContext(ctx, core.FormatGIF); err != nil {
			return nil, nil, err
		}
		disposal := gif.DisposalNone
		if i < len(g.Disposal) {
			disposal = int(g.Disposal[i])
		}
		if disposal == gif.DisposalPrevious {
			previous = cloneNRGBA(canvas)
		}

		draw.Draw(canvas, pm.Bounds(), pm, pm.Bounds().Min, draw.Over)

		px, err := pipeline.FromImage(cloneNRGBA(canvas))
		if err != nil {
			return nil, nil, err
		}
		delay := 10 * time.Millisecond
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		frames = append(frames, &core.Frame{
			Index:  i,
			Width:  w,
			Height: h,
			Delay:  delay,
			Pixels: px,
		})

		switch disposal {
		case gif.DisposalBackground:
			clearRect(canvas, pm.Bounds())
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return info, frames, nil
}

func (gifCodec) Encode(ctx context.Context, pixels *core.PixelData, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	if err := core.CheckContext(ctx, core.FormatGIF); err != nil {
		return nil, err
	}
	img, err := pipeline.ToImage(pixels)
	if err != nil {
		return nil, err
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	cw := &utils.CappedWriter{W: buf, Max: maxOutput(limits), Ctx: ctx, Format: "gif"}
	if err := gif.Encode(cw, img, &gif.Options{NumColors: gifColors(opts)}); err != nil {
		return nil, backendError(ctx, core.FormatGIF, err)
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(buf.Bytes()), Format: core.FormatGIF}, nil
}

// EncodeFrames quantizes each frame to a 256-color palette with
// Floyd-Steinberg dithering and writes one animated output.
func (gifCodec) EncodeFrames(ctx context.Context, frames []*core.Frame, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	if len(frames) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidInput, "gif", "no frames to encode")
	}

	out := &gif.GIF{
		Image:    make([]*image.Paletted, 0, len(frames)),
		Delay:    make([]int, 0, len(frames)),
		Disposal: make([]byte, 0, len(frames)),
	}
	for _, f := range frames {
		if err := core.CheckContext(ctx, core.FormatGIF); err != nil {
			return nil, err
		}
		src, err := pipeline.ToNRGBA(f.Pixels)
		if err != nil {
			return nil, err
		}
		pm := image.NewPaletted(src.Bounds(), quantizePalette(src))
		draw.FloydSteinberg.Draw(pm, src.Bounds(), src, image.Point{})
		out.Image = append(out.Image, pm)
		out.Delay = append(out.Delay, int(f.Delay/(10*time.Millisecond)))
		out.Disposal = append(out.Disposal, gif.DisposalNone)
	}
	first := out.Image[0].Bounds()
	out.Config = image.Config{
		ColorModel: out.Image[0].ColorModel(),
		Width:      first.Dx(),
		Height:     first.Dy(),
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	cw := &utils.CappedWriter{W: buf, Max: maxOutput(limits), Ctx: ctx, Format: "gif"}
	if err := gif.EncodeAll(cw, out); err != nil {
		return nil, backendError(ctx, core.FormatGIF, err)
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(buf.Bytes()), Format: core.FormatGIF}, nil
}

func gifColors(opts core.EncodeOptions) int {
	if p := opts.Params.GIF; p != nil && p.NumColors >= 1 && p.NumColors <= 256 {
		return p.NumColors
	}
	return 256
}

// quantizePalette builds a per-frame palette.  Frames with few distinct
// colors keep them exactly; busier frames fall back to a uniform cube with a
// transparent slot.
func quantizePalette(src *image.NRGBA) color.Palette {
	seen := make(map[color.NRGBA]struct{}, 257)
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y && len(seen) <= 256; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			seen[src.NRGBAAt(x, y)] = struct{}{}
			if len(seen) > 256 {
				break
			}
		}
	}
	if len(seen) <= 256 {
		p := make(color.Palette, 0, len(seen))
		for c := range seen {
			p = append(p, c)
		}
		return p
	}
	return webSafePalette()
}

// webSafePalette is a 6x6x6 color cube plus a transparent entry.
func webSafePalette() color.Palette {
	p := make(color.Palette, 0, 217)
	p = append(p, color.NRGBA{})
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				p = append(p, color.NRGBA{
					R: uint8(r * 51), G: uint8(g * 51), B: uint8(b * 51), A: 0xFF,
				})
			}
		}
	}
	return p
}

// countGIFFrames counts image descriptors by walking the block structure:
// header, color tables, and data sub-block chains are skipped by length, so
// no LZW data is ever decompressed.
func countGIFFrames(data []byte) (int, error) {
	if len(data) < 13 {
		return 0, apperrors.New(apperrors.KindInvalidInput, "gif", "truncated header")
	}
	pos := 6 // past "GIF87a"/"GIF89a"
	packed := data[pos+4]
	pos += 7
	if packed&0x80 != 0 {
		pos += 3 * (2 << (packed & 0x07)) // global color table
	}

	frames := 0
	for pos < len(data) {
		switch data[pos] {
		case 0x3B: // trailer
			return frames, nil
		case 0x21: // extension: introducer + label, then sub-blocks
			var err error
			if pos, err = skipSubBlocks(data, pos+2); err != nil {
				return 0, err
			}
		case 0x2C: // image descriptor
			if pos+10 > len(data) {
				return 0, apperrors.New(apperrors.KindInvalidInput, "gif", "truncated image descriptor")
			}
			fpacked := data[pos+9]
			pos += 10
			if fpacked&0x80 != 0 {
				pos += 3 * (2 << (fpacked & 0x07)) // local color table
			}
			pos++ // LZW minimum code size
			var err error
			if pos, err = skipSubBlocks(data, pos); err != nil {
				return 0, err
			}
			frames++
		default:
			return 0, apperrors.New(apperrors.KindInvalidInput, "gif",
				fmt.Sprintf("unexpected block introducer 0x%02X", data[pos]))
		}
	}
	return 0, apperrors.New(apperrors.KindInvalidInput, "gif", "missing trailer")
}

// skipSubBlocks advances past a length-prefixed sub-block chain, including
// its terminating zero-length block.
func skipSubBlocks(data []byte, pos int) (int, error) {
	for {
		if pos >= len(data) {
			return 0, apperrors.New(apperrors.KindInvalidInput, "gif", "truncated sub-block chain")
		}
		n := int(data[pos])
		pos++
		if n == 0 {
			return pos, nil
		}
		pos += n
	}
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a < 0xFFFF {
			return true
		}
	}
	return false
}

// opaquePixels reports whether every alpha byte of an RGBA8 buffer is 0xFF.
func opaquePixels(px *core.PixelData) bool {
	if px.Layout != core.LayoutRGBA8 {
		return false
	}
	for i := 3; i < len(px.Pix); i += 4 {
		if px.Pix[i] != 0xFF {
			return false
		}
	}
	return true
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func clearRect(dst *image.NRGBA, r image.Rectangle) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		row := dst.Pix[i : i+r.Dx()*4]
		for j := range row {
			row[j] = 0
		}
	}
}
