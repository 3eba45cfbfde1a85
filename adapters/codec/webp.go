package codec

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/deepteams/webp"
	"github.com/deepteams/webp/animation"
	"github.com/deepteams/webp/mux"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/pipeline"
	"github.com/imazen/zencodecs/utils"
)

// webpCodec adapts the pure-Go WebP backend.  This is the most capable
// adapter: lossy and lossless encoding, ICC/EXIF/XMP embedding, and true
// incremental frame decode and encode through the animation package, so
// streaming callers never hold a full sequence in memory.
type webpCodec struct{}

func init() { register(webpCodec{}, true, true) }

func (webpCodec) Format() core.Format { return core.FormatWebP }

func (webpCodec) Probe(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, error) {
	if err := core.CheckContext(ctx, core.FormatWebP); err != nil {
		return nil, err
	}
	d, err := mux.NewDemuxer(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "webp", err)
	}
	f := d.GetFeatures()
	if err := limits.CheckDimensions(core.FormatWebP, f.Width, f.Height); err != nil {
		return nil, err
	}
	info := &core.ImageInfo{
		Width:        f.Width,
		Height:       f.Height,
		Format:       core.FormatWebP,
		HasAlpha:     f.HasAlpha,
		HasAnimation: f.HasAnimation,
		FrameCount:   d.NumFrames(),
	}
	// Metadata chunks are cheap to pull at container level.
	if f.HasICC {
		info.ICCProfile, _ = d.GetChunk(mux.FourCCICCP)
	}
	if f.HasEXIF {
		info.EXIF, _ = d.GetChunk(mux.FourCCEXIF)
	}
	if f.HasXMP {
		info.XMP, _ = d.GetChunk(mux.FourCCXMP)
	}
	return info, nil
}

func (c webpCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	if err := limits.CheckMemory(core.FormatWebP,
		uint64(info.Width)*uint64(info.Height)*4); err != nil {
		return nil, err
	}

	img, err := webp.Decode(decodeReader(ctx, data, core.FormatWebP))
	if err != nil {
		return nil, backendError(ctx, core.FormatWebP, err)
	}

	px, err := pipeline.FromImage(img)
	if err != nil {
		return nil, err
	}
	return &core.DecodeOutput{Pixels: px, Info: info}, nil
}

func (webpCodec) Encode(ctx context.Context, pixels *core.PixelData, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	if err := core.CheckContext(ctx, core.FormatWebP); err != nil {
		return nil, err
	}
	img, err := pipeline.ToImage(pixels)
	if err != nil {
		return nil, err
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}
	eo := &webp.EncoderOptions{
		Lossless: opts.Lossless,
		Quality:  float32(pipeline.NativeQuality(core.FormatWebP, quality)),
		Method:   webpMethod(opts.Effort),
		ICC:      opts.Metadata.ICCProfile,
		EXIF:     opts.Metadata.EXIF,
		XMP:      opts.Metadata.XMP,
	}
	if p := opts.Params.WebP; p != nil {
		if p.Method > 0 {
			eo.Method = p.Method
		}
		eo.UseSharpYUV = p.SharpYUV
		eo.Exact = p.Exact
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	cw := &utils.CappedWriter{W: buf, Max: maxOutput(limits), Ctx: ctx, Format: "webp"}
	if err := webp.Encode(cw, img, eo); err != nil {
		return nil, backendError(ctx, core.FormatWebP, err)
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(buf.Bytes()), Format: core.FormatWebP}, nil
}

// OpenFrames streams frames through the backend's animation decoder.  Frame
// bitstreams stay parsed-but-undecoded until each Next call.
func (c webpCodec) OpenFrames(ctx context.Context, data []byte, limits *core.Limits) (core.FrameReader, error) {
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	// One composited canvas plus one frame buffer live at a time.
	if err := limits.CheckMemory(core.FormatWebP,
		uint64(info.Width)*uint64(info.Height)*8); err != nil {
		return nil, err
	}

	anim, err := animation.DecodeBytes(data)
	if err != nil {
		return nil, apperrors.Codec("webp", err)
	}
	return &webpFrameReader{info: info, dec: animation.NewAnimDecoder(anim)}, nil
}

type webpFrameReader struct {
	info *core.ImageInfo
	dec  *animation.AnimDecoder
	next int
	done bool
}

func (r *webpFrameReader) Info() *core.ImageInfo { return r.info }

func (r *webpFrameReader) Next(ctx context.Context) (*core.Frame, error) {
	if err := core.CheckContext(ctx, core.FormatWebP); err != nil {
		return nil, err
	}
	if r.done || !r.dec.HasNext() {
		r.done = true
		return nil, io.EOF
	}
	img, delay, err := r.dec.NextFrame()
	if err != nil {
		r.done = true
		return nil, apperrors.Codec("webp", err)
	}
	px, err := pipeline.FromImage(img)
	if err != nil {
		return nil, err
	}
	f := &core.Frame{
		Index:  r.next,
		Width:  px.Width,
		Height: px.Height,
		Delay:  delay,
		Pixels: px,
	}
	r.next++
	return f, nil
}

func (r *webpFrameReader) Reset() {
	r.dec.Reset()
	r.next = 0
	r.done = false
}

func (r *webpFrameReader) Close() error { return nil }

// OpenFrameWriter streams frames into the backend's animation encoder; each
// pushed frame is encoded immediately and the container is assembled on
// Finish.
func (webpCodec) OpenFrameWriter(ctx context.Context, width, height int, opts core.EncodeOptions, limits *core.Limits) (core.FrameWriter, error) {
	if err := core.CheckContext(ctx, core.FormatWebP); err != nil {
		return nil, err
	}
	if err := limits.CheckDimensions(core.FormatWebP, width, height); err != nil {
		return nil, err
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}

	buf := utils.AcquireBuffer()
	enc := animation.NewEncoder(buf, width, height, &animation.EncodeOptions{
		Quality:  pipeline.NativeQuality(core.FormatWebP, quality),
		Lossless: opts.Lossless,
	})
	if opts.Metadata.ICCProfile != nil {
		enc.SetICCProfile(opts.Metadata.ICCProfile)
	}
	if opts.Metadata.EXIF != nil {
		enc.SetEXIF(opts.Metadata.EXIF)
	}
	if opts.Metadata.XMP != nil {
		enc.SetXMP(opts.Metadata.XMP)
	}
	return &webpFrameWriter{enc: enc, buf: buf, limits: limits}, nil
}

type webpFrameWriter struct {
	enc      *animation.AnimEncoder
	buf      *bytes.Buffer
	limits   *core.Limits
	finished bool
}

func (w *webpFrameWriter) Push(ctx context.Context, pixels *core.PixelData, delay time.Duration) error {
	if err := core.CheckContext(ctx, core.FormatWebP); err != nil {
		return err
	}
	if w.finished {
		return apperrors.New(apperrors.KindInvalidInput, "webp", "push after finish")
	}
	img, err := pipeline.ToNRGBA(pixels)
	if err != nil {
		return err
	}
	if err := w.enc.AddFrame(img, delay); err != nil {
		// Backend failures are terminal for the writer.
		w.abort()
		return apperrors.Codec("webp", err)
	}
	return nil
}

func (w *webpFrameWriter) Finish(ctx context.Context) (*core.EncodeOutput, error) {
	if err := core.CheckContext(ctx, core.FormatWebP); err != nil {
		return nil, err
	}
	if w.finished {
		return nil, apperrors.New(apperrors.KindInvalidInput, "webp", "finish called twice")
	}
	w.finished = true
	defer utils.ReleaseBuffer(w.buf)

	if err := w.enc.Close(); err != nil {
		return nil, apperrors.Codec("webp", err)
	}
	if err := w.limits.CheckOutput(core.FormatWebP, uint64(w.buf.Len())); err != nil {
		return nil, err
	}
	return &core.EncodeOutput{Data: utils.CloneBytes(w.buf.Bytes()), Format: core.FormatWebP}, nil
}

// Close releases the pooled buffer of a writer abandoned before Finish.
func (w *webpFrameWriter) Close() error {
	w.abort()
	return nil
}

func (w *webpFrameWriter) abort() {
	if w.finished {
		return
	}
	w.finished = true
	utils.ReleaseBuffer(w.buf)
}

// webpMethod maps the 0-10 effort scale onto the backend's 0-6 method scale.
func webpMethod(effort int) int {
	if effort <= 0 {
		return 4
	}
	m := (effort*6 + 5) / 10
	if m > 6 {
		m = 6
	}
	return m
}
