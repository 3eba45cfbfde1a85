// Package stream normalizes frame-by-frame access over codecs with very
// different backend shapes.  Codecs with a native incremental API stream
// directly; one-shot codecs are wrapped so callers see the same iterator
// surface, with the full decode happening transparently on first use.
package stream

import (
	"context"
	"io"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
)

// Decoder iterates the frames of one encoded image or animation.  Still
// images yield exactly one frame.  A Decoder is single-goroutine and
// single-use apart from Reset.
//
// Next returns io.EOF after the last frame and keeps returning it; any other
// error is terminal and also sticky.  Reset restarts iteration from frame 0
// without re-parsing or re-decoding.
type Decoder struct {
	codec  core.Codec
	data   []byte
	limits *core.Limits
	info   *core.ImageInfo

	// Exactly one of the two paths is in play.
	native core.FrameReader // codecs with incremental decode
	frames []*core.Frame    // one-shot codecs, filled on first Next
	loaded bool
	pos    int

	failed error
}

// NewDecoder probes data with c and returns a Decoder positioned before the
// first frame.  The probe result is available immediately through Info.
func NewDecoder(ctx context.Context, c core.Codec, data []byte, limits *core.Limits) (*Decoder, error) {
	if fd, ok := c.(core.FrameDecoder); ok {
		r, err := fd.OpenFrames(ctx, data, limits)
		if err != nil {
			return nil, err
		}
		return &Decoder{codec: c, limits: limits, info: r.Info(), native: r}, nil
	}
	info, err := c.Probe(ctx, data, limits)
	if err != nil {
		return nil, err
	}
	return &Decoder{codec: c, data: data, limits: limits, info: info}, nil
}

// Info returns header-level facts from the open-time probe.  FrameCount may
// be 0 (unknown) until the underlying codec has fully parsed the data.
func (d *Decoder) Info() *core.ImageInfo { return d.info }

// Next returns the next frame.  Frame indices increase monotonically from 0
// within one iteration.
func (d *Decoder) Next(ctx context.Context) (*core.Frame, error) {
	if d.failed != nil {
		return nil, d.failed
	}
	if d.native != nil {
		f, err := d.native.Next(ctx)
		if err != nil && err != io.EOF {
			d.failed = err
		}
		return f, err
	}

	if !d.loaded {
		if err := d.load(ctx); err != nil {
			d.failed = err
			return nil, err
		}
	}
	if d.pos >= len(d.frames) {
		return nil, io.EOF
	}
	f := d.frames[d.pos]
	d.pos++
	return f, nil
}

// load performs the single full decode behind the buffered path.  The whole
// sequence is materialized here; per-sequence memory is charged against
// limits by the codec.
func (d *Decoder) load(ctx context.Context) error {
	if sd, ok := d.codec.(core.SequenceDecoder); ok {
		info, frames, err := sd.DecodeFrames(ctx, d.data, d.limits)
		if err != nil {
			return err
		}
		d.info = info
		d.frames = frames
		d.loaded = true
		return nil
	}
	out, err := d.codec.Decode(ctx, d.data, d.limits)
	if err != nil {
		return err
	}
	d.info = out.Info
	d.frames = []*core.Frame{{
		Width:  out.Pixels.Width,
		Height: out.Pixels.Height,
		Pixels: out.Pixels,
	}}
	d.loaded = true
	return nil
}

// Reset restarts iteration from frame 0.  Buffered frames are reused; a
// native reader rewinds its own cursor.  Reset does not clear a terminal
// failure.
func (d *Decoder) Reset() {
	if d.failed != nil {
		return
	}
	if d.native != nil {
		d.native.Reset()
		return
	}
	d.pos = 0
}

// Close releases decoder state.  Safe to call more than once.
func (d *Decoder) Close() error {
	d.frames = nil
	d.loaded = false
	if d.failed == nil {
		d.failed = apperrors.New(apperrors.KindInvalidInput,
			string(d.info.Format), "decoder closed")
	}
	if d.native != nil {
		return d.native.Close()
	}
	return nil
}
