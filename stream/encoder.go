package stream

import (
	"context"
	"time"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
)

// Encoder accepts frames one at a time and produces the encoded output on
// Finish.  Codecs with a native push API encode each frame as it arrives;
// sequence codecs accumulate frames and encode everything at Finish; still
// formats accept exactly one frame.
//
// An Encoder is single-goroutine and single-use: after Finish (successful or
// not) every call fails.
type Encoder struct {
	codec  core.Codec
	opts   core.EncodeOptions
	limits *core.Limits
	width  int
	height int

	native   core.FrameWriter // codecs with incremental encode
	frames   []*core.Frame    // sequence or still accumulation
	held     uint64           // bytes buffered so far
	finished bool
}

// NewEncoder prepares an encode of a width x height sequence through c.
func NewEncoder(ctx context.Context, c core.Codec, width, height int, opts core.EncodeOptions, limits *core.Limits) (*Encoder, error) {
	if fe, ok := c.(core.FrameEncoder); ok {
		w, err := fe.OpenFrameWriter(ctx, width, height, opts, limits)
		if err != nil {
			return nil, err
		}
		return &Encoder{codec: c, opts: opts, limits: limits, width: width, height: height, native: w}, nil
	}
	if err := limits.CheckDimensions(c.Format(), width, height); err != nil {
		return nil, err
	}
	return &Encoder{codec: c, opts: opts, limits: limits, width: width, height: height}, nil
}

// Push appends one frame.  Frames must match the declared canvas size.
func (e *Encoder) Push(ctx context.Context, pixels *core.PixelData, delay time.Duration) error {
	format := e.codec.Format()
	if e.finished {
		return apperrors.New(apperrors.KindInvalidInput, string(format), "push after finish")
	}
	if err := core.CheckContext(ctx, format); err != nil {
		return err
	}
	if err := pixels.Validate(); err != nil {
		return err
	}
	if pixels.Width != e.width || pixels.Height != e.height {
		return apperrors.New(apperrors.KindInvalidInput, string(format),
			"frame size does not match canvas")
	}

	if e.native != nil {
		return e.native.Push(ctx, pixels, delay)
	}

	if _, ok := e.codec.(core.SequenceEncoder); !ok && len(e.frames) == 1 {
		return apperrors.New(apperrors.KindUnsupportedOperation, string(format),
			"format does not support multiple frames")
	}
	e.held += uint64(len(pixels.Pix))
	if err := e.limits.CheckMemory(format, e.held); err != nil {
		return err
	}
	e.frames = append(e.frames, &core.Frame{
		Index:  len(e.frames),
		Width:  pixels.Width,
		Height: pixels.Height,
		Delay:  delay,
		Pixels: pixels,
	})
	return nil
}

// Finish encodes whatever has been pushed and returns the output.
func (e *Encoder) Finish(ctx context.Context) (*core.EncodeOutput, error) {
	format := e.codec.Format()
	if e.finished {
		return nil, apperrors.New(apperrors.KindInvalidInput, string(format), "finish called twice")
	}
	e.finished = true

	if e.native != nil {
		return e.native.Finish(ctx)
	}
	if len(e.frames) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidInput, string(format), "no frames pushed")
	}
	if se, ok := e.codec.(core.SequenceEncoder); ok {
		return se.EncodeFrames(ctx, e.frames, e.opts, e.limits)
	}
	return e.codec.Encode(ctx, e.frames[0].Pixels, e.opts, e.limits)
}

// Close releases the resources of an encoder abandoned before Finish.  It is
// safe to call after Finish, where it does nothing.
func (e *Encoder) Close() error {
	e.finished = true
	e.frames = nil
	if e.native != nil {
		return e.native.Close()
	}
	return nil
}
