package core

import (
	"context"
	"time"
)

// Codec is the uniform three-operation contract every format adapter
// implements.  Implementations live in adapters/codec/.
//
// Probe parses only header/container structure, never pixel data, and must
// validate declared dimensions against limits before sizing anything from
// them.  Decode produces the codec's native PixelData layout and checks
// limits progressively, not only pre-flight.  Encode maps the unified 0-100
// quality scale onto the format's native scale through a fixed table and
// reports lossless requests on lossy-only formats as errors, never as a
// silent fallback.
type Codec interface {
	Format() Format
	Probe(ctx context.Context, data []byte, limits *Limits) (*ImageInfo, error)
	Decode(ctx context.Context, data []byte, limits *Limits) (*DecodeOutput, error)
	Encode(ctx context.Context, pixels *PixelData, opts EncodeOptions, limits *Limits) (*EncodeOutput, error)
}

// FrameReader iterates the frames of one decoded sequence.  Implementations
// are single-goroutine; Close releases any decoder state.
type FrameReader interface {
	// Info returns header-level facts; available before the first frame.
	Info() *ImageInfo
	// Next returns the next frame or io.EOF after the last one.
	Next(ctx context.Context) (*Frame, error)
	// Reset restarts iteration from frame 0 without re-parsing the container.
	Reset()
	Close() error
}

// FrameDecoder is implemented by codecs whose underlying library exposes
// true incremental decode.  Frames are forwarded as produced with no
// whole-image buffering.  Codecs without it are wrapped by the stream
// package's transparent one-shot buffering instead.
type FrameDecoder interface {
	OpenFrames(ctx context.Context, data []byte, limits *Limits) (FrameReader, error)
}

// SequenceDecoder is implemented by one-shot codecs that can materialize a
// complete frame sequence in a single call.  The stream package serves its
// result frame by frame; such a "streaming" decode still carries the full
// sequence memory cost up front, which each adapter documents.
type SequenceDecoder interface {
	DecodeFrames(ctx context.Context, data []byte, limits *Limits) (*ImageInfo, []*Frame, error)
}

// SequenceEncoder is implemented by codecs that need the complete frame
// sequence before encoding.  The stream package accumulates pushed frames
// and invokes it on Finish.
type SequenceEncoder interface {
	EncodeFrames(ctx context.Context, frames []*Frame, opts EncodeOptions, limits *Limits) (*EncodeOutput, error)
}

// FrameWriter accepts frames incrementally and produces the encoded output
// on Finish.  Push after Finish is an error.  A writer abandoned without a
// Finish call must be Closed so its buffers are released; Close after Finish
// is a no-op.
type FrameWriter interface {
	Push(ctx context.Context, pixels *PixelData, delay time.Duration) error
	Finish(ctx context.Context) (*EncodeOutput, error)
	Close() error
}

// FrameEncoder is implemented by codecs with native frame-push encoding.
// Codecs without it are wrapped by the stream package, which accumulates
// pushed frames and performs the real encode on Finish.
type FrameEncoder interface {
	OpenFrameWriter(ctx context.Context, width, height int, opts EncodeOptions, limits *Limits) (FrameWriter, error)
}

// Hook observes dispatch operations.  Implementations live in hooks/.
type Hook interface {
	BeforeOp(ctx context.Context, op string, format Format)
	AfterOp(ctx context.Context, op string, format Format, d time.Duration, err error)
}
