package stream_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/stream"
)

// ── Fake codecs ───────────────────────────────────────────────────────────────

// stillCodec is a minimal one-shot codec: one frame, no sequence support.
type stillCodec struct {
	decoded int // Decode call count, to prove Reset does not re-decode
}

func (*stillCodec) Format() core.Format { return "still" }

func (*stillCodec) Probe(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, error) {
	return &core.ImageInfo{Width: 2, Height: 2, Format: "still", FrameCount: 1}, nil
}

func (c *stillCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	c.decoded++
	px, err := core.NewPixelData(core.LayoutRGBA8, 2, 2)
	if err != nil {
		return nil, err
	}
	info, _ := c.Probe(ctx, data, limits)
	return &core.DecodeOutput{Pixels: px, Info: info}, nil
}

func (*stillCodec) Encode(ctx context.Context, pixels *core.PixelData, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	return &core.EncodeOutput{Data: []byte("still-output"), Format: "still"}, nil
}

// seqCodec buffers whole sequences like the GIF adapter does.
type seqCodec struct {
	stillCodec
	frames int
}

func (c *seqCodec) DecodeFrames(ctx context.Context, data []byte, limits *core.Limits) (*core.ImageInfo, []*core.Frame, error) {
	c.decoded++
	var frames []*core.Frame
	for i := 0; i < c.frames; i++ {
		px, err := core.NewPixelData(core.LayoutRGBA8, 2, 2)
		if err != nil {
			return nil, nil, err
		}
		frames = append(frames, &core.Frame{Index: i, Width: 2, Height: 2, Delay: 40 * time.Millisecond, Pixels: px})
	}
	info := &core.ImageInfo{Width: 2, Height: 2, Format: "still", FrameCount: c.frames, HasAnimation: c.frames > 1}
	return info, frames, nil
}

func (*seqCodec) EncodeFrames(ctx context.Context, frames []*core.Frame, opts core.EncodeOptions, limits *core.Limits) (*core.EncodeOutput, error) {
	return &core.EncodeOutput{Data: []byte{byte(len(frames))}, Format: "still"}, nil
}

// brokenCodec fails on full decode to exercise terminal error handling.
type brokenCodec struct{ stillCodec }

func (*brokenCodec) Decode(ctx context.Context, data []byte, limits *core.Limits) (*core.DecodeOutput, error) {
	return nil, apperrors.New(apperrors.KindCodec, "still", "backend exploded")
}

func framePixels(t *testing.T) *core.PixelData {
	t.Helper()
	px, err := core.NewPixelData(core.LayoutRGBA8, 2, 2)
	if err != nil {
		t.Fatalf("pixels: %v", err)
	}
	return px
}

// ── Decoder ───────────────────────────────────────────────────────────────────

func TestDecoder_StillSingleFrame(t *testing.T) {
	ctx := context.Background()
	d, err := stream.NewDecoder(ctx, &stillCodec{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if d.Info().Width != 2 {
		t.Errorf("info: %+v", d.Info())
	}

	f, err := d.Next(ctx)
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if f.Pixels == nil || f.Width != 2 {
		t.Errorf("frame: %+v", f)
	}
	if _, err := d.Next(ctx); err != io.EOF {
		t.Errorf("after last frame: got %v, want io.EOF", err)
	}
	// EOF is idempotent.
	if _, err := d.Next(ctx); err != io.EOF {
		t.Errorf("repeated: got %v, want io.EOF", err)
	}
}

func TestDecoder_SequenceIteration(t *testing.T) {
	ctx := context.Background()
	c := &seqCodec{frames: 3}
	d, err := stream.NewDecoder(ctx, c, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var got []int
	for {
		f, err := d.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, f.Index)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("indices: %v", got)
	}
	// Full parse updated the header info.
	if d.Info().FrameCount != 3 || !d.Info().HasAnimation {
		t.Errorf("info after iteration: %+v", d.Info())
	}
}

func TestDecoder_ResetReusesFrames(t *testing.T) {
	ctx := context.Background()
	c := &seqCodec{frames: 2}
	d, err := stream.NewDecoder(ctx, c, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := d.Next(ctx); err != nil {
			t.Fatalf("pass 1 frame %d: %v", i, err)
		}
	}
	d.Reset()
	f, err := d.Next(ctx)
	if err != nil {
		t.Fatalf("pass 2: %v", err)
	}
	if f.Index != 0 {
		t.Errorf("after reset: index %d", f.Index)
	}
	if c.decoded != 1 {
		t.Errorf("decode ran %d times, want 1", c.decoded)
	}
}

func TestDecoder_TerminalErrorIsSticky(t *testing.T) {
	ctx := context.Background()
	d, err := stream.NewDecoder(ctx, &brokenCodec{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = d.Next(ctx)
	if !apperrors.IsKind(err, apperrors.KindCodec) {
		t.Fatalf("got %v, want codec error", err)
	}
	d.Reset()
	if _, err := d.Next(ctx); !apperrors.IsKind(err, apperrors.KindCodec) {
		t.Errorf("after reset: got %v, failure must stay terminal", err)
	}
}

func TestDecoder_Close(t *testing.T) {
	ctx := context.Background()
	d, err := stream.NewDecoder(ctx, &stillCodec{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := d.Next(ctx); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("next after close: got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

// ── Encoder ───────────────────────────────────────────────────────────────────

func TestEncoder_StillOneFrame(t *testing.T) {
	ctx := context.Background()
	e, err := stream.NewEncoder(ctx, &stillCodec{}, 2, 2, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Push(ctx, framePixels(t), 0); err != nil {
		t.Fatalf("push: %v", err)
	}
	out, err := e.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if string(out.Data) != "still-output" {
		t.Errorf("output: %q", out.Data)
	}
}

func TestEncoder_StillRejectsSecondFrame(t *testing.T) {
	ctx := context.Background()
	e, err := stream.NewEncoder(ctx, &stillCodec{}, 2, 2, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Push(ctx, framePixels(t), 0); err != nil {
		t.Fatalf("first push: %v", err)
	}
	err = e.Push(ctx, framePixels(t), 0)
	if !apperrors.IsKind(err, apperrors.KindUnsupportedOperation) {
		t.Errorf("second push: got %v, want unsupported-operation", err)
	}
}

func TestEncoder_SequenceAccumulates(t *testing.T) {
	ctx := context.Background()
	e, err := stream.NewEncoder(ctx, &seqCodec{}, 2, 2, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := e.Push(ctx, framePixels(t), 40*time.Millisecond); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	out, err := e.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(out.Data) != 1 || out.Data[0] != 3 {
		t.Errorf("sequence encode saw %v frames", out.Data)
	}
}

func TestEncoder_StateMachine(t *testing.T) {
	ctx := context.Background()
	e, err := stream.NewEncoder(ctx, &stillCodec{}, 2, 2, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Finish with nothing pushed.
	if _, err := e.Finish(ctx); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("empty finish: got %v", err)
	}
	// Everything after Finish fails, even a failed Finish.
	if err := e.Push(ctx, framePixels(t), 0); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("push after finish: got %v", err)
	}
	if _, err := e.Finish(ctx); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("double finish: got %v", err)
	}
}

func TestEncoder_FrameSizeMismatch(t *testing.T) {
	ctx := context.Background()
	e, err := stream.NewEncoder(ctx, &seqCodec{}, 4, 4, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = e.Push(ctx, framePixels(t), 0) // 2x2 into a 4x4 canvas
	if !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("got %v, want invalid-input", err)
	}
}

func TestEncoder_AccumulationMemoryLimit(t *testing.T) {
	ctx := context.Background()
	// 2x2 RGBA frames are 16 bytes each; the second one crosses the cap.
	e, err := stream.NewEncoder(ctx, &seqCodec{}, 2, 2, core.EncodeOptions{}, &core.Limits{MaxMemoryBytes: 24})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Push(ctx, framePixels(t), 0); err != nil {
		t.Fatalf("first push: %v", err)
	}
	err = e.Push(ctx, framePixels(t), 0)
	if !apperrors.IsKind(err, apperrors.KindLimitExceeded) {
		t.Errorf("got %v, want limit-exceeded", err)
	}
}

// pushCodec exposes a native frame writer that records whether its buffer
// was released, like the WebP animation writer does.
type pushCodec struct {
	stillCodec
	writer *trackedWriter
}

type trackedWriter struct {
	pushed   int
	closed   int
	finished bool
}

func (c *pushCodec) OpenFrameWriter(ctx context.Context, width, height int, opts core.EncodeOptions, limits *core.Limits) (core.FrameWriter, error) {
	c.writer = &trackedWriter{}
	return c.writer, nil
}

func (w *trackedWriter) Push(ctx context.Context, pixels *core.PixelData, delay time.Duration) error {
	w.pushed++
	return nil
}

func (w *trackedWriter) Finish(ctx context.Context) (*core.EncodeOutput, error) {
	w.finished = true
	return &core.EncodeOutput{Data: []byte("push-output"), Format: "still"}, nil
}

func (w *trackedWriter) Close() error {
	if !w.finished {
		w.closed++
	}
	return nil
}

func TestEncoder_AbandonReleasesNativeWriter(t *testing.T) {
	ctx := context.Background()
	c := &pushCodec{}
	e, err := stream.NewEncoder(ctx, c, 2, 2, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Push(ctx, framePixels(t), 0); err != nil {
		t.Fatalf("push: %v", err)
	}

	// Abandon without Finish: the native writer must be told to release.
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.writer.closed != 1 {
		t.Errorf("writer closed %d times, want 1", c.writer.closed)
	}
	if _, err := e.Finish(ctx); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("finish after close: got %v", err)
	}
}

func TestEncoder_CloseAfterFinishIsNoop(t *testing.T) {
	ctx := context.Background()
	c := &pushCodec{}
	e, err := stream.NewEncoder(ctx, c, 2, 2, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Push(ctx, framePixels(t), 0); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, err := e.Finish(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close after finish: %v", err)
	}
	if c.writer.closed != 0 {
		t.Errorf("finished writer must not count a release, got %d", c.writer.closed)
	}
}
