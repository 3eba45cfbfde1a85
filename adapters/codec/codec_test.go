package codec_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"github.com/imazen/zencodecs/adapters/codec"
	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
)

// ── Fixtures ──────────────────────────────────────────────────────────────────

func gradientNRGBA(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 100, A: 255,
			})
		}
	}
	return img
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradientNRGBA(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("fixture jpeg: %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int, alpha bool) []byte {
	t.Helper()
	img := gradientNRGBA(w, h)
	if alpha {
		img.SetNRGBA(0, 0, color.NRGBA{R: 10, A: 70})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("fixture png: %v", err)
	}
	return buf.Bytes()
}

func gifBytes(t *testing.T, frames int) []byte {
	t.Helper()
	g := &gif.GIF{}
	pal := color.Palette{color.Black, color.White, color.NRGBA{R: 255, A: 255}}
	for i := 0; i < frames; i++ {
		pm := image.NewPaletted(image.Rect(0, 0, 8, 8), pal)
		for p := range pm.Pix {
			pm.Pix[p] = uint8((p + i) % len(pal))
		}
		g.Image = append(g.Image, pm)
		g.Delay = append(g.Delay, 5)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("fixture gif: %v", err)
	}
	return buf.Bytes()
}

func bmpBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, gradientNRGBA(w, h)); err != nil {
		t.Fatalf("fixture bmp: %v", err)
	}
	return buf.Bytes()
}

func mustLookup(t *testing.T, f core.Format) core.Codec {
	t.Helper()
	c, ok := codec.Lookup(f)
	if !ok {
		t.Fatalf("no adapter for %s", f)
	}
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

func TestCompiledSet(t *testing.T) {
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatGIF, core.FormatWebP, core.FormatBMP} {
		if !core.CompiledDecode(f) || !core.CompiledEncode(f) {
			t.Errorf("%s must be compiled both ways", f)
		}
		if _, ok := codec.Lookup(f); !ok {
			t.Errorf("%s missing from lookup table", f)
		}
	}
}

// ── JPEG ──────────────────────────────────────────────────────────────────────

func TestJPEG_ProbeDecode(t *testing.T) {
	c := mustLookup(t, core.FormatJPEG)
	data := jpegBytes(t, 32, 16)

	info, err := c.Probe(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.Width != 32 || info.Height != 16 || info.FrameCount != 1 {
		t.Errorf("info: %+v", info)
	}

	out, err := c.Decode(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Pixels.Width != 32 || out.Pixels.Height != 16 {
		t.Errorf("pixels: %dx%d", out.Pixels.Width, out.Pixels.Height)
	}
	if out.Pixels.Layout.HasAlpha() {
		t.Error("jpeg decode must not produce alpha")
	}
}

func TestJPEG_EncodeRejectsLossless(t *testing.T) {
	c := mustLookup(t, core.FormatJPEG)
	px, _ := core.NewPixelData(core.LayoutRGB8, 4, 4)

	_, err := c.Encode(context.Background(), px, core.EncodeOptions{Lossless: true}, nil)
	if !apperrors.IsKind(err, apperrors.KindUnsupportedOperation) {
		t.Errorf("got %v, want unsupported-operation", err)
	}
}

func TestJPEG_EncodeFlattensAlpha(t *testing.T) {
	c := mustLookup(t, core.FormatJPEG)
	px, _ := core.NewPixelData(core.LayoutRGBA8, 4, 4)
	for i := 3; i < len(px.Pix); i += 4 {
		px.Pix[i] = 128
	}

	out, err := c.Encode(context.Background(), px, core.EncodeOptions{Quality: 85}, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if core.Detect(out.Data) != core.FormatJPEG {
		t.Error("output is not a jpeg")
	}
}

func TestJPEG_ProbeGarbage(t *testing.T) {
	c := mustLookup(t, core.FormatJPEG)
	_, err := c.Probe(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01}, nil)
	if !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("got %v, want invalid-input", err)
	}
}

func TestJPEG_DimensionLimit(t *testing.T) {
	c := mustLookup(t, core.FormatJPEG)
	data := jpegBytes(t, 64, 64)
	limits := &core.Limits{MaxWidth: 32}

	_, err := c.Probe(context.Background(), data, limits)
	if !apperrors.IsKind(err, apperrors.KindLimitExceeded) {
		t.Errorf("got %v, want limit-exceeded", err)
	}
	// Decode must fail the same pre-flight check before allocating.
	_, err = c.Decode(context.Background(), data, limits)
	if !apperrors.IsKind(err, apperrors.KindLimitExceeded) {
		t.Errorf("decode: got %v, want limit-exceeded", err)
	}
}

func TestJPEG_Cancellation(t *testing.T) {
	c := mustLookup(t, core.FormatJPEG)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Decode(ctx, jpegBytes(t, 8, 8), nil)
	if !apperrors.IsKind(err, apperrors.KindCancelled) {
		t.Errorf("got %v, want cancelled", err)
	}
}

// ── PNG ───────────────────────────────────────────────────────────────────────

func TestPNG_RoundTrip(t *testing.T) {
	c := mustLookup(t, core.FormatPNG)
	data := pngBytes(t, 10, 10, true)

	out, err := c.Decode(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Info.HasAlpha {
		t.Error("alpha pixel must be reported")
	}

	enc, err := c.Encode(context.Background(), out.Pixels, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := c.Decode(context.Background(), enc.Data, nil)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	// PNG is lossless: the pixel bytes survive exactly.
	if !bytes.Equal(back.Pixels.Pix, out.Pixels.Pix) {
		t.Error("png round trip must be exact")
	}
}

func TestPNG_OutputLimit(t *testing.T) {
	c := mustLookup(t, core.FormatPNG)
	px, _ := core.NewPixelData(core.LayoutRGBA8, 64, 64)
	seed := uint32(88172645)
	for i := range px.Pix {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		px.Pix[i] = byte(seed) // noise does not deflate below the cap
	}

	_, err := c.Encode(context.Background(), px, core.EncodeOptions{}, &core.Limits{MaxOutputBytes: 64})
	if !apperrors.IsKind(err, apperrors.KindLimitExceeded) {
		t.Errorf("got %v, want limit-exceeded", err)
	}
}

// trippingContext reports cancellation only from the N+1th Err poll onward, so
// the entry check passes and cancellation lands while the backend is running.
type trippingContext struct {
	context.Context
	polls int
	after int
}

func (c *trippingContext) Err() error {
	c.polls++
	if c.polls > c.after {
		return context.Canceled
	}
	return nil
}

func TestPNG_CancelDuringDecode(t *testing.T) {
	c := mustLookup(t, core.FormatPNG)
	data := pngBytes(t, 32, 32, false)
	ctx := &trippingContext{Context: context.Background(), after: 2}

	_, err := c.Decode(ctx, data, nil)
	if err == nil {
		t.Fatal("decode must fail once the context trips")
	}
	// Cancellation mid-read must surface as cancelled, not as a codec error.
	if !apperrors.IsKind(err, apperrors.KindCancelled) {
		k, _ := apperrors.KindOf(err)
		t.Errorf("got kind %v, want cancelled", k)
	}
}

func TestPNG_CancelDuringEncode(t *testing.T) {
	c := mustLookup(t, core.FormatPNG)
	px, _ := core.NewPixelData(core.LayoutRGBA8, 32, 32)
	ctx := &trippingContext{Context: context.Background(), after: 1}

	_, err := c.Encode(ctx, px, core.EncodeOptions{}, nil)
	if err == nil {
		t.Fatal("encode must fail once the context trips")
	}
	if !apperrors.IsKind(err, apperrors.KindCancelled) {
		k, _ := apperrors.KindOf(err)
		t.Errorf("got kind %v, want cancelled", k)
	}
}

// ── GIF ───────────────────────────────────────────────────────────────────────

func TestGIF_ProbeFrameCountUnknown(t *testing.T) {
	c := mustLookup(t, core.FormatGIF)
	info, err := c.Probe(context.Background(), gifBytes(t, 3), nil)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.FrameCount != 0 {
		t.Errorf("frame count at probe: got %d, want 0 (unknown)", info.FrameCount)
	}
}

func TestGIF_DecodeFrames(t *testing.T) {
	c := mustLookup(t, core.FormatGIF)
	sd, ok := c.(core.SequenceDecoder)
	if !ok {
		t.Fatal("gif adapter must implement SequenceDecoder")
	}

	info, frames, err := sd.DecodeFrames(context.Background(), gifBytes(t, 3), nil)
	if err != nil {
		t.Fatalf("decode frames: %v", err)
	}
	if info.FrameCount != 3 || !info.HasAnimation {
		t.Errorf("info after full parse: %+v", info)
	}
	if len(frames) != 3 {
		t.Fatalf("frames: got %d", len(frames))
	}
	for i, f := range frames {
		if f.Index != i {
			t.Errorf("frame %d has index %d", i, f.Index)
		}
		if f.Width != 8 || f.Height != 8 {
			t.Errorf("frame %d: %dx%d", i, f.Width, f.Height)
		}
		if f.Delay <= 0 {
			t.Errorf("frame %d: no delay", i)
		}
	}
}

func TestGIF_EncodeFrames(t *testing.T) {
	c := mustLookup(t, core.FormatGIF)
	se, ok := c.(core.SequenceEncoder)
	if !ok {
		t.Fatal("gif adapter must implement SequenceEncoder")
	}

	var frames []*core.Frame
	for i := 0; i < 2; i++ {
		px, _ := core.NewPixelData(core.LayoutRGBA8, 8, 8)
		for p := 3; p < len(px.Pix); p += 4 {
			px.Pix[p] = 255
			px.Pix[p-3] = uint8(i * 200)
		}
		frames = append(frames, &core.Frame{Index: i, Width: 8, Height: 8, Pixels: px})
	}
	out, err := se.EncodeFrames(context.Background(), frames, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("encode frames: %v", err)
	}

	g, err := gif.DecodeAll(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if len(g.Image) != 2 {
		t.Errorf("encoded frames: got %d", len(g.Image))
	}
}

// manyFrameGIF hand-assembles an 8x8 GIF declaring the given number of
// frames.  The frame payloads are garbage, so any attempt to actually decode
// a frame fails; only the block structure is valid.
func manyFrameGIF(t *testing.T, frames int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("GIF89a")
	buf.Write([]byte{8, 0, 8, 0, 0x80, 0, 0}) // logical screen, 2-entry global table
	buf.Write([]byte{0, 0, 0, 255, 255, 255}) // global color table
	for i := 0; i < frames; i++ {
		buf.WriteByte(0x2C) // image descriptor
		buf.Write([]byte{0, 0, 0, 0, 8, 0, 8, 0, 0})
		buf.WriteByte(2)                                // LZW minimum code size
		buf.Write([]byte{4, 0xDE, 0xAD, 0xBE, 0xEF, 0}) // one garbage sub-block + terminator
	}
	buf.WriteByte(0x3B)
	return buf.Bytes()
}

func TestGIF_SequenceLimitBeforeDecode(t *testing.T) {
	c := mustLookup(t, core.FormatGIF)
	sd := c.(core.SequenceDecoder)

	// 64 declared frames at 8x8 RGBA need 16 KiB.  The frame payloads are
	// undecodable garbage, so the limit error can only come from a check
	// that runs before any frame is materialized.
	data := manyFrameGIF(t, 64)
	_, _, err := sd.DecodeFrames(context.Background(), data, &core.Limits{MaxMemoryBytes: 4096})
	if !apperrors.IsKind(err, apperrors.KindLimitExceeded) {
		t.Errorf("got %v, want limit-exceeded before decoding", err)
	}
}

func TestGIF_SequenceMemoryLimit(t *testing.T) {
	c := mustLookup(t, core.FormatGIF)
	sd := c.(core.SequenceDecoder)

	// 3 composited 8x8 RGBA frames need 768 bytes; cap below that.
	_, _, err := sd.DecodeFrames(context.Background(), gifBytes(t, 3), &core.Limits{MaxMemoryBytes: 512})
	if !apperrors.IsKind(err, apperrors.KindLimitExceeded) {
		t.Errorf("got %v, want limit-exceeded", err)
	}
}

// ── BMP ───────────────────────────────────────────────────────────────────────

func TestBMP_RoundTrip(t *testing.T) {
	c := mustLookup(t, core.FormatBMP)
	data := bmpBytes(t, 6, 4)

	out, err := c.Decode(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Info.Width != 6 || out.Info.Height != 4 {
		t.Errorf("info: %+v", out.Info)
	}

	enc, err := c.Encode(context.Background(), out.Pixels, core.EncodeOptions{Quality: 10}, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if core.Detect(enc.Data) != core.FormatBMP {
		t.Error("output is not a bmp")
	}
}

// ── WebP ──────────────────────────────────────────────────────────────────────

func TestWebP_FrameWriterAbandon(t *testing.T) {
	c := mustLookup(t, core.FormatWebP)
	fe := c.(core.FrameEncoder)

	w, err := fe.OpenFrameWriter(context.Background(), 8, 8, core.EncodeOptions{}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	px, _ := core.NewPixelData(core.LayoutRGBA8, 8, 8)
	if err := w.Push(context.Background(), px, 100*time.Millisecond); err != nil {
		t.Fatalf("push: %v", err)
	}

	// Abandon before Finish.  The writer is terminal afterwards.
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Push(context.Background(), px, 0); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("push after close: got %v", err)
	}
	if _, err := w.Finish(context.Background()); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Errorf("finish after close: got %v", err)
	}
}
