package hooks_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/imazen/zencodecs/core"
	"github.com/imazen/zencodecs/hooks"
)

func TestSlogHookLogsStartAndDone(t *testing.T) {
	var buf bytes.Buffer
	h := hooks.NewSlogHook(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := context.Background()
	h.BeforeOp(ctx, "decode", core.FormatPNG)
	h.AfterOp(ctx, "decode", core.FormatPNG, 3*time.Millisecond, nil)

	out := buf.String()
	if !strings.Contains(out, "codec.op.start") || !strings.Contains(out, "codec.op.done") {
		t.Errorf("log output: %s", out)
	}
	if !strings.Contains(out, "png") {
		t.Errorf("format missing from log: %s", out)
	}
}

func TestSlogHookLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	h := hooks.NewSlogHook(slog.New(slog.NewTextHandler(&buf, nil)))

	h.AfterOp(context.Background(), "encode", core.FormatJPEG, time.Millisecond, errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "codec.op.error") || !strings.Contains(out, "boom") {
		t.Errorf("log output: %s", out)
	}
}

func TestInMemoryMetrics(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	ctx := context.Background()

	m.AfterOp(ctx, "decode", core.FormatPNG, 10*time.Millisecond, nil)
	m.AfterOp(ctx, "decode", core.FormatPNG, 5*time.Millisecond, nil)
	m.AfterOp(ctx, "encode", core.FormatWebP, time.Millisecond, errors.New("boom"))

	snap := m.Snapshot()
	if snap.OpCalls["decode.png"] != 2 {
		t.Errorf("decode calls: %d", snap.OpCalls["decode.png"])
	}
	if snap.OpDurationsMs["decode.png"] != 15 {
		t.Errorf("decode ms: %d", snap.OpDurationsMs["decode.png"])
	}
	if snap.OpErrors["encode.webp"] != 1 || snap.OpErrors["decode.png"] != 0 {
		t.Errorf("errors: %+v", snap.OpErrors)
	}

	// The snapshot is a copy, not a live view.
	m.AfterOp(ctx, "decode", core.FormatPNG, time.Millisecond, nil)
	if snap.OpCalls["decode.png"] != 2 {
		t.Error("snapshot must not track later operations")
	}
}
