// Package hooks provides production-ready core.Hook implementations.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/imazen/zencodecs/core"
)

// ── Logging hook ──────────────────────────────────────────────────────────────

// SlogHook logs every dispatch operation through a slog.Logger.
type SlogHook struct {
	log *slog.Logger
}

// NewSlogHook creates a SlogHook.  A nil logger uses slog.Default().
func NewSlogHook(l *slog.Logger) *SlogHook {
	if l == nil {
		l = slog.Default()
	}
	return &SlogHook{log: l}
}

func (h *SlogHook) BeforeOp(ctx context.Context, op string, format core.Format) {
	h.log.DebugContext(ctx, "codec.op.start",
		"op", op,
		"format", string(format),
	)
}

func (h *SlogHook) AfterOp(ctx context.Context, op string, format core.Format, d time.Duration, err error) {
	if err != nil {
		h.log.ErrorContext(ctx, "codec.op.error",
			"op", op,
			"format", string(format),
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	h.log.DebugContext(ctx, "codec.op.done",
		"op", op,
		"format", string(format),
		"duration_ms", d.Milliseconds(),
	)
}

// ── In-memory metrics ─────────────────────────────────────────────────────────

// InMemoryMetrics accumulates per-operation counters; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	opDurationsMs map[string]int64 // cumulative ms per op
	opCalls       map[string]int64
	opErrors      map[string]int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		opDurationsMs: make(map[string]int64),
		opCalls:       make(map[string]int64),
		opErrors:      make(map[string]int64),
	}
}

func (m *InMemoryMetrics) BeforeOp(_ context.Context, _ string, _ core.Format) {}

func (m *InMemoryMetrics) AfterOp(_ context.Context, op string, format core.Format, d time.Duration, err error) {
	key := op + "." + string(format)
	m.mu.Lock()
	m.opDurationsMs[key] += d.Milliseconds()
	m.opCalls[key]++
	if err != nil {
		m.opErrors[key]++
	}
	m.mu.Unlock()
}

// MetricsSnapshot is an immutable point-in-time copy of metrics, keyed by
// "op.format".
type MetricsSnapshot struct {
	OpDurationsMs map[string]int64
	OpCalls       map[string]int64
	OpErrors      map[string]int64
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		OpDurationsMs: make(map[string]int64, len(m.opDurationsMs)),
		OpCalls:       make(map[string]int64, len(m.opCalls)),
		OpErrors:      make(map[string]int64, len(m.opErrors)),
	}
	for k, v := range m.opDurationsMs {
		snap.OpDurationsMs[k] = v
	}
	for k, v := range m.opCalls {
		snap.OpCalls[k] = v
	}
	for k, v := range m.opErrors {
		snap.OpErrors[k] = v
	}
	return snap
}
