package core

import (
	"context"
	"fmt"

	apperrors "github.com/imazen/zencodecs/errors"
)

// Limits bounds the resources an operation may consume.  A zero field means
// "no bound"; a nil *Limits means no bounds at all.  Any bound present is
// checked before or during an operation, never only after: declared header
// dimensions are validated before any buffer is sized from them, and decode
// and encode paths re-check as work progresses.
type Limits struct {
	MaxWidth       uint64
	MaxHeight      uint64
	MaxPixels      uint64
	MaxMemoryBytes uint64
	MaxOutputBytes uint64
}

// CheckDimensions validates declared dimensions against the width, height,
// and pixel-count bounds.
func (l *Limits) CheckDimensions(format Format, width, height int) error {
	if l == nil {
		return nil
	}
	w, h := uint64(width), uint64(height)
	if l.MaxWidth > 0 && w > l.MaxWidth {
		return apperrors.New(apperrors.KindLimitExceeded, string(format),
			fmt.Sprintf("width %d exceeds limit %d", w, l.MaxWidth))
	}
	if l.MaxHeight > 0 && h > l.MaxHeight {
		return apperrors.New(apperrors.KindLimitExceeded, string(format),
			fmt.Sprintf("height %d exceeds limit %d", h, l.MaxHeight))
	}
	if l.MaxPixels > 0 && w*h > l.MaxPixels {
		return apperrors.New(apperrors.KindLimitExceeded, string(format),
			fmt.Sprintf("pixel count %d exceeds limit %d", w*h, l.MaxPixels))
	}
	return nil
}

// CheckMemory validates a pending allocation size.
func (l *Limits) CheckMemory(format Format, bytes uint64) error {
	if l == nil || l.MaxMemoryBytes == 0 {
		return nil
	}
	if bytes > l.MaxMemoryBytes {
		return apperrors.New(apperrors.KindLimitExceeded, string(format),
			fmt.Sprintf("allocation of %d bytes exceeds memory limit %d", bytes, l.MaxMemoryBytes))
	}
	return nil
}

// CheckOutput validates an encoded output size.  Encoders also enforce this
// progressively through utils.CappedWriter so hostile inputs cannot balloon
// the output mid-encode.
func (l *Limits) CheckOutput(format Format, bytes uint64) error {
	if l == nil || l.MaxOutputBytes == 0 {
		return nil
	}
	if bytes > l.MaxOutputBytes {
		return apperrors.New(apperrors.KindLimitExceeded, string(format),
			fmt.Sprintf("output of %d bytes exceeds limit %d", bytes, l.MaxOutputBytes))
	}
	return nil
}

// CheckContext maps context cancellation into the unified taxonomy.
// Adapters poll it at bounded cadence: at least once per frame for
// multi-frame formats, once per operation stage otherwise.
func CheckContext(ctx context.Context, format Format) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.KindCancelled, string(format), err)
	}
	return nil
}
