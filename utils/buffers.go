// Package utils provides shared buffer plumbing for the codec adapters.
package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	apperrors "github.com/imazen/zencodecs/errors"
)

// bufPool reuses byte buffers to reduce GC pressure on the encode paths.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool.  Callers must not use b after this call.
func ReleaseBuffer(b *bytes.Buffer) {
	// Cap large buffers to avoid pinning excessive memory.
	if b.Cap() > 8*1024*1024 {
		return
	}
	bufPool.Put(b)
}

// CloneBytes returns a copy of b, safe for use after the source is released.
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ContextReader wraps a reader and fails each Read once ctx is cancelled.
// Decoders read through it so even a backend with no cancellation support
// polls at the cadence of its own reads.
type ContextReader struct {
	Ctx    context.Context
	R      io.Reader
	Format string
}

func (r *ContextReader) Read(p []byte) (int, error) {
	if err := r.Ctx.Err(); err != nil {
		return 0, apperrors.Wrap(apperrors.KindCancelled, r.Format, err)
	}
	return r.R.Read(p)
}

// CappedWriter wraps a writer and fails once more than Max bytes have been
// written.  Encoders write through it so a max-output-bytes limit is enforced
// while the stream is produced, not only after.  Max == 0 means unlimited.
// When Ctx is set, each Write also polls it for cancellation.
type CappedWriter struct {
	W      *bytes.Buffer
	Max    uint64
	Ctx    context.Context
	Format string
	n      uint64
}

func (c *CappedWriter) Write(p []byte) (int, error) {
	if c.Ctx != nil {
		if err := c.Ctx.Err(); err != nil {
			return 0, apperrors.Wrap(apperrors.KindCancelled, c.Format, err)
		}
	}
	if c.Max > 0 && c.n+uint64(len(p)) > c.Max {
		return 0, apperrors.New(apperrors.KindLimitExceeded, c.Format,
			fmt.Sprintf("encoded output exceeds limit of %d bytes", c.Max))
	}
	n, err := c.W.Write(p)
	c.n += uint64(n)
	return n, err
}

// Written reports how many bytes have passed through so far.
func (c *CappedWriter) Written() uint64 { return c.n }
