package zencodecs

import (
	"context"
	"time"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/stream"
)

// DecodeConfig is a reusable, shareable decode configuration.  It holds no
// borrowed data, so one value can serve any number of requests from any
// number of goroutines.
type DecodeConfig struct {
	// Format overrides signature detection when set.
	Format Format
	// Registry narrows the enabled decoders; nil means all compiled-in.
	Registry *Registry
	// Limits bound every operation made through requests of this config.
	Limits *Limits
	// Hooks observe each operation.
	Hooks []Hook
}

// NewRequest binds the config to one input buffer.  The request is
// single-use: exactly one terminal call (Decode or OpenStream) may be made.
// The data slice is borrowed for the lifetime of the request.
func (c DecodeConfig) NewRequest(data []byte) *DecodeRequest {
	return &DecodeRequest{cfg: c, data: data}
}

// DecodeRequest is a single-use handle on one decode.
type DecodeRequest struct {
	cfg  DecodeConfig
	data []byte
	used bool
}

// WithLimits overrides the config-level limits for this request.
func (r *DecodeRequest) WithLimits(l *Limits) *DecodeRequest {
	r.cfg.Limits = l
	return r
}

func (r *DecodeRequest) consume() error {
	if r.used {
		return apperrors.New(apperrors.KindInvalidInput, "", "request already used")
	}
	r.used = true
	return nil
}

func (r *DecodeRequest) registry() Registry {
	if r.cfg.Registry != nil {
		return *r.cfg.Registry
	}
	return core.AllCodecs()
}

// Decode runs the full dispatch flow and returns the decoded pixels along
// with header info and any metadata the container carried.
func (r *DecodeRequest) Decode(ctx context.Context) (*core.DecodeOutput, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	c, err := resolveDecoder(r.data, r.cfg.Format, r.registry())
	if err != nil {
		return nil, err
	}
	done := begin(ctx, r.cfg.Hooks, "decode", c.Format())
	out, err := c.Decode(ctx, r.data, r.cfg.Limits)
	done(err)
	return out, err
}

// OpenStream opens frame-by-frame iteration over the input.  Still images
// yield exactly one frame.
func (r *DecodeRequest) OpenStream(ctx context.Context) (*stream.Decoder, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	c, err := resolveDecoder(r.data, r.cfg.Format, r.registry())
	if err != nil {
		return nil, err
	}
	done := begin(ctx, r.cfg.Hooks, "decode.stream", c.Format())
	d, err := stream.NewDecoder(ctx, c, r.data, r.cfg.Limits)
	done(err)
	return d, err
}

// begin notifies hooks that an operation started and returns the matching
// completion callback.
func begin(ctx context.Context, hooks []Hook, op string, f Format) func(error) {
	for _, h := range hooks {
		h.BeforeOp(ctx, op, f)
	}
	start := time.Now()
	return func(err error) {
		d := time.Since(start)
		for _, h := range hooks {
			h.AfterOp(ctx, op, f, d, err)
		}
	}
}
