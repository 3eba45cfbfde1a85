package zencodecs

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/imazen/zencodecs/config"
	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/stream"
)

// EncodeConfig is a reusable, shareable encode configuration.
type EncodeConfig struct {
	// Format selects the output codec.  Empty means automatic selection
	// from pixel characteristics (see Encode; streams need it explicit).
	Format Format
	// Quality on the unified 0-100 scale; 0 = per-format default.
	Quality int
	// Effort is the 0-10 speed/size trade-off; 0 = per-format default.
	Effort int
	// Lossless requests lossless output.  Formats without a lossless mode
	// reject it instead of silently degrading.
	Lossless bool
	// Registry narrows the enabled encoders; nil means all compiled-in.
	Registry *Registry
	// Limits bound every operation made through requests of this config.
	Limits *Limits
	// Codec passes backend-specific tuning through untouched.
	Codec *config.CodecConfig
	// Hooks observe each operation.
	Hooks []Hook
}

// NewRequest creates a single-use encode request: exactly one terminal call
// (Encode or OpenStream) may be made.
func (c EncodeConfig) NewRequest() *EncodeRequest {
	return &EncodeRequest{cfg: c}
}

// EncodeRequest is a single-use handle on one encode.
type EncodeRequest struct {
	cfg  EncodeConfig
	meta Metadata
	used bool
}

// WithMetadata attaches ICC/EXIF/XMP for codecs that can embed it.  The
// views are borrowed; they must stay valid until the terminal call returns.
func (r *EncodeRequest) WithMetadata(m Metadata) *EncodeRequest {
	r.meta = m
	return r
}

// WithLimits overrides the config-level limits for this request.
func (r *EncodeRequest) WithLimits(l *Limits) *EncodeRequest {
	r.cfg.Limits = l
	return r
}

func (r *EncodeRequest) consume() error {
	if r.used {
		return apperrors.New(apperrors.KindInvalidInput, "", "request already used")
	}
	r.used = true
	return nil
}

func (r *EncodeRequest) registry() Registry {
	if r.cfg.Registry != nil {
		return *r.cfg.Registry
	}
	return core.AllCodecs()
}

func (r *EncodeRequest) options() core.EncodeOptions {
	opts := core.EncodeOptions{
		Quality:  r.cfg.Quality,
		Effort:   r.cfg.Effort,
		Lossless: r.cfg.Lossless,
		Metadata: r.meta,
	}
	if r.cfg.Codec != nil {
		opts.Params = *r.cfg.Codec
	}
	return opts
}

// Encode encodes pixels into the configured (or auto-selected) format.  The
// returned output carries an xxhash64 digest of the encoded bytes.
func (r *EncodeRequest) Encode(ctx context.Context, pixels *PixelData) (*core.EncodeOutput, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	if err := pixels.Validate(); err != nil {
		return nil, err
	}

	format := r.cfg.Format
	reg := r.registry()
	if format == "" || format == core.FormatUnknown {
		var err error
		format, err = selectFormat(pixels, r.cfg.Lossless, reg)
		if err != nil {
			return nil, err
		}
	}
	c, err := resolveEncoder(format, reg)
	if err != nil {
		return nil, err
	}

	done := begin(ctx, r.cfg.Hooks, "encode", format)
	out, err := c.Encode(ctx, pixels, r.options(), r.cfg.Limits)
	done(err)
	if err != nil {
		return nil, err
	}
	out.Digest = xxhash.Sum64(out.Data)
	return out, nil
}

// OpenStream opens a frame-push encode of a width x height sequence.
// Automatic format selection needs pixel content, so streams require an
// explicit Format.
func (r *EncodeRequest) OpenStream(ctx context.Context, width, height int) (*stream.Encoder, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	if r.cfg.Format == "" || r.cfg.Format == core.FormatUnknown {
		return nil, apperrors.New(apperrors.KindInvalidInput, "",
			"streaming encode requires an explicit format")
	}
	c, err := resolveEncoder(r.cfg.Format, r.registry())
	if err != nil {
		return nil, err
	}
	done := begin(ctx, r.cfg.Hooks, "encode.stream", r.cfg.Format)
	e, err := stream.NewEncoder(ctx, c, width, height, r.options(), r.cfg.Limits)
	done(err)
	return e, err
}
