// Package config bundles reusable dispatch defaults and per-backend codec
// tuning into one validated value.
package config

import (
	"errors"
	"fmt"

	"github.com/imazen/zencodecs/core"
)

// CodecConfig is the per-backend tuning bundle accepted by encode requests.
type CodecConfig = core.CodecParams

// Config is the top-level configuration.  All fields have safe defaults so
// callers can start with Config{} and override only what they need.
type Config struct {
	// Default encode options applied when a request does not override.
	DefaultQuality int // 1-100; default 85
	DefaultEffort  int // 0-10; 0 = backend default

	// Limits applied to every operation unless a request overrides them.
	Limits core.Limits

	// Codec holds backend-specific tuning passed through untouched.
	Codec CodecConfig

	// LogLevel for the slog hook: "debug", "info", "warn", "error".
	LogLevel string
}

// Default returns a Config populated with sensible production defaults.
// The dimension caps match common hardware decoder ceilings; memory is
// bounded at 1 GiB of decoded pixels.
func Default() Config {
	return Config{
		DefaultQuality: 85,
		Limits: core.Limits{
			MaxWidth:       16384,
			MaxHeight:      16384,
			MaxPixels:      16384 * 16384,
			MaxMemoryBytes: 1 << 30,
		},
		LogLevel: "info",
	}
}

// WithCodec returns a copy with the codec tuning bundle replaced.
func (c Config) WithCodec(cc CodecConfig) Config {
	c.Codec = cc
	return c
}

// WithQuality returns a copy with the default quality replaced.
func (c Config) WithQuality(q int) Config {
	c.DefaultQuality = q
	return c
}

// WithLimits returns a copy with the limits replaced.
func (c Config) WithLimits(l core.Limits) Config {
	c.Limits = l
	return c
}

var errQualityRange = errors.New("config: DefaultQuality must be 1-100")

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.DefaultQuality < 0 || c.DefaultQuality > 100 {
		return errQualityRange
	}
	if c.DefaultEffort < 0 || c.DefaultEffort > 10 {
		return errors.New("config: DefaultEffort must be 0-10")
	}
	if p := c.Codec.WebP; p != nil && (p.Method < 0 || p.Method > 6) {
		return errors.New("config: WebP method must be 0-6")
	}
	if p := c.Codec.GIF; p != nil && (p.NumColors < 0 || p.NumColors > 256) {
		return errors.New("config: GIF palette size must be 1-256")
	}
	if p := c.Codec.AVIF; p != nil && (p.Speed < 0 || p.Speed > 9) {
		return errors.New("config: AVIF speed must be 0-9")
	}
	if p := c.Codec.JXL; p != nil && (p.Effort < 0 || p.Effort > 9) {
		return errors.New("config: JXL effort must be 1-9")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}
