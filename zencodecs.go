// Package zencodecs is a unified dispatch layer over image codecs.  It
// normalizes format detection, capability gating, resource limits,
// cancellation, metadata passthrough, and quality scales across JPEG, PNG,
// GIF, WebP, BMP, and (with the vips build tag) AVIF and JPEG XL backends.
//
// Decoding:
//
//	out, err := zencodecs.DecodeConfig{}.NewRequest(data).Decode(ctx)
//
// Encoding with automatic format selection:
//
//	enc := zencodecs.EncodeConfig{Quality: 80}.NewRequest()
//	res, err := enc.Encode(ctx, out.Pixels)
//
// Capability gating is two-level: the compiled-in set is fixed by which
// adapters are linked into the build, and a Registry narrows it further at
// runtime.  Enabling a format whose adapter is not compiled in surfaces as
// an unsupported-format error at dispatch, never a panic.
package zencodecs

import (
	"github.com/imazen/zencodecs/core"

	// Adapters register themselves with core during init.
	_ "github.com/imazen/zencodecs/adapters/codec"
)

// Format constants re-exported for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	GIF  = core.FormatGIF
	WebP = core.FormatWebP
	AVIF = core.FormatAVIF
	JXL  = core.FormatJXL
	BMP  = core.FormatBMP
)

// Core types re-exported so most callers only import this package.
type (
	Format    = core.Format
	Registry  = core.Registry
	Limits    = core.Limits
	PixelData = core.PixelData
	ImageInfo = core.ImageInfo
	Metadata  = core.Metadata
	Frame     = core.Frame
	Hook      = core.Hook
)

// AllCodecs returns a Registry with every format enabled in both directions.
func AllCodecs() Registry { return core.AllCodecs() }

// NoCodecs returns a Registry with everything disabled.
func NoCodecs() Registry { return core.NoCodecs() }

// Detect sniffs the format from magic bytes.  See core.Detect.
func Detect(data []byte) Format { return core.Detect(data) }

// FromExtension maps a file extension to a format.  See core.FromExtension.
func FromExtension(ext string) Format { return core.FromExtension(ext) }
