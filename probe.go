package zencodecs

import (
	"context"

	"github.com/imazen/zencodecs/adapters/codec"
	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
)

// Probe detects the format of data and extracts header-level information
// without decoding pixels.  All compiled-in decoders are considered.
func Probe(ctx context.Context, data []byte) (*ImageInfo, error) {
	return ProbeWithRegistry(ctx, data, core.AllCodecs())
}

// ProbeWithRegistry is Probe restricted to the decoders reg enables.
func ProbeWithRegistry(ctx context.Context, data []byte, reg Registry) (*ImageInfo, error) {
	c, err := resolveDecoder(data, core.FormatUnknown, reg)
	if err != nil {
		return nil, err
	}
	return c.Probe(ctx, data, nil)
}

// resolveDecoder runs the dispatch gate for a decode-direction operation:
// detect (unless overridden), compiled-in check, registry check, adapter
// lookup.  The error kinds are deliberately distinct per gate.
func resolveDecoder(data []byte, override Format, reg Registry) (core.Codec, error) {
	f := override
	if f == "" || f == core.FormatUnknown {
		f = core.Detect(data)
	}
	if f == core.FormatUnknown {
		return nil, apperrors.New(apperrors.KindUnrecognizedFormat, "",
			"no known signature in input")
	}
	if !core.CompiledDecode(f) {
		return nil, apperrors.New(apperrors.KindUnsupportedFormat, string(f),
			"decoder not compiled into this build")
	}
	if !reg.DecodeEnabled(f) {
		return nil, apperrors.New(apperrors.KindDisabledFormat, string(f),
			"decoding disabled by registry")
	}
	c, ok := codec.Lookup(f)
	if !ok {
		return nil, apperrors.New(apperrors.KindUnsupportedFormat, string(f),
			"decoder not compiled into this build")
	}
	return c, nil
}

// resolveEncoder is the encode-direction dispatch gate.
func resolveEncoder(f Format, reg Registry) (core.Codec, error) {
	if f == "" || f == core.FormatUnknown {
		return nil, apperrors.New(apperrors.KindInvalidInput, "",
			"encode format not specified")
	}
	if !core.CompiledEncode(f) {
		return nil, apperrors.New(apperrors.KindUnsupportedFormat, string(f),
			"encoder not compiled into this build")
	}
	if !reg.EncodeEnabled(f) {
		return nil, apperrors.New(apperrors.KindDisabledFormat, string(f),
			"encoding disabled by registry")
	}
	c, ok := codec.Lookup(f)
	if !ok {
		return nil, apperrors.New(apperrors.KindUnsupportedFormat, string(f),
			"encoder not compiled into this build")
	}
	return c, nil
}
