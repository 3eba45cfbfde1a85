package core

// formatSet is a bitflag set over the known format tags.
type formatSet uint8

var formatBits = map[Format]formatSet{
	FormatJPEG: 1 << 0,
	FormatWebP: 1 << 1,
	FormatGIF:  1 << 2,
	FormatPNG:  1 << 3,
	FormatAVIF: 1 << 4,
	FormatJXL:  1 << 5,
	FormatBMP:  1 << 6,
}

func (s formatSet) contains(f Format) bool { return s&formatBits[f] != 0 }
func (s formatSet) with(f Format) formatSet { return s | formatBits[f] }
func (s formatSet) without(f Format) formatSet { return s &^ formatBits[f] }

// formats lists the set's members in declaration order.
func (s formatSet) formats() []Format {
	var out []Format
	for _, f := range allFormats {
		if s.contains(f) {
			out = append(out, f)
		}
	}
	return out
}

// Compiled-in capability sets.  Fixed during package initialization: each
// adapter in adapters/codec calls RegisterCompiled from init(), so the set is
// exactly the adapters present in this build (the avif adapter only exists
// under the vips build tag).  Immutable for the process lifetime afterwards.
var (
	compiledDecode formatSet
	compiledEncode formatSet
)

// RegisterCompiled records that a codec for f is compiled into this build.
// Called only from adapter init() functions.
func RegisterCompiled(f Format, decode, encode bool) {
	if decode {
		compiledDecode = compiledDecode.with(f)
	}
	if encode {
		compiledEncode = compiledEncode.with(f)
	}
}

// CompiledDecode reports whether a decoder for f exists in this build.
func CompiledDecode(f Format) bool { return compiledDecode.contains(f) }

// CompiledEncode reports whether an encoder for f exists in this build.
func CompiledEncode(f Format) bool { return compiledEncode.contains(f) }

// Registry controls which codecs a given call may use.  Compile-time build
// tags determine which codecs are available; the registry controls which are
// enabled at runtime, independently for decode and encode.  This lets image
// proxies restrict codecs per request (e.g. disable AVIF for clients that
// cannot display it).
//
// Registry is an immutable value: the With* builders return a modified copy,
// so one registry can be shared read-only across concurrent callers.
// Enabling a format that is not compiled in is legal; it is simply never
// satisfiable and dispatch reports it as an unsupported format rather than
// silently dropping it.
type Registry struct {
	decodeEnabled formatSet
	encodeEnabled formatSet
}

// AllCodecs returns a registry with every compiled-in codec enabled.
func AllCodecs() Registry {
	return Registry{decodeEnabled: compiledDecode, encodeEnabled: compiledEncode}
}

// NoCodecs returns a registry with nothing enabled; callers opt in per format.
func NoCodecs() Registry { return Registry{} }

// WithDecode returns a copy with decoding of f enabled or disabled.
func (r Registry) WithDecode(f Format, enabled bool) Registry {
	if enabled {
		r.decodeEnabled = r.decodeEnabled.with(f)
	} else {
		r.decodeEnabled = r.decodeEnabled.without(f)
	}
	return r
}

// WithEncode returns a copy with encoding of f enabled or disabled.
func (r Registry) WithEncode(f Format, enabled bool) Registry {
	if enabled {
		r.encodeEnabled = r.encodeEnabled.with(f)
	} else {
		r.encodeEnabled = r.encodeEnabled.without(f)
	}
	return r
}

// CanDecode reports whether f is compiled in AND enabled for decoding.
func (r Registry) CanDecode(f Format) bool {
	return r.decodeEnabled.contains(f) && compiledDecode.contains(f)
}

// CanEncode reports whether f is compiled in AND enabled for encoding.
func (r Registry) CanEncode(f Format) bool {
	return r.encodeEnabled.contains(f) && compiledEncode.contains(f)
}

// DecodeEnabled reports runtime enablement alone, ignoring compilation.
// Dispatch uses it to distinguish "administratively disabled" from
// "impossible in this build".
func (r Registry) DecodeEnabled(f Format) bool { return r.decodeEnabled.contains(f) }

// EncodeEnabled reports runtime enablement alone, ignoring compilation.
func (r Registry) EncodeEnabled(f Format) bool { return r.encodeEnabled.contains(f) }

// DecodableFormats lists compiled ∩ enabled decode formats in declaration order.
func (r Registry) DecodableFormats() []Format {
	return (r.decodeEnabled & compiledDecode).formats()
}

// EncodableFormats lists compiled ∩ enabled encode formats in declaration order.
func (r Registry) EncodableFormats() []Format {
	return (r.encodeEnabled & compiledEncode).formats()
}
