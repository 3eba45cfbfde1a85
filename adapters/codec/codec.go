// Package codec provides the per-format adapters behind the dispatch layer.
// Each adapter translates between the unified three-operation contract
// (probe, decode, encode) and one codec backend's native API.
//
// Adapters register themselves during package initialization; the set of
// init() calls that run in a given build is exactly the compiled-in
// capability set reported by core.  The AVIF and JPEG XL adapters only
// exist when the module is built with the vips tag.
package codec

import (
	"bytes"
	"context"
	"io"

	"github.com/imazen/zencodecs/core"
	apperrors "github.com/imazen/zencodecs/errors"
	"github.com/imazen/zencodecs/utils"
)

var codecs = map[core.Format]core.Codec{}

// register wires an adapter into the lookup table and records its directions
// in the compiled-in capability set.  Called from init() only.
func register(c core.Codec, decode, encode bool) {
	codecs[c.Format()] = c
	core.RegisterCompiled(c.Format(), decode, encode)
}

// Lookup returns the adapter for f, if one is compiled into this build.
func Lookup(f core.Format) (core.Codec, bool) {
	c, ok := codecs[f]
	return c, ok
}

// decodeReader wraps data so a backend with no cancellation support still
// polls ctx on every read.
func decodeReader(ctx context.Context, data []byte, format core.Format) io.Reader {
	return &utils.ContextReader{Ctx: ctx, R: bytes.NewReader(data), Format: string(format)}
}

// backendError classifies a failure bubbling out of a backend call.
// Cancellation takes precedence even when the backend rewrapped the reader
// or writer error; limit errors from a capped writer pass through; anything
// else is a codec failure.
func backendError(ctx context.Context, format core.Format, err error) error {
	if cerr := core.CheckContext(ctx, format); cerr != nil {
		return cerr
	}
	if apperrors.IsKind(err, apperrors.KindCancelled) ||
		apperrors.IsKind(err, apperrors.KindLimitExceeded) {
		return err
	}
	return apperrors.Codec(string(format), err)
}
