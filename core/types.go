package core

import (
	"time"

	apperrors "github.com/imazen/zencodecs/errors"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatWebP    Format = "webp"
	FormatGIF     Format = "gif"
	FormatPNG     Format = "png"
	FormatAVIF    Format = "avif"
	FormatJXL     Format = "jxl"
	FormatBMP     Format = "bmp"
	FormatUnknown Format = "unknown"
)

// allFormats is the declaration order used by every deterministic iteration
// (registry listings, auto-selection tie-breaks).
var allFormats = [...]Format{
	FormatJPEG, FormatWebP, FormatGIF, FormatPNG, FormatAVIF, FormatJXL, FormatBMP,
}

// Formats returns every known format tag in declaration order.
func Formats() []Format {
	out := make([]Format, len(allFormats))
	copy(out, allFormats[:])
	return out
}

// MIMEType returns the canonical MIME type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	case FormatGIF:
		return "image/gif"
	case FormatPNG:
		return "image/png"
	case FormatAVIF:
		return "image/avif"
	case FormatJXL:
		return "image/jxl"
	case FormatBMP:
		return "image/bmp"
	}
	return "application/octet-stream"
}

// Extensions returns the known file extensions for the format, primary first.
func (f Format) Extensions() []string {
	switch f {
	case FormatJPEG:
		return []string{"jpg", "jpeg", "jpe", "jfif"}
	case FormatWebP:
		return []string{"webp"}
	case FormatGIF:
		return []string{"gif"}
	case FormatPNG:
		return []string{"png"}
	case FormatAVIF:
		return []string{"avif"}
	case FormatJXL:
		return []string{"jxl"}
	case FormatBMP:
		return []string{"bmp"}
	}
	return nil
}

// SupportsLossy reports whether the format has a lossy encoding mode.
func (f Format) SupportsLossy() bool {
	switch f {
	case FormatJPEG, FormatWebP, FormatAVIF, FormatJXL:
		return true
	}
	return false
}

// SupportsLossless reports whether the format has a lossless encoding mode.
func (f Format) SupportsLossless() bool {
	switch f {
	case FormatWebP, FormatGIF, FormatPNG, FormatJXL, FormatBMP:
		return true
	}
	return false
}

// SupportsAnimation reports whether the format can carry multiple frames.
func (f Format) SupportsAnimation() bool {
	switch f {
	case FormatWebP, FormatGIF, FormatJXL:
		return true
	}
	return false
}

// SupportsAlpha reports whether the format can carry an alpha channel.
func (f Format) SupportsAlpha() bool {
	switch f {
	case FormatWebP, FormatGIF, FormatPNG, FormatAVIF, FormatJXL:
		return true
	}
	return false
}

// RecommendedProbeBytes is enough prefix for dimension probing of any
// supported format, including JPEGs with large EXIF/APP segments before SOF.
const RecommendedProbeBytes = 4096

// MinProbeBytes is the minimum prefix needed for reliable dimension probing
// of this format.  With fewer bytes detection may still succeed but probing
// can fail with invalid input.
func (f Format) MinProbeBytes() int {
	switch f {
	case FormatPNG:
		return 33 // 8 signature + 25 IHDR
	case FormatGIF:
		return 13 // 6 header + 7 logical screen descriptor
	case FormatWebP:
		return 30 // RIFF(12) + chunk header + VP8X dims
	case FormatJPEG:
		return 2048 // SOF can follow large EXIF/APP segments
	case FormatAVIF:
		return 512 // ISOBMFF box traversal
	case FormatJXL:
		return 64 // codestream or container header plus basic info
	case FormatBMP:
		return 26 // file header + BITMAPCOREHEADER dims
	}
	return RecommendedProbeBytes
}

// ── Pixel representation ──────────────────────────────────────────────────────

// PixelLayout enumerates the closed set of concrete pixel buffer layouts a
// decode can produce.  Exactly one layout applies per PixelData.
type PixelLayout int

const (
	LayoutRGB8 PixelLayout = iota
	LayoutRGBA8
	LayoutRGB16
	LayoutRGBA16
	LayoutRGBF32
	LayoutRGBAF32
	LayoutGray8
)

func (l PixelLayout) String() string {
	switch l {
	case LayoutRGB8:
		return "rgb8"
	case LayoutRGBA8:
		return "rgba8"
	case LayoutRGB16:
		return "rgb16"
	case LayoutRGBA16:
		return "rgba16"
	case LayoutRGBF32:
		return "rgbf32"
	case LayoutRGBAF32:
		return "rgbaf32"
	case LayoutGray8:
		return "gray8"
	}
	return "invalid"
}

// Channels returns the number of channels per pixel.
func (l PixelLayout) Channels() int {
	switch l {
	case LayoutGray8:
		return 1
	case LayoutRGB8, LayoutRGB16, LayoutRGBF32:
		return 3
	case LayoutRGBA8, LayoutRGBA16, LayoutRGBAF32:
		return 4
	}
	return 0
}

// BytesPerChannel returns the storage width of a single channel.
func (l PixelLayout) BytesPerChannel() int {
	switch l {
	case LayoutGray8, LayoutRGB8, LayoutRGBA8:
		return 1
	case LayoutRGB16, LayoutRGBA16:
		return 2
	case LayoutRGBF32, LayoutRGBAF32:
		return 4
	}
	return 0
}

// BytesPerPixel returns the storage width of one pixel.
func (l PixelLayout) BytesPerPixel() int { return l.Channels() * l.BytesPerChannel() }

// HasAlpha reports whether the layout carries an alpha channel.
func (l PixelLayout) HasAlpha() bool {
	switch l {
	case LayoutRGBA8, LayoutRGBA16, LayoutRGBAF32:
		return true
	}
	return false
}

// BufferSize returns the required buffer length for width×height pixels,
// or false on overflow.
func (l PixelLayout) BufferSize(width, height int) (int, bool) {
	bpp := uint64(l.BytesPerPixel())
	if width <= 0 || height <= 0 || bpp == 0 {
		return 0, false
	}
	px := uint64(width) * uint64(height)
	n := px * bpp
	if n/bpp != px || n > uint64(int(^uint(0)>>1)) {
		return 0, false
	}
	return int(n), true
}

// PixelData is one concrete pixel buffer in the codec's native layout.
// Invariant: len(Pix) == Width × Height × Layout.BytesPerPixel().
// Multi-byte channels are stored big-endian, matching the standard library's
// image.RGBA64 convention.
type PixelData struct {
	Layout PixelLayout
	Width  int
	Height int
	Pix    []byte
}

// NewPixelData allocates a zeroed buffer for the given layout and dimensions.
func NewPixelData(layout PixelLayout, width, height int) (*PixelData, error) {
	n, ok := layout.BufferSize(width, height)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidInput, "",
			"pixel buffer dimensions invalid or overflow")
	}
	return &PixelData{Layout: layout, Width: width, Height: height, Pix: make([]byte, n)}, nil
}

// Validate checks the buffer-length invariant.
func (p *PixelData) Validate() error {
	n, ok := p.Layout.BufferSize(p.Width, p.Height)
	if !ok || len(p.Pix) != n {
		return apperrors.New(apperrors.KindInvalidInput, "",
			"pixel buffer length does not match dimensions and layout")
	}
	return nil
}

// ── Probe / decode / encode results ──────────────────────────────────────────

// ImageInfo is the result of probing: header-level facts, no pixel data.
// Immutable once produced.  The metadata slices are owned by the ImageInfo.
type ImageInfo struct {
	Width        int
	Height       int
	Format       Format
	HasAlpha     bool
	HasAnimation bool
	// FrameCount is 0 when unknown without a full parse (e.g. GIF probing).
	FrameCount int
	ICCProfile []byte
	EXIF       []byte
	XMP        []byte
}

// Metadata returns a borrowed view of the auxiliary metadata.  The view must
// not outlive the ImageInfo that produced it.
func (i *ImageInfo) Metadata() Metadata {
	return Metadata{ICCProfile: i.ICCProfile, EXIF: i.EXIF, XMP: i.XMP}
}

// Metadata is a borrowed triple of auxiliary image metadata.  Each field is a
// view into bytes owned by a DecodeOutput or ImageInfo; it is handed to a
// subsequent encode without copying and must not be retained past its source.
type Metadata struct {
	ICCProfile []byte
	EXIF       []byte
	XMP        []byte
}

// IsZero reports whether no metadata is present.
func (m Metadata) IsZero() bool {
	return m.ICCProfile == nil && m.EXIF == nil && m.XMP == nil
}

// DecodeOutput owns the decoded pixels and their probe-level info.
type DecodeOutput struct {
	Pixels *PixelData
	Info   *ImageInfo
}

// Metadata returns a borrowed view of the decode's auxiliary metadata.
func (o *DecodeOutput) Metadata() Metadata { return o.Info.Metadata() }

// EncodeOutput owns the encoded bytes and records the format actually used,
// which matters when auto-selection chose it.
type EncodeOutput struct {
	Data   []byte
	Format Format
	// Digest is the xxhash64 of Data, filled in by the dispatch layer.
	// Zero when the output came straight from an adapter.
	Digest uint64
}

// Frame is one unit of a multi-frame sequence.  Index is zero-based and
// strictly increasing within one streaming iteration.
type Frame struct {
	Index  int
	Width  int
	Height int
	Delay  time.Duration
	Pixels *PixelData
}

// EncodeOptions carries the normalized encode parameters handed to adapters.
// Quality is the unified 0-100 scale; adapters map it to their native scale
// through the fixed tables in pipeline/quality.go.
type EncodeOptions struct {
	Quality  int // 0 = adapter default
	Effort   int // 0-10 speed/size trade-off; 0 = adapter default
	Lossless bool
	Metadata Metadata
	Params   CodecParams
}

// CodecParams carries optional backend-specific tuning.  Each adapter reads
// only its own field and ignores the rest, so one bundle can be reused for
// encodes across formats.  Zero values mean "derive from Quality/Effort".
type CodecParams struct {
	WebP *WebPParams
	PNG  *PNGParams
	GIF  *GIFParams
	AVIF *AVIFParams
	JXL  *JXLParams
}

// WebPParams tunes the WebP backend beyond the unified scales.
type WebPParams struct {
	Method   int // 0-6 backend effort; overrides the Effort mapping
	SharpYUV bool
	Exact    bool // preserve RGB under transparent pixels
}

// PNGParams tunes the PNG backend.
type PNGParams struct {
	Compression int // 0 default, 1 fastest, 2 best size; overrides Effort
}

// GIFParams tunes the GIF backend.
type GIFParams struct {
	NumColors int // palette size 1-256; 0 = 256
}

// AVIFParams tunes the AVIF backend.
type AVIFParams struct {
	Speed int // 0-9 encoder speed; 0 = backend default
}

// JXLParams tunes the JPEG XL backend.
type JXLParams struct {
	Effort int // 1-9 encoder effort; 0 = backend default
}
