package pipeline

import "github.com/imazen/zencodecs/core"

// QualityPreset names tiers of approximately equal perceptual quality across
// formats.  Each tier maps to per-format quality values through a fixed
// table; the numbers are calibration constants, not computed at call time.
//
//	| Preset       | JPEG | WebP/JXL | AVIF | PNG/GIF/BMP |
//	|--------------|------|----------|------|-------------|
//	| Lossless     | 100  | lossless | lossless | lossless |
//	| NearLossless | 97   | 95       | 95   | lossless    |
//	| HighQuality  | 90   | 90       | 85   | lossless    |
//	| Balanced     | 80   | 80       | 70   | lossless    |
//	| SmallFile    | 60   | 60       | 45   | lossless    |
type QualityPreset int

const (
	PresetLossless QualityPreset = iota
	PresetNearLossless
	PresetHighQuality
	PresetBalanced
	PresetSmallFile
)

// ForFormat maps the preset to a (unified quality, lossless) pair for the
// given format.  Always-lossless formats ignore the tier entirely.  A
// lossless preset against JPEG yields maximum quality rather than an error;
// explicit lossless *requests* on JPEG still fail at the adapter.
func (p QualityPreset) ForFormat(f core.Format) (quality int, lossless bool) {
	if !f.SupportsLossy() {
		return 0, true
	}
	switch p {
	case PresetLossless:
		if f.SupportsLossless() {
			return 0, true
		}
		return 100, false
	case PresetNearLossless:
		return 97, false
	case PresetHighQuality:
		return 90, false
	case PresetBalanced:
		return 80, false
	case PresetSmallFile:
		return 60, false
	}
	return 80, false
}

// avifCurve anchors the unified-to-native mapping for AVIF.  The AV1
// quantizer bites harder than JPEG's at the same nominal number, so equal
// perceptual tiers sit lower on the native scale.  Points are monotonic;
// values between anchors interpolate linearly.
var avifCurve = [...][2]int{{0, 0}, {60, 45}, {80, 70}, {90, 85}, {97, 95}, {100, 100}}

// NativeQuality maps the unified 0-100 quality scale onto the format's
// native scale.  JPEG and WebP use 0-100 natively, so the mapping is the
// identity.  Formats without a quality concept return 0.
func NativeQuality(f core.Format, unified int) int {
	if unified < 0 {
		unified = 0
	}
	if unified > 100 {
		unified = 100
	}
	switch f {
	case core.FormatJPEG, core.FormatWebP, core.FormatJXL:
		return unified
	case core.FormatAVIF:
		return interpolate(avifCurve[:], unified)
	}
	return 0
}

func interpolate(curve [][2]int, x int) int {
	for i := 1; i < len(curve); i++ {
		x0, y0 := curve[i-1][0], curve[i-1][1]
		x1, y1 := curve[i][0], curve[i][1]
		if x <= x1 {
			if x1 == x0 {
				return y1
			}
			return y0 + (x-x0)*(y1-y0)/(x1-x0)
		}
	}
	return curve[len(curve)-1][1]
}
