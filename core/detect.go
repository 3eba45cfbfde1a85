package core

import "strings"

// maxSniffBytes bounds how much of an untrusted input Detect inspects.
const maxSniffBytes = 16

// Detect classifies raw bytes by magic signature.  It inspects at most a
// small fixed prefix, never allocates, and returns FormatUnknown when no
// signature matches.
func Detect(data []byte) Format {
	if len(data) > maxSniffBytes {
		data = data[:maxSniffBytes]
	}

	// JPEG: FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return FormatJPEG
	}

	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return FormatPNG
	}

	// GIF: "GIF87a" or "GIF89a"
	if len(data) >= 6 &&
		data[0] == 'G' && data[1] == 'I' && data[2] == 'F' && data[3] == '8' &&
		(data[4] == '7' || data[4] == '9') && data[5] == 'a' {
		return FormatGIF
	}

	// WebP: "RIFF....WEBP"
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return FormatWebP
	}

	// AVIF: ISOBMFF ftyp box with an avif/avis major brand.
	if len(data) >= 12 &&
		data[4] == 'f' && data[5] == 't' && data[6] == 'y' && data[7] == 'p' &&
		data[8] == 'a' && data[9] == 'v' && data[10] == 'i' &&
		(data[11] == 'f' || data[11] == 's') {
		return FormatAVIF
	}

	// JXL container: 00 00 00 0C "JXL " 0D 0A 87 0A
	if len(data) >= 12 &&
		data[0] == 0x00 && data[1] == 0x00 && data[2] == 0x00 && data[3] == 0x0C &&
		data[4] == 'J' && data[5] == 'X' && data[6] == 'L' && data[7] == ' ' &&
		data[8] == 0x0D && data[9] == 0x0A && data[10] == 0x87 && data[11] == 0x0A {
		return FormatJXL
	}

	// JXL bare codestream: FF 0A.  Distinct from JPEG's FF D8 FF.
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0x0A {
		return FormatJXL
	}

	// BMP: "BM".  Checked last: two bytes is a weak signature.
	if len(data) >= 2 && data[0] == 'B' && data[1] == 'M' {
		return FormatBMP
	}

	return FormatUnknown
}

// FromExtension looks up a format by file extension, case-insensitively.
// A leading dot is tolerated.  Used as a fallback when magic-byte detection
// is unavailable, e.g. for streaming input that has not been buffered yet.
func FromExtension(ext string) Format {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, f := range allFormats {
		for _, e := range f.Extensions() {
			if ext == e {
				return f
			}
		}
	}
	return FormatUnknown
}
