// Package media defines the preprocessed input model shared by all
// detectors, plus the media router that sniffs the media type of raw
// uploads.
package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// MediaType classifies the input signal at the container level.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeText  MediaType = "text"
)

// Frame is one decoded video frame (or a single still image) in 8-bit
// grayscale. Detectors that need color read the metadata for the source
// format; the pipeline itself operates on luminance.
type Frame struct {
	Width  int
	Height int
	// Pix holds Width*Height luminance samples, row-major.
	Pix []uint8
}

// Luma returns the luminance sample at (x, y). Out-of-range coordinates
// return 0 so detectors can sample borders without guarding.
func (f *Frame) Luma(x, y int) uint8 {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0
	}
	return f.Pix[y*f.Width+x]
}

// DetectorInput is the immutable, preprocessed view of one media item.
// It is shared read-only across all concurrently running detectors and
// must never be mutated after construction.
type DetectorInput struct {
	Type MediaType

	// Frames is the ordered sequence of decoded frames. A still image is
	// a single-frame sequence.
	Frames []Frame

	// Audio is the decoded mono waveform in [-1, 1], empty when the input
	// has no audio track.
	Audio      []float64
	SampleRate int

	// Text is extracted text (OCR, subtitles, or the raw document for
	// text media), already NFKC-normalized by the preprocessor.
	Text string

	// Metadata carries container-level facts: codec, duration_ms,
	// resolution, filename. Read-only.
	Metadata map[string]string
}

// HasFrames reports whether any visual signal is present.
func (in *DetectorInput) HasFrames() bool { return len(in.Frames) > 0 }

// HasAudio reports whether a decoded waveform is present.
func (in *DetectorInput) HasAudio() bool { return len(in.Audio) > 0 }

// HasText reports whether extracted text is present.
func (in *DetectorInput) HasText() bool { return strings.TrimSpace(in.Text) != "" }

// extMap routes by extension when MIME sniffing is inconclusive.
var extMap = map[string]MediaType{
	"mp4": MediaTypeVideo, "avi": MediaTypeVideo, "mov": MediaTypeVideo,
	"mkv": MediaTypeVideo, "webm": MediaTypeVideo,
	"jpg": MediaTypeImage, "jpeg": MediaTypeImage, "png": MediaTypeImage,
	"webp": MediaTypeImage, "bmp": MediaTypeImage, "gif": MediaTypeImage,
	"mp3": MediaTypeAudio, "wav": MediaTypeAudio, "flac": MediaTypeAudio,
	"ogg": MediaTypeAudio,
	"txt": MediaTypeText, "md": MediaTypeText,
}

// DetectMediaType resolves the media type from an explicit hint, the
// filename's MIME type, or the extension, in that order. Unknown inputs
// default to image, the most common upload.
func DetectMediaType(filename, hint string) MediaType {
	switch MediaType(hint) {
	case MediaTypeImage, MediaTypeVideo, MediaTypeAudio, MediaTypeText:
		return MediaType(hint)
	}

	if mt := mime.TypeByExtension(filepath.Ext(filename)); mt != "" {
		switch {
		case strings.HasPrefix(mt, "video/"):
			return MediaTypeVideo
		case strings.HasPrefix(mt, "image/"):
			return MediaTypeImage
		case strings.HasPrefix(mt, "audio/"):
			return MediaTypeAudio
		case strings.HasPrefix(mt, "text/"):
			return MediaTypeText
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if t, ok := extMap[ext]; ok {
		return t
	}
	return MediaTypeImage
}
