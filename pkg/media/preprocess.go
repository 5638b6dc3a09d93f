package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Preprocess turns raw media bytes into a DetectorInput. This is the
// lightweight stand-in for the full preprocessing service: images are
// decoded to a single luminance frame, text is NFKC-normalized, audio
// and video are passed through with container metadata only (frame and
// waveform extraction for those formats is the decoder sidecar's job).
func Preprocess(content []byte, filename, hint string) (*DetectorInput, error) {
	mt := DetectMediaType(filename, hint)

	in := &DetectorInput{
		Type: mt,
		Metadata: map[string]string{
			"filename":   filename,
			"size_bytes": strconv.Itoa(len(content)),
		},
	}

	switch mt {
	case MediaTypeImage:
		frame, format, err := decodeFrame(content)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		in.Frames = []Frame{frame}
		in.Metadata["codec"] = format
		in.Metadata["resolution"] = fmt.Sprintf("%dx%d", frame.Width, frame.Height)

	case MediaTypeText:
		if !utf8.Valid(content) {
			return nil, fmt.Errorf("text input is not valid UTF-8")
		}
		in.Text = NormalizeText(string(content))

	case MediaTypeAudio, MediaTypeVideo:
		// Raw container bytes; the decoder sidecar populates frames and
		// waveform for these types. Keep metadata so detectors that only
		// need container facts still run.
		in.Metadata["codec"] = "unknown"
	}

	return in, nil
}

// NormalizeText applies NFKC so homoglyph and compatibility tricks do not
// split tokens before the text detectors see them.
func NormalizeText(s string) string {
	return norm.NFKC.String(s)
}

// decodeFrame decodes an image and converts it to a luminance frame.
func decodeFrame(content []byte) (Frame, string, error) {
	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return Frame{}, "", err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// BT.601 luma from 16-bit channels.
			l := (299*r + 587*g + 114*bl) / 1000
			pix[y*w+x] = uint8(l >> 8)
		}
	}
	return Frame{Width: w, Height: h, Pix: pix}, format, nil
}
