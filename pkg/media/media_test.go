package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestDetectMediaTypeHintWins(t *testing.T) {
	if got := DetectMediaType("clip.mp4", "audio"); got != MediaTypeAudio {
		t.Fatalf("explicit hint must win over extension, got %s", got)
	}
	if got := DetectMediaType("clip.mp4", "bogus"); got != MediaTypeVideo {
		t.Fatalf("invalid hint must fall through to sniffing, got %s", got)
	}
}

func TestDetectMediaTypeByExtension(t *testing.T) {
	cases := []struct {
		filename string
		want     MediaType
	}{
		{"face.jpg", MediaTypeImage},
		{"face.PNG", MediaTypeImage},
		{"speech.wav", MediaTypeAudio},
		{"clip.webm", MediaTypeVideo},
		{"article.txt", MediaTypeText},
		{"mystery.bin", MediaTypeImage}, // unknown defaults to image
	}
	for _, tc := range cases {
		if got := DetectMediaType(tc.filename, ""); got != tc.want {
			t.Errorf("DetectMediaType(%q) = %s, want %s", tc.filename, got, tc.want)
		}
	}
}

func TestFrameLumaBounds(t *testing.T) {
	f := Frame{Width: 2, Height: 2, Pix: []uint8{1, 2, 3, 4}}
	if f.Luma(1, 1) != 4 {
		t.Fatalf("Luma(1,1) = %d, want 4", f.Luma(1, 1))
	}
	for _, xy := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 2}} {
		if f.Luma(xy[0], xy[1]) != 0 {
			t.Fatalf("out-of-range Luma(%d,%d) must be 0", xy[0], xy[1])
		}
	}
}

func pngBytes(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPreprocessImageDecodesLuma(t *testing.T) {
	content := pngBytes(t, 8, 6, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	in, err := Preprocess(content, "white.png", "")
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	if in.Type != MediaTypeImage || len(in.Frames) != 1 {
		t.Fatalf("expected one image frame, got type=%s frames=%d", in.Type, len(in.Frames))
	}
	f := in.Frames[0]
	if f.Width != 8 || f.Height != 6 {
		t.Fatalf("frame dimensions %dx%d, want 8x6", f.Width, f.Height)
	}
	// White decodes to maximum luminance.
	if f.Luma(3, 3) < 250 {
		t.Fatalf("white pixel luma %d, want ~255", f.Luma(3, 3))
	}
	if in.Metadata["codec"] != "png" || in.Metadata["resolution"] != "8x6" {
		t.Fatalf("metadata wrong: %v", in.Metadata)
	}
}

func TestPreprocessRejectsCorruptImage(t *testing.T) {
	if _, err := Preprocess([]byte("not an image"), "face.png", ""); err == nil {
		t.Fatal("corrupt image bytes must error")
	}
}

func TestPreprocessTextNormalizesNFKC(t *testing.T) {
	// U+FF41 (fullwidth a) normalizes to plain 'a'; ligature ﬁ to "fi".
	in, err := Preprocess([]byte("ａ ﬁ"), "note.txt", "")
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	if in.Text != "a fi" {
		t.Fatalf("NFKC normalization wrong: %q", in.Text)
	}
}

func TestPreprocessRejectsInvalidUTF8(t *testing.T) {
	if _, err := Preprocess([]byte{0xff, 0xfe, 0xfd}, "note.txt", ""); err == nil {
		t.Fatal("invalid UTF-8 text must error")
	}
}

func TestPreprocessVideoKeepsMetadataOnly(t *testing.T) {
	in, err := Preprocess([]byte{0x00, 0x01}, "clip.mp4", "")
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	if in.Type != MediaTypeVideo {
		t.Fatalf("expected video, got %s", in.Type)
	}
	if in.HasFrames() || in.HasAudio() || in.HasText() {
		t.Fatal("container passthrough must not invent signals")
	}
	if in.Metadata["filename"] != "clip.mp4" {
		t.Fatalf("metadata missing filename: %v", in.Metadata)
	}
}
