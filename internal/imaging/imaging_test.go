package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestProcessAvatarCropsToSquare(t *testing.T) {
	data := encodeJPEG(solid(800, 400, color.RGBA{255, 0, 0, 255}))

	avatar, err := ProcessAvatar(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ProcessAvatar: %v", err)
	}
	if avatar.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", avatar.MIME)
	}

	w, h := decodeSize(t, avatar.Data)
	if w != AvatarSize || h != AvatarSize {
		t.Errorf("expected %dx%d, got %dx%d", AvatarSize, AvatarSize, w, h)
	}
}

func TestProcessAvatarKeepsSmallImages(t *testing.T) {
	data := encodePNG(solid(60, 100, color.RGBA{0, 0, 255, 255}))

	avatar, err := ProcessAvatar(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ProcessAvatar: %v", err)
	}

	w, h := decodeSize(t, avatar.Data)
	if w != 60 || h != 60 {
		t.Errorf("expected 60x60, got %dx%d", w, h)
	}
}

func TestProcessAvatarTransparentBecomesWhite(t *testing.T) {
	data := encodePNG(solid(10, 10, color.RGBA{0, 0, 0, 0}))

	avatar, err := ProcessAvatar(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ProcessAvatar: %v", err)
	}
	img, _ := jpeg.Decode(bytes.NewReader(avatar.Data))
	r, g, b, _ := img.At(5, 5).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("expected near-white pixel, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestProcessAvatarRejectsUnsupported(t *testing.T) {
	_, err := ProcessAvatar(bytes.NewReader([]byte("GIF89a not really an image")))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestProcessAvatarRejectsOversize(t *testing.T) {
	data := make([]byte, MaxUploadBytes+10)
	copy(data, []byte("\xff\xd8\xff"))

	_, err := ProcessAvatar(bytes.NewReader(data))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestSquareCrop(t *testing.T) {
	tests := []struct {
		in   image.Rectangle
		want image.Rectangle
	}{
		{image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10)},
		{image.Rect(0, 0, 20, 10), image.Rect(5, 0, 15, 10)},
		{image.Rect(0, 0, 10, 30), image.Rect(0, 10, 10, 20)},
	}
	for _, tt := range tests {
		if got := squareCrop(tt.in); got != tt.want {
			t.Errorf("squareCrop(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
