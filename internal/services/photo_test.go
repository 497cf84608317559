package services

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encodedPNG(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func decodeJPEGDataURI(t *testing.T, dataURI string) image.Image {
	t.Helper()
	if !strings.HasPrefix(dataURI, jpegDataURIPrefix) {
		t.Fatalf("expected jpeg data uri, got %q", dataURI[:24])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, jpegDataURIPrefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	return img
}

func TestNormalizePassportPhotoDownscales(t *testing.T) {
	dataURI, err := NormalizePassportPhoto("data:image/png;base64," + encodedPNG(t, 600, 600))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	bounds := decodeJPEGDataURI(t, dataURI).Bounds()
	if bounds.Dx() != 300 || bounds.Dy() != 300 {
		t.Fatalf("expected 300x300, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestNormalizePassportPhotoKeepsSmallImages(t *testing.T) {
	dataURI, err := NormalizePassportPhoto(encodedPNG(t, 120, 160))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	bounds := decodeJPEGDataURI(t, dataURI).Bounds()
	if bounds.Dx() != 120 || bounds.Dy() != 160 {
		t.Fatalf("expected 120x160, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestNormalizePassportPhotoEmpty(t *testing.T) {
	dataURI, err := NormalizePassportPhoto("  ")
	if err != nil || dataURI != "" {
		t.Fatalf("expected empty result, got %q, %v", dataURI, err)
	}
}

func TestNormalizePassportPhotoRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"not base64": "data:image/png;base64,***",
		"no comma":   "data:image/png;base64",
		"gif":        base64.StdEncoding.EncodeToString([]byte("GIF89a......")),
		"plain text": base64.StdEncoding.EncodeToString([]byte("hello world")),
		"too large":  base64.StdEncoding.EncodeToString(make([]byte, maxPassportPhotoBytes+1)),
		"bad png":    base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\ngarbage")),
	}
	for name, input := range cases {
		_, err := NormalizePassportPhoto(input)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

// pngDeclaring returns a small PNG whose header claims the given dimensions.
func pngDeclaring(t *testing.T, width, height uint32) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	raw := buf.Bytes()
	binary.BigEndian.PutUint32(raw[16:20], width)
	binary.BigEndian.PutUint32(raw[20:24], height)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))
	return base64.StdEncoding.EncodeToString(raw)
}

func TestNormalizePassportPhotoRejectsOversizedDimensions(t *testing.T) {
	var wide bytes.Buffer
	if err := png.Encode(&wide, image.NewGray(image.Rect(0, 0, 9000, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	cases := map[string]string{
		"wide strip":      base64.StdEncoding.EncodeToString(wide.Bytes()),
		"declared 60000":  pngDeclaring(t, 60000, 60000),
		"declared pixels": pngDeclaring(t, 7000, 7000),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizePassportPhoto(payload)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if vErr.Field != "passportPhoto" || !strings.Contains(vErr.Message, "dimensions") {
				t.Fatalf("unexpected validation error %+v", vErr)
			}
		})
	}
}
