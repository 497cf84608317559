package services

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"

	// Registers the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

const (
	maxPassportPhotoBytes = 5 << 20
	passportPhotoWidth    = 300
	passportPhotoHeight   = 360
	passportPhotoQuality  = 85
	maxPhotoSide          = 8000
	maxPhotoPixels        = 40_000_000
	jpegDataURIPrefix     = "data:image/jpeg;base64,"
)

var allowedPhotoTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// NormalizePassportPhoto decodes a base64 payload or data URI, bounds it to 300x360 and returns a
// JPEG data URI. An empty input yields an empty result.
func NormalizePassportPhoto(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.HasPrefix(raw, "data:") {
		comma := strings.IndexByte(raw, ',')
		if comma < 0 || !strings.Contains(raw[:comma], ";base64") {
			return "", newValidationError("passportPhoto", "invalid passport photo encoding")
		}
		raw = raw[comma+1:]
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > maxPassportPhotoBytes+3 {
		return "", newValidationError("passportPhoto", "passport photo must be at most 5 MiB")
	}

	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", newValidationError("passportPhoto", "invalid passport photo encoding")
	}
	if len(payload) > maxPassportPhotoBytes {
		return "", newValidationError("passportPhoto", "passport photo must be at most 5 MiB")
	}
	if _, ok := allowedPhotoTypes[http.DetectContentType(payload)]; !ok {
		return "", newValidationError("passportPhoto", "passport photo must be a JPEG, PNG or WebP image")
	}

	// Header dimensions are checked before the full decode allocates the pixel buffer.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return "", newValidationError("passportPhoto", "passport photo could not be decoded")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPhotoSide || cfg.Height > maxPhotoSide ||
		cfg.Width*cfg.Height > maxPhotoPixels {
		return "", newValidationError("passportPhoto", "passport photo dimensions are too large")
	}

	img, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true))
	if err != nil {
		return "", newValidationError("passportPhoto", "passport photo could not be decoded")
	}
	bounds := img.Bounds()
	if bounds.Dx() > passportPhotoWidth || bounds.Dy() > passportPhotoHeight {
		img = imaging.Fit(img, passportPhotoWidth, passportPhotoHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: passportPhotoQuality}); err != nil {
		return "", &RenderError{Message: "passport photo encoding failed", Err: err}
	}
	return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
