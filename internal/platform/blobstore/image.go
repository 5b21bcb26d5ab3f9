package blobstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxLogoSize is the largest clinic logo accepted, in bytes.
const MaxLogoSize = 2 * 1024 * 1024

var ErrInvalidContentType = errors.New("content type is not allowed")

// AllowedImageTypes lists the image MIME types accepted for clinic logos.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// CheckImage verifies that both the declared content type and the sniffed
// content of data are allowed image types and that size is within max. It
// returns the detected MIME type.
func CheckImage(declared string, data []byte, size, max int64) (string, error) {
	if size > max {
		return "", ErrFileTooLarge
	}
	if !AllowedImageTypes[normalizeType(declared)] {
		return "", fmt.Errorf("%w: declared %q", ErrInvalidContentType, declared)
	}
	detected := mimetype.Detect(data)
	if !AllowedImageTypes[normalizeType(detected.String())] {
		return "", fmt.Errorf("%w: detected %q", ErrInvalidContentType, detected.String())
	}
	return normalizeType(detected.String()), nil
}

func normalizeType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// Extension picks the object extension from the uploaded file name, falling
// back to the canonical extension of mimeType.
func Extension(fileName, mimeType string) string {
	if ext := strings.TrimPrefix(filepath.Ext(fileName), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if m := mimetype.Lookup(mimeType); m != nil {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return "bin"
}

// LogoKey returns the object key of a clinic logo:
// {dentistId}/{dentistId}-{unixMillis}.{ext}.
func LogoKey(dentistID uuid.UUID, at time.Time, ext string) string {
	id := dentistID.String()
	return fmt.Sprintf("%s/%s-%d.%s", id, id, at.UnixMilli(), ext)
}
