// Package imageenc turns raw photos into base64 data URIs and back.
package imageenc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// AdvisoryMaxBytes is the documented upload limit ("up to 10MB"). It is not enforced.
const AdvisoryMaxBytes = 10 << 20

var (
	// ErrNotImage is returned for any payload whose MIME type is not image/*.
	ErrNotImage = errors.New("please select an image file")
	// ErrInvalidDataURI is returned by Decode for malformed input.
	ErrInvalidDataURI = errors.New("invalid data URI")
)

// Encode builds "data:<mime>;base64,<payload>". When declaredMIME is empty
// the type is sniffed from the content.
func Encode(data []byte, declaredMIME string) (string, error) {
	mt := declaredMIME
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	mt, err := mediaType(mt)
	if err != nil {
		return "", err
	}
	if !IsImageMIME(mt) {
		return "", fmt.Errorf("%w: got %s", ErrNotImage, mt)
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// EncodeFile reads path and encodes it. The MIME type comes from the file
// extension, falling back to content sniffing.
func EncodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Encode(data, mimeFromExt(path))
}

// Decode splits a data URI into its MIME type and raw bytes.
func Decode(dataURI string) (string, []byte, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return "", nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(dataURI, "data:"), ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mt, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mt, data, nil
}

// IsImageMIME reports whether mt is an image/* type.
func IsImageMIME(mt string) bool {
	return strings.HasPrefix(strings.ToLower(mt), "image/")
}

// Oversized reports whether n exceeds the advisory limit.
func Oversized(n int) bool {
	return n > AdvisoryMaxBytes
}

func mediaType(mt string) (string, error) {
	parsed, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotImage, mt)
	}
	return parsed, nil
}

func mimeFromExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".heic":
		return "image/heic"
	case "":
		return ""
	}
	return mime.TypeByExtension(ext)
}
