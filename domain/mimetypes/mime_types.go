package mimetypes

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Family groups mime types the way chat messages are tagged.
type Family string

const (
	Unknown  Family = "unknown"
	Image    Family = "image"
	Video    Family = "video"
	Audio    Family = "audio"
	Document Family = "document"
)

// Normalize strips parameters ("; charset=utf-8") and lowercases the type.
func Normalize(declared string) (string, error) {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", err
	}
	return strings.ToLower(mt), nil
}

// Classify resolves a declared mime type against the known mime tree and
// returns its family. Types the detector does not know are rejected.
func Classify(declared string) (Family, error) {
	mt, err := Normalize(declared)
	if err != nil {
		return Unknown, fmt.Errorf("malformed mime type %q: %w", declared, err)
	}
	known := mimetype.Lookup(mt)
	if known == nil {
		return Unknown, fmt.Errorf("unsupported mime type %q", mt)
	}

	switch top, _, _ := strings.Cut(known.String(), "/"); top {
	case "image":
		return Image, nil
	case "video":
		return Video, nil
	case "audio":
		return Audio, nil
	default:
		return Document, nil
	}
}
