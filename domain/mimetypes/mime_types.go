package mimetypes

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type MIME string

const OctetStream MIME = "application/octet-stream"

// Detect returns the media type of data, parameters included.
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// ContentType is the header value stored objects are served with.
func ContentType(data []byte) string {
	if len(data) == 0 {
		return string(OctetStream)
	}
	return Detect(data)
}

// IsImage reports whether the detected media type is any image/* type.
func IsImage(detected string) bool {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/")
}
