package docstore

import (
	"fmt"
	"mime"

	"pfw-hq/relay/pkg/linkcache"
)

var knownContent = map[string]bool{
	"application/pdf":    true,
	"application/xml":    true,
	"text/xml":           true,
	"application/zip":    true,
	"image/tiff":         true,
	"application/msword": true,
}

// CheckContentHint returns hint as a bare lower-case media type. Empty
// means PDF. Types the relay cannot name a file for are rejected with
// ErrInvalidReference.
func CheckContentHint(hint linkcache.ContentHint) (linkcache.ContentHint, error) {
	if hint == "" {
		return linkcache.ContentPDF, nil
	}
	mediaType, _, err := mime.ParseMediaType(string(hint))
	if err != nil {
		return "", fmt.Errorf("%w: malformed content type", ErrInvalidReference)
	}
	if !knownContent[mediaType] {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrInvalidReference, mediaType)
	}
	return linkcache.ContentHint(mediaType), nil
}
