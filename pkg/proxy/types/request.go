package types

import (
	"strings"

	"pfw-hq/relay/pkg/linkcache"
)

// RegistrationRequest is the body of POST /register/{source}.
type RegistrationRequest struct {
	Key         string            `json:"key"`
	DocumentID  string            `json:"document_id"`
	DownloadURL string            `json:"download_url"`
	Filename    string            `json:"filename,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Validate checks required fields. Shape rules belong to the adapter.
func (r *RegistrationRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Key) == "":
		return &FieldError{Field: "key"}
	case strings.TrimSpace(r.DocumentID) == "":
		return &FieldError{Field: "document_id"}
	case strings.TrimSpace(r.DownloadURL) == "":
		return &FieldError{Field: "download_url"}
	}
	return nil
}

// Ref converts the request to a document reference.
func (r *RegistrationRequest) Ref() linkcache.DocumentRef {
	return linkcache.DocumentRef{
		Key:         strings.TrimSpace(r.Key),
		DocumentID:  strings.TrimSpace(r.DocumentID),
		DownloadURL: strings.TrimSpace(r.DownloadURL),
		Attributes:  r.Attributes,
	}
}

// Hint returns the content hint, defaulting to PDF.
func (r *RegistrationRequest) Hint() linkcache.ContentHint {
	if r.ContentType == "" {
		return linkcache.ContentPDF
	}
	return linkcache.ContentHint(r.ContentType)
}

// FieldError names a missing required field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + " is required"
}
