package linkcache

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for unknown, expired and undecodable tokens alike.
	ErrNotFound = errors.New("link not found or expired")

	// ErrCollision is returned by a Backend when a live row already uses the digest.
	ErrCollision = errors.New("token digest collides with a live entry")
)

// SourceSystem tags which document store owns a token.
type SourceSystem string

const (
	// SourceSelf is the native patent file wrapper store.
	SourceSelf SourceSystem = "self"

	// SourceFPD is the final petition decisions sibling.
	SourceFPD SourceSystem = "fpd"

	// SourcePTAB is the trial and appeal board sibling.
	SourcePTAB SourceSystem = "ptab"
)

// ContentHint is the expected MIME type of the upstream document.
type ContentHint string

// ContentPDF is the default content hint.
const ContentPDF ContentHint = "application/pdf"

// Extension returns the filename extension implied by the hint, with dot.
func (h ContentHint) Extension() string {
	switch strings.ToLower(string(h)) {
	case "application/xml", "text/xml":
		return ".xml"
	case "application/zip":
		return ".zip"
	case "image/tiff":
		return ".tif"
	case "application/msword":
		return ".doc"
	default:
		return ".pdf"
	}
}

// DocumentRef identifies a document well enough for its owning adapter to
// rebuild the upstream request. The cache never interprets it.
type DocumentRef struct {
	// Key is the primary identifier in the owning store: an application
	// number, a petition UUID or a proceeding number.
	Key string `json:"key"`

	// DocumentID identifies the document within Key.
	DocumentID string `json:"document_id"`

	// DownloadURL is the absolute upstream URL, when known at issuance.
	DownloadURL string `json:"download_url,omitempty"`

	// Attributes carries cross references such as application_number,
	// patent_number or document_code.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the named attribute or "".
func (r DocumentRef) Attr(name string) string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes[name]
}

// NaturalKey identifies the referenced document independent of any token.
func (r DocumentRef) NaturalKey(source SourceSystem) string {
	return string(source) + "|" + r.Key + "|" + r.DocumentID
}

// DownloadToken is an issued link.
//
// Tokens are immutable once issued: resolving one never changes it.
type DownloadToken struct {
	Token           string       `json:"token"`
	SourceSystem    SourceSystem `json:"source_system"`
	Ref             DocumentRef  `json:"document_ref"`
	DisplayFilename string       `json:"display_filename"`
	ContentHint     ContentHint  `json:"content_hint"`
	CreatedAt       time.Time    `json:"created_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// Expired reports whether the token is no longer valid at now.
func (t *DownloadToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IssueRequest describes a link to issue.
type IssueRequest struct {
	Source          SourceSystem
	Ref             DocumentRef
	DisplayFilename string
	ContentHint     ContentHint

	// TTL overrides the cache default when positive.
	TTL time.Duration
}

// Stats summarizes the stored links.
type Stats struct {
	Total    int                  `json:"total"`
	Active   int                  `json:"active"`
	Expired  int                  `json:"expired"`
	BySource map[SourceSystem]int `json:"by_source"`
}

// Record is the persisted form of a DownloadToken.
type Record struct {
	// Digest is the hex SHA-256 of the token.
	Digest string

	Source SourceSystem

	// RefDigest is the hex SHA-256 of the document's natural key.
	RefDigest string

	// Payload is the JSON encoded DownloadToken, sealed when a Sealer is configured.
	Payload []byte

	CreatedAt time.Time
	ExpiresAt time.Time
}
