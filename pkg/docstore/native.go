package docstore

import (
	"fmt"
	"regexp"
	"strings"

	"pfw-hq/relay/pkg/linkcache"
)

var (
	applicationNumber = regexp.MustCompile(`^(\d{8}|PCT[A-Z]{2}\d{9,10})$`)
	documentID        = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// NormalizeApplicationNumber strips separators ("16/123,456") and upper-cases.
func NormalizeApplicationNumber(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("/", "", ",", "", " ", "", "-", "").Replace(s)
}

// NativeAdapter serves the patent file wrapper's own documents. A
// descriptor is an application number plus document identifier; the
// download URL is optional and looked up when missing.
type NativeAdapter struct {
	baseURL string
	hosts   HostPolicy
}

// NewNativeAdapter creates the adapter for SourceSelf.
func NewNativeAdapter(baseURL string, hosts HostPolicy) *NativeAdapter {
	return &NativeAdapter{baseURL: strings.TrimRight(baseURL, "/"), hosts: hosts}
}

// Source implements Adapter.
func (a *NativeAdapter) Source() linkcache.SourceSystem { return linkcache.SourceSelf }

// CanHandle implements Adapter.
func (a *NativeAdapter) CanHandle(source linkcache.SourceSystem) bool {
	return source == linkcache.SourceSelf
}

// Validate implements Adapter.
func (a *NativeAdapter) Validate(ref linkcache.DocumentRef) error {
	if !applicationNumber.MatchString(NormalizeApplicationNumber(ref.Key)) {
		return fmt.Errorf("%w: malformed application number %q", ErrInvalidReference, ref.Key)
	}
	if !documentID.MatchString(ref.DocumentID) {
		return fmt.Errorf("%w: malformed document identifier", ErrInvalidReference)
	}
	if ref.DownloadURL != "" {
		if _, err := a.hosts.Check(ref.DownloadURL); err != nil {
			return err
		}
	}
	return nil
}

// PrepareFetch implements Adapter.
func (a *NativeAdapter) PrepareFetch(ref linkcache.DocumentRef, hint linkcache.ContentHint) (FetchSpec, error) {
	if err := a.Validate(ref); err != nil {
		return FetchSpec{}, err
	}

	spec := FetchSpec{Accept: acceptFor(hint)}
	if ref.DownloadURL != "" {
		spec.URL = ref.DownloadURL
		return spec, nil
	}

	spec.Locate = &LocateRequest{
		ApplicationNumber: NormalizeApplicationNumber(ref.Key),
		DocumentID:        ref.DocumentID,
		MimeType:          mimeIdentifier(hint),
	}
	return spec, nil
}

// DefaultFilename implements Adapter: APP_DOCID_CODE.pdf.
func (a *NativeAdapter) DefaultFilename(ref linkcache.DocumentRef) string {
	return joinFilename(linkcache.ContentPDF,
		NormalizeApplicationNumber(ref.Key), ref.DocumentID, ref.Attr("document_code"))
}

// mimeIdentifier maps a content hint to the upstream download option name.
func mimeIdentifier(hint linkcache.ContentHint) string {
	switch hint.Extension() {
	case ".xml":
		return "XML"
	case ".doc":
		return "MS_WORD"
	default:
		return "PDF"
	}
}
