package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pfw-hq/relay/pkg/linkcache"
)

var (
	proceedingNumber = regexp.MustCompile(`^(IPR|PGR|CBM|DER)\d{4}-\d{5}$`)
	appealNumber     = regexp.MustCompile(`^\d{10}$`)
)

// Registration is a descriptor pushed by a sibling server.
type Registration struct {
	Ref             linkcache.DocumentRef
	DisplayFilename string
	ContentHint     linkcache.ContentHint
}

// RegisteredAdapter owns documents from a sibling server. Siblings push
// descriptors ahead of time through Register; the cache row doubles as the
// adapter's registry.
type RegisteredAdapter struct {
	source   linkcache.SourceSystem
	cache    *linkcache.Cache
	hosts    HostPolicy
	validKey func(string) bool
	filename func(linkcache.DocumentRef) string

	// mu serializes lookup and issue so one document gets one live token
	// per process.
	mu sync.Mutex
}

// NewFPDAdapter creates the adapter for petition decision documents.
// Keys are petition UUIDs.
func NewFPDAdapter(cache *linkcache.Cache, hosts HostPolicy) *RegisteredAdapter {
	return &RegisteredAdapter{
		source: linkcache.SourceFPD,
		cache:  cache,
		hosts:  hosts,
		validKey: func(k string) bool {
			_, err := uuid.Parse(k)
			return err == nil
		},
		filename: func(ref linkcache.DocumentRef) string {
			prefix := ref.Key
			if len(prefix) > 8 {
				prefix = prefix[:8]
			}
			return joinFilename(linkcache.ContentPDF, prefix, ref.Attr("application_number"), ref.DocumentID)
		},
	}
}

// NewPTABAdapter creates the adapter for trial and appeal board documents.
// Keys are proceeding numbers (IPR2024-00123) or 10 digit appeal numbers.
func NewPTABAdapter(cache *linkcache.Cache, hosts HostPolicy) *RegisteredAdapter {
	return &RegisteredAdapter{
		source: linkcache.SourcePTAB,
		cache:  cache,
		hosts:  hosts,
		validKey: func(k string) bool {
			return proceedingNumber.MatchString(k) || appealNumber.MatchString(k)
		},
		filename: func(ref linkcache.DocumentRef) string {
			patent := ""
			if p := ref.Attr("patent_number"); p != "" {
				patent = "PAT-" + p
			}
			return joinFilename(linkcache.ContentPDF, ref.Key, patent, ref.DocumentID)
		},
	}
}

// Source implements Adapter.
func (a *RegisteredAdapter) Source() linkcache.SourceSystem { return a.source }

// CanHandle implements Adapter.
func (a *RegisteredAdapter) CanHandle(source linkcache.SourceSystem) bool {
	return source == a.source
}

// Validate implements Adapter. Registered descriptors must carry an
// allowed download URL since the hub cannot derive one.
func (a *RegisteredAdapter) Validate(ref linkcache.DocumentRef) error {
	if !a.validKey(ref.Key) {
		return fmt.Errorf("%w: malformed %s identifier %q", ErrInvalidReference, a.source, ref.Key)
	}
	if !documentID.MatchString(ref.DocumentID) {
		return fmt.Errorf("%w: malformed document identifier", ErrInvalidReference)
	}
	if ref.DownloadURL == "" {
		return fmt.Errorf("%w: download url is required", ErrInvalidReference)
	}
	_, err := a.hosts.Check(ref.DownloadURL)
	return err
}

// PrepareFetch implements Adapter.
func (a *RegisteredAdapter) PrepareFetch(ref linkcache.DocumentRef, hint linkcache.ContentHint) (FetchSpec, error) {
	if err := a.Validate(ref); err != nil {
		return FetchSpec{}, err
	}
	return FetchSpec{URL: ref.DownloadURL, Accept: acceptFor(hint)}, nil
}

// DefaultFilename implements Adapter.
func (a *RegisteredAdapter) DefaultFilename(ref linkcache.DocumentRef) string {
	return a.filename(ref)
}

// Register validates reg and issues a token under this adapter's source.
// A live token already issued for the same document is returned instead,
// with reused set.
func (a *RegisteredAdapter) Register(ctx context.Context, reg Registration) (tok *linkcache.DownloadToken, reused bool, err error) {
	reg.Ref.Key = strings.TrimSpace(reg.Ref.Key)
	if err := a.Validate(reg.Ref); err != nil {
		return nil, false, err
	}
	hint, err := CheckContentHint(reg.ContentHint)
	if err != nil {
		return nil, false, err
	}

	filename := reg.DisplayFilename
	if filename != "" {
		if len(filename) > MaxFilenameLength || !registeredFilename.MatchString(filename) {
			return nil, false, fmt.Errorf("%w: invalid filename", ErrInvalidReference)
		}
	} else {
		filename = a.DefaultFilename(reg.Ref)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.cache.FindByRef(ctx, a.source, reg.Ref)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, linkcache.ErrNotFound) {
		return nil, false, err
	}

	tok, err = a.cache.Issue(ctx, linkcache.IssueRequest{
		Source:          a.source,
		Ref:             reg.Ref,
		DisplayFilename: filename,
		ContentHint:     hint,
	})
	if err != nil {
		return nil, false, err
	}
	return tok, false, nil
}
