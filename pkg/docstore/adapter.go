package docstore

import (
	"errors"
	"fmt"
	"sort"

	"pfw-hq/relay/pkg/linkcache"
)

var (
	// ErrInvalidReference means a descriptor cannot be turned into a fetch.
	ErrInvalidReference = errors.New("invalid document reference")

	// ErrUnknownSource means no adapter owns the source system.
	ErrUnknownSource = errors.New("unknown source system")
)

// FetchSpec tells the upstream client what to request.
type FetchSpec struct {
	// URL is the absolute upstream URL. Empty when Locate is set.
	URL string

	// Accept is sent as the Accept header.
	Accept string

	// Locate asks the upstream client to look the download URL up in the
	// application's document list before fetching.
	Locate *LocateRequest
}

// LocateRequest identifies a document inside an application's document bag.
type LocateRequest struct {
	ApplicationNumber string
	DocumentID        string

	// MimeType selects the download option, e.g. "PDF".
	MimeType string
}

// Adapter owns the descriptors of one source system.
type Adapter interface {
	// Source is the tag stored on tokens this adapter owns.
	Source() linkcache.SourceSystem

	// CanHandle reports whether this adapter owns source.
	CanHandle(source linkcache.SourceSystem) bool

	// Validate checks a descriptor before a token is issued for it.
	Validate(ref linkcache.DocumentRef) error

	// PrepareFetch builds the upstream request for ref. It fails with
	// ErrInvalidReference when ref cannot be fetched.
	PrepareFetch(ref linkcache.DocumentRef, hint linkcache.ContentHint) (FetchSpec, error)

	// DefaultFilename builds a display name when the caller supplied none.
	DefaultFilename(ref linkcache.DocumentRef) string
}

// Router dispatches by source system.
type Router struct {
	adapters []Adapter
}

// NewRouter creates a router over adapters. Earlier adapters win.
func NewRouter(adapters ...Adapter) *Router {
	return &Router{adapters: adapters}
}

// For returns the adapter owning source.
func (r *Router) For(source linkcache.SourceSystem) (Adapter, error) {
	for _, a := range r.adapters {
		if a.CanHandle(source) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
}

// Registered returns the registered adapter owning source, if any.
func (r *Router) Registered(source linkcache.SourceSystem) (*RegisteredAdapter, bool) {
	a, err := r.For(source)
	if err != nil {
		return nil, false
	}
	reg, ok := a.(*RegisteredAdapter)
	return reg, ok
}

// PrepareFetch routes to the owning adapter. An unknown source is an
// invalid reference from the caller's point of view.
func (r *Router) PrepareFetch(source linkcache.SourceSystem, ref linkcache.DocumentRef, hint linkcache.ContentHint) (FetchSpec, error) {
	a, err := r.For(source)
	if err != nil {
		return FetchSpec{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return a.PrepareFetch(ref, hint)
}

// Sources lists the source systems with an adapter, sorted.
func (r *Router) Sources() []linkcache.SourceSystem {
	out := make([]linkcache.SourceSystem, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.Source())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func acceptFor(hint linkcache.ContentHint) string {
	if hint == "" {
		return string(linkcache.ContentPDF)
	}
	return string(hint)
}
