package docstore

import (
	"fmt"
	"net/url"
	"strings"
)

// HostPolicy restricts upstream URLs to HTTPS on known hosts, so the
// server-held credential is never sent anywhere else.
type HostPolicy struct {
	// Hosts are exact host names, or domain suffixes when they start with ".".
	Hosts []string
}

// DefaultHostPolicy allows api.uspto.gov and any uspto.gov subdomain.
func DefaultHostPolicy() HostPolicy {
	return HostPolicy{Hosts: []string{"api.uspto.gov", ".uspto.gov"}}
}

// Check parses raw and verifies scheme and host.
func (p HostPolicy) Check(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable url", ErrInvalidReference)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: url must use https", ErrInvalidReference)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: url must not carry credentials", ErrInvalidReference)
	}
	if !p.Allows(u.Hostname()) {
		return nil, fmt.Errorf("%w: host %q is not allowed", ErrInvalidReference, u.Hostname())
	}
	return u, nil
}

// Allows reports whether host matches the policy.
func (p HostPolicy) Allows(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, h := range p.Hosts {
		h = strings.ToLower(h)
		if strings.HasPrefix(h, ".") {
			if strings.HasSuffix(host, h) || host == h[1:] {
				return true
			}
			continue
		}
		if host == h {
			return true
		}
	}
	return false
}
