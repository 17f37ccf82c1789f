// Package types defines the JSON bodies exchanged with the relay: the
// uniform error envelope, sibling registration payloads and admin
// responses.
package types
