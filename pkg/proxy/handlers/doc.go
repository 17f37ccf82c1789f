// Package handlers implements the relay's HTTP endpoints.
//
// # Downloads
//
// DownloadHandler serves GET /{token}/{filename}. Each request moves through
// a fixed sequence and stops at the first failure:
//
//  1. parse the path (400 on a malformed token)
//  2. resolve the token in the link cache (404 for unknown and expired alike)
//  3. build the upstream request with the owning document adapter
//  4. wait for the rate limiter (held up to max_hold, then 429)
//  5. fetch upstream with the server-held credential (one retry on 5xx)
//  6. stream the body with Content-Disposition: attachment
//
// Resolution never mutates the stored link. A rate-limit slot is recorded
// only when the document GET is about to happen, so a client that
// disconnects while waiting consumes nothing. Looking up a missing download
// URL takes no slot.
//
// # Registration
//
// RegisterHandler serves POST /register/{source}. Sibling servers push a
// document descriptor authenticated by a short-lived HS256 service token
// and receive a link served by this hub.
//
// # Admin
//
// AdminHandler exposes link cache statistics, an on-demand sweep and the
// rate limiter state.
//
// Every failure is written as
//
//	{"error": {"status": 404, "message": "link not found or expired", "request_id": "..."}}
//
// with no internal detail. Operators get the cause from the logs.
package handlers
