package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys. Tokens are never recorded; only their fingerprint.
const (
	AttrSource      = attribute.Key("pfw.source")
	AttrDocumentID  = attribute.Key("pfw.document_id")
	AttrRefKey      = attribute.Key("pfw.ref_key")
	AttrTokenFP     = attribute.Key("pfw.token_fingerprint")
	AttrWaitMS      = attribute.Key("pfw.ratelimit.wait_ms")
	AttrAttempt     = attribute.Key("pfw.upstream.attempt")
	AttrUpstreamURL = attribute.Key("pfw.upstream.host")
	AttrStatusCode  = attribute.Key("http.response.status_code")
)
