// Package docstore turns stored document descriptors back into upstream
// fetch requests.
//
// Each source system (the native file wrapper store, petition decisions,
// trial and appeal board) owns an Adapter. The proxy never interprets a
// descriptor itself; it asks the Router for the adapter that owns the
// token's source and lets it build a FetchSpec:
//
//	router := docstore.NewRouter(
//	    docstore.NewNativeAdapter(baseURL, hosts),
//	    docstore.NewFPDAdapter(cache, hosts),
//	    docstore.NewPTABAdapter(cache, hosts),
//	)
//	spec, err := router.PrepareFetch(tok.SourceSystem, tok.Ref, tok.ContentHint)
//
// Registered adapters additionally accept descriptors pushed by sibling
// servers ahead of time and issue tokens for them under their own tag.
package docstore
