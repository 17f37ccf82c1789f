/*
Package auth guards operator endpoints with a shared admin key.

The key is looked up through a KeySource on every request, so rotating
the underlying secret takes effect without a restart. Presented keys are
compared in constant time.

	validator := auth.NewKeyValidator("operator", mgr.Credential("admin-key"))
	mw := auth.NewAPIKeyMiddleware(validator, auth.DefaultSources())

	mux.Handle("/admin/", mw.Handle(adminHandler))

Inside a guarded handler the authenticated caller is available:

	info, ok := auth.GetAPIKeyInfo(r.Context())
*/
package auth
