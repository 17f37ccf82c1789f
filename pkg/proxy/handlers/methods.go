package handlers

import (
	"net/http"
	"strings"

	"pfw-hq/relay/pkg/proxy/middleware"
	"pfw-hq/relay/pkg/proxy/types"
)

// allowMethods writes a JSON 405 unless r uses one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	types.WriteError(w, http.StatusMethodNotAllowed, types.MessageMethod, middleware.GetRequestID(r.Context()))
	return false
}
