package middleware

import (
	"net/http"

	"github.com/ST2Projects/vision-runner/pkg/inference"
)

// legacyPaths maps the paths exposed by the original hosted demo onto the
// current API routes.
var legacyPaths = map[string]string{
	"/run/analyze_image": inference.APIPrefix + "/analyze",
	"/run/generate_tags": inference.APIPrefix + "/tags",
}

// LegacyAliasHandler rewrites legacy request paths onto their current
// equivalents before delegating to the wrapped handler.
type LegacyAliasHandler struct {
	Handler http.Handler
}

func (h *LegacyAliasHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if target, ok := legacyPaths[r.URL.Path]; ok {
		// Clone the request with the modified path.
		r2 := r.Clone(r.Context())
		r2.URL.Path = target
		h.Handler.ServeHTTP(w, r2)
		return
	}
	h.Handler.ServeHTTP(w, r)
}
