package httpapi

import (
	"net/http"

	"github.com/ironclad-systems/governor/core"
)

// chain composes the logging and CORS middleware around the route mux, in
// the same outer-to-inner order the teacher's HTTP server wires them: CORS
// decides whether a cross-origin request is even allowed before logging (and
// everything downstream) ever sees it.
func chain(next http.Handler, logger core.Logger, cors *core.CORSConfig, devMode bool) http.Handler {
	handler := core.LoggingMiddleware(logger, devMode)(next)
	if cors != nil {
		handler = core.CORSMiddleware(cors)(handler)
	}
	return handler
}
