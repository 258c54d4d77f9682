package httpapi

import (
	"net/http"

	"github.com/ironclad-systems/governor/telemetry"
)

// serviceName identifies this server in traces and span names; it matches
// the metrics namespace the governor package registers under.
const serviceName = "governor"

// withTracing wraps the handler tree in otelhttp instrumentation, reusing
// the kernel's own tracing middleware rather than wiring otelhttp directly —
// keeping span-name conventions and propagator setup in one place.
func withTracing(next http.Handler) http.Handler {
	return telemetry.TracingMiddleware(serviceName)(next)
}
