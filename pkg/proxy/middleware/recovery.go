package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"simplesalt/authproxy/pkg/proxy/types"
)

// RecoveryMiddleware recovers from panics in downstream handlers and answers
// with a 500 "Internal proxy error" body carrying the CORS headers. The panic
// and stack are logged; the stack is never sent to the client.
//
// Example usage:
//
//	handler = RecoveryMiddleware(policy, logger)(handler)
func RecoveryMiddleware(policy *CORSPolicy, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", rec,
					"request_id", GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				if policy != nil {
					policy.Apply(w.Header(), r.Header.Get("Origin"))
				}
				types.NewServerError(fmt.Sprint(rec)).Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
