package middleware

import (
	"log/slog"
	"net/http"
)

// Chain wraps h with the standard middleware stack, outermost first:
// request ID, recovery, logging, CORS.
func Chain(h http.Handler, policy *CORSPolicy, logger *slog.Logger) http.Handler {
	h = CORSMiddleware(policy)(h)
	h = LoggingMiddleware(logger)(h)
	h = RecoveryMiddleware(policy, logger)(h)
	h = RequestIDMiddleware(h)
	return h
}
