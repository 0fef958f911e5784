package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"simplesalt/authproxy/pkg/config"
	"simplesalt/authproxy/pkg/proxy"
	"simplesalt/authproxy/pkg/proxy/middleware"
	"simplesalt/authproxy/pkg/routing"
	"simplesalt/authproxy/pkg/security/auth"
	"simplesalt/authproxy/pkg/security/secrets"
	"simplesalt/authproxy/pkg/telemetry/logging"
	"simplesalt/authproxy/pkg/telemetry/metrics"
	"simplesalt/authproxy/pkg/telemetry/tracing"
)

// HeaderOriginalURL carries the full upstream URL in domain mode.
const HeaderOriginalURL = "X-Original-URL"

// Request outcomes used for metrics and logs.
const (
	OutcomeProxied       = "proxied"
	OutcomePreflight     = "preflight"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeBadRequest    = "bad_request"
	OutcomeRouteNotFound = "route_not_found"
	OutcomeNoCredentials = "credentials_not_found"
	OutcomeUpstreamError = "upstream_error"
	OutcomeInternalError = "internal_error"
)

// Authenticator verifies the caller of a request.
type Authenticator interface {
	Verify(ctx context.Context, h http.Header) auth.Result
}

// CredentialLookup resolves a route's secret name to upstream credentials.
type CredentialLookup interface {
	GetCredentials(ctx context.Context, secretName string) (*secrets.Credentials, bool)
}

// PipelineOptions holds the collaborators of a PipelineHandler.
type PipelineOptions struct {
	// Mode is config.ModeDomain or config.ModePath.
	Mode string

	Verifier    Authenticator
	Source      routing.Source
	Resolver    *routing.Resolver
	Credentials CredentialLookup
	Forwarder   *proxy.Forwarder

	// CORS defaults to the built-in policy.
	CORS *middleware.CORSPolicy

	// Metrics may be nil.
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// PipelineHandler runs every proxied request through authentication, route
// resolution, credential lookup and forwarding. Each stage either hands off
// to the next or ends the request with a JSON error; every response carries
// the CORS headers.
type PipelineHandler struct {
	byPath      bool
	verifier    Authenticator
	source      routing.Source
	resolver    *routing.Resolver
	credentials CredentialLookup
	forwarder   *proxy.Forwarder
	cors        *middleware.CORSPolicy
	metrics     *metrics.Collector
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewPipelineHandler creates a pipeline handler.
func NewPipelineHandler(opts PipelineOptions) (*PipelineHandler, error) {
	switch {
	case opts.Verifier == nil:
		return nil, errors.New("pipeline: verifier is required")
	case opts.Source == nil:
		return nil, errors.New("pipeline: routing source is required")
	case opts.Resolver == nil:
		return nil, errors.New("pipeline: resolver is required")
	case opts.Credentials == nil:
		return nil, errors.New("pipeline: credential lookup is required")
	case opts.Forwarder == nil:
		return nil, errors.New("pipeline: forwarder is required")
	}

	mode := opts.Mode
	if mode == "" {
		mode = config.ModeDomain
	}
	if mode != config.ModeDomain && mode != config.ModePath {
		return nil, errors.New("pipeline: unknown mode " + mode)
	}

	cors := opts.CORS
	if cors == nil {
		cors = middleware.DefaultCORSPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PipelineHandler{
		byPath:      mode == config.ModePath,
		verifier:    opts.Verifier,
		source:      instrumentedSource{Source: opts.Source, metrics: opts.Metrics},
		resolver:    opts.Resolver,
		credentials: opts.Credentials,
		forwarder:   opts.Forwarder,
		cors:        cors,
		metrics:     opts.Metrics,
		tracer:      otel.Tracer(tracing.InstrumentationName),
		logger:      logger.With("component", "proxy.pipeline"),
	}, nil
}

// ServeHTTP implements http.Handler.
func (h *PipelineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	origin := r.Header.Get("Origin")

	ctx, span := h.tracer.Start(r.Context(), "proxy.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, r.Method),
			attribute.String(tracing.AttrRequestID, logging.GetRequestID(r.Context())),
		),
	)
	defer span.End()

	if r.Method == http.MethodOptions {
		h.cors.Apply(w.Header(), origin)
		w.WriteHeader(http.StatusOK)
		h.finish(ctx, span, r.Method, OutcomePreflight, http.StatusOK, start)
		return
	}

	status, outcome, err := h.handle(ctx, w, r)
	if err != nil {
		status = h.writeError(ctx, w, origin, err)
		tracing.SetError(span, err)
	}
	tracing.SetStatus(span, err)
	h.finish(ctx, span, r.Method, outcome, status, start)
}

// handle runs the pipeline stages. A non-nil error means nothing has been
// written to w yet.
func (h *PipelineHandler) handle(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, string, error) {
	identity, err := h.authenticate(ctx, r.Header)
	if err != nil {
		return 0, OutcomeUnauthorized, err
	}
	ctx = auth.WithIdentity(ctx, identity)
	ctx = logging.WithUser(ctx, identity.User)

	key, original, err := h.routingKey(r)
	if err != nil {
		return 0, OutcomeBadRequest, err
	}

	rule, err := h.resolve(ctx, key)
	if err != nil {
		return 0, OutcomeRouteNotFound, err
	}
	ctx = logging.WithRoute(ctx, rule.MatchKey())

	target := original
	if h.byPath {
		target, err = routing.PathTarget(*rule, r.URL.Path, r.URL.RawQuery)
		if err != nil {
			return 0, OutcomeInternalError, &proxy.InternalError{Message: "invalid route target", Cause: err}
		}
	}

	creds, err := h.lookupCredentials(ctx, rule.SecretName)
	if err != nil {
		return 0, OutcomeNoCredentials, err
	}

	upstreamStart := time.Now()
	resp, err := h.forwarder.Forward(ctx, r, target, creds, rule.AuthType)
	if err != nil {
		var upstreamErr *proxy.UpstreamError
		if errors.As(err, &upstreamErr) {
			h.metrics.RecordUpstreamError(target.Hostname())
			return 0, OutcomeUpstreamError, err
		}
		return 0, OutcomeInternalError, err
	}
	defer resp.Body.Close()
	h.metrics.RecordUpstream(target.Hostname(), resp.StatusCode, time.Since(upstreamStart))

	if _, err := h.forwarder.Relay(w, resp, h.cors.Headers(r.Header.Get("Origin")), target.Hostname()); err != nil {
		// Headers are already sent; the caller sees a truncated body.
		h.logger.WarnContext(ctx, "failed to relay upstream response",
			"host", target.Host,
			"status", resp.StatusCode,
			"error", err,
		)
	}
	return resp.StatusCode, OutcomeProxied, nil
}

func (h *PipelineHandler) authenticate(ctx context.Context, header http.Header) (*auth.Identity, error) {
	ctx, span := h.tracer.Start(ctx, "auth.verify")
	defer span.End()

	result := h.verifier.Verify(ctx, header)
	if !result.Valid || result.Identity == nil {
		reason := result.Reason
		if reason == "" {
			reason = auth.ReasonMissingToken
		}
		tracing.SetAuthAttributes(span, "none", reason, "")
		h.metrics.RecordAuth("none", reason)
		h.logger.InfoContext(ctx, "request rejected", "reason", reason)
		return nil, &proxy.AuthFailureError{Reason: reason}
	}

	tracing.SetAuthAttributes(span, result.Identity.Method, "accepted", result.Identity.User)
	h.metrics.RecordAuth(result.Identity.Method, "accepted")
	return result.Identity, nil
}

// routingKey derives the route lookup key. In domain mode it also returns the
// upstream URL taken verbatim from X-Original-URL.
func (h *PipelineHandler) routingKey(r *http.Request) (string, *url.URL, error) {
	if h.byPath {
		return r.URL.Path, nil, nil
	}

	raw := r.Header.Get(HeaderOriginalURL)
	if raw == "" {
		return "", nil, &proxy.MissingInputError{Field: HeaderOriginalURL}
	}
	u, err := url.Parse(raw)
	if err == nil && u.Hostname() == "" {
		err = errors.New("no host")
	}
	if err != nil {
		return "", nil, &proxy.MissingInputError{Field: HeaderOriginalURL, Invalid: true, Cause: err}
	}
	return strings.ToLower(u.Hostname()), u, nil
}

func (h *PipelineHandler) resolve(ctx context.Context, key string) (*routing.Rule, error) {
	ctx, span := h.tracer.Start(ctx, "routing.resolve")
	defer span.End()

	rules := routing.FetchOrEmpty(ctx, h.source, h.logger)
	rule, ok := h.resolver.Resolve(rules, key)
	if !ok {
		h.metrics.RecordRoute("not_found")
		span.SetAttributes(attribute.String(tracing.AttrRouteKey, key))
		h.logger.InfoContext(ctx, "no matching route",
			"key", key,
			"rules", len(rules),
		)
		return nil, &proxy.RouteNotFoundError{Key: key, ByPath: h.byPath}
	}

	h.metrics.RecordRoute("matched")
	mode := config.ModeDomain
	if h.byPath {
		mode = config.ModePath
	}
	tracing.SetRouteAttributes(span, mode, key, rule.SecretName, rule.AuthType.String())
	return rule, nil
}

func (h *PipelineHandler) lookupCredentials(ctx context.Context, secretName string) (*secrets.Credentials, error) {
	ctx, span := h.tracer.Start(ctx, "credentials.lookup",
		trace.WithAttributes(attribute.String(tracing.AttrSecretName, secretName)),
	)
	defer span.End()

	creds, ok := h.credentials.GetCredentials(ctx, secretName)
	h.metrics.RecordCredentialLookup(ok)
	if !ok {
		h.logger.WarnContext(ctx, "credentials not found", "secret_name", secretName)
		return nil, &proxy.CredentialsNotFoundError{SecretName: secretName}
	}
	return creds, nil
}

func (h *PipelineHandler) writeError(ctx context.Context, w http.ResponseWriter, origin string, err error) int {
	resp := proxy.HandleError(err)
	status := resp.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	h.cors.Apply(w.Header(), origin)
	resp.Write(w)
	return status
}

func (h *PipelineHandler) finish(ctx context.Context, span trace.Span, method, outcome string, status int, start time.Time) {
	span.SetAttributes(
		attribute.String(tracing.AttrOutcome, outcome),
		attribute.Int(tracing.AttrHTTPStatusCode, status),
	)
	h.metrics.RecordRequest(method, outcome, status, time.Since(start))
	h.logger.DebugContext(ctx, "request handled",
		"outcome", outcome,
		"status", status,
		"class", proxy.StatusClass(status),
		"trace_id", tracing.TraceID(ctx),
	)
}

// instrumentedSource records the latency and result of every routing fetch.
type instrumentedSource struct {
	routing.Source
	metrics *metrics.Collector
}

func (s instrumentedSource) Fetch(ctx context.Context) ([]routing.Rule, error) {
	start := time.Now()
	rules, err := s.Source.Fetch(ctx)
	s.metrics.RecordRoutingFetch(err == nil, time.Since(start))
	return rules, err
}
