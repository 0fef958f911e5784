package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"simplesalt/authproxy/pkg/config"
	"simplesalt/authproxy/pkg/routing"
	"simplesalt/authproxy/pkg/security/secrets"
	"simplesalt/authproxy/pkg/telemetry/tracing"
)

// Response headers added to every relayed response.
const (
	HeaderProxiedBy    = "X-Proxied-By"
	HeaderOriginalHost = "X-Original-Host"
)

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	// Timeout bounds each upstream call, including reading the body.
	Timeout time.Duration

	// UserAgent is sent on every upstream request.
	UserAgent string

	// ProxiedBy is the X-Proxied-By response header value.
	ProxiedBy string

	// Transport overrides the HTTP transport. Nil uses a clone of the default.
	Transport http.RoundTripper
}

// ForwarderConfigFrom builds a ForwarderConfig from the proxy section.
func ForwarderConfigFrom(cfg config.ProxyConfig) ForwarderConfig {
	return ForwarderConfig{
		Timeout:   cfg.UpstreamTimeout,
		UserAgent: cfg.UserAgent,
		ProxiedBy: cfg.ProxiedBy,
	}
}

// Forwarder sends a sanitized copy of an inbound request to an upstream API
// and relays the sanitized response back. It holds no per-request state.
type Forwarder struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	proxiedBy string
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewForwarder creates a Forwarder. Redirects are returned to the caller
// rather than followed.
func NewForwarder(cfg ForwarderConfig, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}
	if cfg.ProxiedBy == "" {
		cfg.ProxiedBy = config.DefaultProxiedBy
	}

	return &Forwarder{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		proxiedBy: cfg.ProxiedBy,
		tracer:    otel.Tracer(tracing.InstrumentationName),
		logger:    logger.With("component", "proxy.forwarder"),
	}
}

// Forward sends in to target. Credentials are injected when mode requires
// them. The caller must close the response body; closing it also releases
// the upstream deadline.
func (f *Forwarder) Forward(ctx context.Context, in *http.Request, target *url.URL, creds *secrets.Credentials, mode routing.AuthMode) (*http.Response, error) {
	ctx, span := f.tracer.Start(ctx, "proxy.upstream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, in.Method),
			attribute.String(tracing.AttrServerAddress, target.Host),
			attribute.String(tracing.AttrAuthMode, mode.String()),
		),
	)

	cancel := context.CancelFunc(func() {})
	if f.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
	}

	out, err := f.buildRequest(ctx, in, target, creds, mode)
	if err != nil {
		cancel()
		span.End()
		return nil, &InternalError{Message: "failed to build upstream request", Cause: err}
	}

	start := time.Now()
	resp, err := f.client.Do(out)
	if err != nil {
		cancel()
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		span.End()
		f.logger.WarnContext(ctx, "upstream request failed",
			"host", target.Host,
			"method", in.Method,
			"latency_ms", time.Since(start).Milliseconds(),
			"timeout", errors.Is(err, context.DeadlineExceeded),
		)
		return nil, &UpstreamError{Host: target.Host, Cause: err}
	}

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: func() {
		cancel()
		span.End()
	}}
	return resp, nil
}

func (f *Forwarder) buildRequest(ctx context.Context, in *http.Request, target *url.URL, creds *secrets.Credentials, mode routing.AuthMode) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if in.Method != http.MethodGet && in.Method != http.MethodHead && in.Body != nil {
		body = in.Body
	}

	out, err := http.NewRequestWithContext(ctx, in.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if body != http.NoBody {
		out.ContentLength = in.ContentLength
	}

	out.Header = OutboundHeaders(in.Header)
	InjectCredentials(out.Header, creds, mode)
	out.Host = target.Host
	out.Header.Set("User-Agent", f.userAgent)
	return out, nil
}

// Relay writes resp to w: filtered upstream headers, then the overlay headers
// (CORS), then the proxy markers, the upstream status and the unmodified body.
// Upstream headers replace values already set on w by outer middleware. Vary
// is merged so upstream values are kept. It closes resp.Body.
func (f *Forwarder) Relay(w http.ResponseWriter, resp *http.Response, overlay http.Header, upstreamHost string) (int64, error) {
	defer resp.Body.Close()

	dst := w.Header()
	CopyInboundHeaders(dst, resp.Header)
	for name, values := range overlay {
		if name == "Vary" {
			mergeVary(dst, values)
			continue
		}
		dst[name] = append([]string(nil), values...)
	}
	dst.Set(HeaderProxiedBy, f.proxiedBy)
	dst.Set(HeaderOriginalHost, upstreamHost)

	w.WriteHeader(resp.StatusCode)

	streaming := strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream")
	return copyBody(w, resp.Body, streaming)
}

// OutboundHeaders copies the inbound request headers that may reach an
// upstream. Names starting with "cf-" or "x-", and Host, are dropped.
func OutboundHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for name, values := range in {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "cf-") || strings.HasPrefix(lower, "x-") || lower == "host" {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

// InjectCredentials sets the bearer token and credential headers when mode
// injects credentials. Credential headers are applied with their names as given.
func InjectCredentials(h http.Header, creds *secrets.Credentials, mode routing.AuthMode) {
	if creds == nil || !mode.InjectsCredentials() {
		return
	}
	if creds.APIKey != "" {
		h.Set("Authorization", "Bearer "+creds.APIKey)
	}
	for name, value := range creds.Headers {
		h.Del(name)
		h[name] = []string{value}
	}
}

// CopyInboundHeaders copies upstream response headers to dst, dropping names
// starting with "cf-", Server and Set-Cookie. A copied name replaces any value
// dst already holds. Repeated values keep their order.
func CopyInboundHeaders(dst, src http.Header) {
	for name, values := range src {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "cf-") || lower == "server" || lower == "set-cookie" {
			continue
		}
		dst.Del(name)
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// mergeVary adds each token of values to the Vary header of h unless one of
// its existing values already lists it.
func mergeVary(h http.Header, values []string) {
	have := map[string]bool{}
	for _, v := range h.Values("Vary") {
		for _, tok := range strings.Split(v, ",") {
			have[strings.ToLower(strings.TrimSpace(tok))] = true
		}
	}
	for _, v := range values {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" || have[strings.ToLower(tok)] {
				continue
			}
			have[strings.ToLower(tok)] = true
			h.Add("Vary", tok)
		}
	}
}

// copyBody streams src to w, flushing after each chunk for event streams.
func copyBody(w http.ResponseWriter, src io.Reader, flush bool) (int64, error) {
	if !flush {
		return io.Copy(w, src)
	}

	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			_ = rc.Flush()
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// releasingBody runs release once when the body is closed.
type releasingBody struct {
	io.ReadCloser
	release func()
	done    bool
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	if !b.done {
		b.done = true
		b.release()
	}
	return err
}
