package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"simplesalt/authproxy/pkg/config"
	"simplesalt/authproxy/pkg/kvstore"
	"simplesalt/authproxy/pkg/proxy"
	"simplesalt/authproxy/pkg/proxy/middleware"
	"simplesalt/authproxy/pkg/routing"
	"simplesalt/authproxy/pkg/security/auth"
	"simplesalt/authproxy/pkg/security/secrets"
	"simplesalt/authproxy/pkg/telemetry/metrics"
)

const testOrigin = "https://studio.plasmic.app"

// capturedRequest is what the fake upstream saw.
type capturedRequest struct {
	Method string
	Host   string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type upstream struct {
	server *httptest.Server

	mu   sync.Mutex
	last *capturedRequest
	hits int
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.hits++
		u.last = &capturedRequest{
			Method: r.Method,
			Host:   r.Host,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		}
		u.mu.Unlock()

		h := w.Header()
		h.Set("Content-Type", "application/json")
		h.Set("Server", "upstream/1.0")
		h.Set("Set-Cookie", "session=abc")
		h.Set("CF-Ray", "123-AMS")
		h.Set("Access-Control-Allow-Origin", "*")
		h.Add("X-Multi", "one")
		h.Add("X-Multi", "two")
		h.Set("Vary", "Accept-Encoding")
		h.Set("X-Request-ID", "upstream-id")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) lastRequest() (*capturedRequest, int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last, u.hits
}

// transport sends every request to the fake upstream whatever its host.
func (u *upstream) transport() http.RoundTripper {
	addr := u.server.Listener.Addr().String()
	return &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func signAssertion(t *testing.T, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte("pipeline-test-secret-0123456789")},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	raw, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		t.Fatalf("failed to sign assertion: %v", err)
	}
	return raw
}

var testBindings = map[string]string{
	"OAUTH2_TOKENS": `{"good-token":{"user":"svc-reporting","scope":"read"},"old-token":{"client_id":"c1","expires_at":1}}`,
	"S1":            "upstream-key",
	"S2":            `{"apiKey":"k2","headers":{"X-Api-Version":"2024-01"}}`,
}

type pipelineSetup struct {
	mode      string
	rules     routing.StaticSource
	transport http.RoundTripper
	metrics   *metrics.Collector
}

func newTestPipeline(t *testing.T, s pipelineSetup) *PipelineHandler {
	t.Helper()
	cfg := config.NewDefaultConfig()

	kv := kvstore.NewMemoryStore()
	_ = kv.Put(context.Background(), "secret_KV_ONLY", `{"apiKey":"from-kv"}`, 0)
	store := secrets.NewCredentialStore(secrets.NewMapProvider(testBindings), kv, time.Second, nil)

	policy := routing.MatchLoose
	if s.mode == config.ModePath {
		policy = routing.MatchPattern
	}
	resolver, err := routing.NewResolver(policy, nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	h, err := NewPipelineHandler(PipelineOptions{
		Mode:        s.mode,
		Verifier:    auth.NewVerifier(cfg.Auth, store, auth.UnverifiedDecoder{}, nil),
		Source:      s.rules,
		Resolver:    resolver,
		Credentials: store,
		Forwarder:   proxy.NewForwarder(proxy.ForwarderConfig{Timeout: 5 * time.Second, Transport: s.transport}, nil),
		Metrics:     s.metrics,
	})
	if err != nil {
		t.Fatalf("NewPipelineHandler() error = %v", err)
	}
	return h
}

var domainRules = routing.StaticSource{
	{Domain: "api.example.com", SecretName: "S1", AuthType: routing.AuthBearer},
	{Domain: "custom.example.net", SecretName: "S2", AuthType: routing.AuthBearerHeaders},
	{Domain: "kv.example.org", SecretName: "KV_ONLY", AuthType: routing.AuthBearer},
	{Domain: "nosecret.example.io", SecretName: "MISSING", AuthType: routing.AuthBearer},
}

func decodeError(t *testing.T, body io.Reader) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return out
}

func TestPipeline_DomainMode(t *testing.T) {
	up := newUpstream(t)
	h := newTestPipeline(t, pipelineSetup{rules: domainRules, transport: up.transport()})

	now := time.Now()
	validAssertion := signAssertion(t, map[string]any{"email": "dev@simplesalt.company", "exp": now.Add(time.Minute).Unix()})
	expiredAssertion := signAssertion(t, map[string]any{"email": "dev@simplesalt.company", "exp": now.Add(-time.Second).Unix()})
	foreignAssertion := signAssertion(t, map[string]any{"email": "dev@evil.example", "exp": now.Add(time.Minute).Unix()})

	tests := []struct {
		name        string
		method      string
		headers     map[string]string
		wantStatus  int
		wantError   map[string]string
		wantProxied bool
	}{
		{
			name:       "preflight short-circuits",
			method:     http.MethodOptions,
			wantStatus: http.StatusOK,
		},
		{
			name:       "no credentials at all",
			method:     http.MethodGet,
			headers:    map[string]string{HeaderOriginalURL: "https://api.example.com/v1"},
			wantStatus: http.StatusUnauthorized,
			wantError:  map[string]string{"error": "Authentication required", "message": "missing authentication token"},
		},
		{
			name:       "assertion expired one second ago",
			method:     http.MethodGet,
			headers:    map[string]string{"CF-Access-Jwt-Assertion": expiredAssertion, HeaderOriginalURL: "https://api.example.com/v1"},
			wantStatus: http.StatusUnauthorized,
			wantError:  map[string]string{"error": "Authentication required", "message": "token expired"},
		},
		{
			name:       "assertion from foreign domain",
			method:     http.MethodGet,
			headers:    map[string]string{"CF-Access-Jwt-Assertion": foreignAssertion, HeaderOriginalURL: "https://api.example.com/v1"},
			wantStatus: http.StatusUnauthorized,
			wantError:  map[string]string{"error": "Authentication required", "message": "unauthorized domain"},
		},
		{
			name:       "expired bearer token without assertion",
			method:     http.MethodGet,
			headers:    map[string]string{"Authorization": "Bearer old-token", HeaderOriginalURL: "https://api.example.com/v1"},
			wantStatus: http.StatusUnauthorized,
			wantError:  map[string]string{"error": "Authentication required", "message": "missing authentication token"},
		},
		{
			name:        "valid assertion on subdomain",
			method:      http.MethodGet,
			headers:     map[string]string{"CF-Access-Jwt-Assertion": validAssertion, HeaderOriginalURL: "http://sub.api.example.com/v1"},
			wantStatus:  http.StatusCreated,
			wantProxied: true,
		},
		{
			name:        "valid bearer token",
			method:      http.MethodGet,
			headers:     map[string]string{"Authorization": "Bearer good-token", HeaderOriginalURL: "http://api.example.com/v1"},
			wantStatus:  http.StatusCreated,
			wantProxied: true,
		},
		{
			name:        "credentials from fallback store",
			method:      http.MethodGet,
			headers:     map[string]string{"Authorization": "Bearer good-token", HeaderOriginalURL: "http://kv.example.org/v1"},
			wantStatus:  http.StatusCreated,
			wantProxied: true,
		},
		{
			name:       "missing original url",
			method:     http.MethodGet,
			headers:    map[string]string{"Authorization": "Bearer good-token"},
			wantStatus: http.StatusBadRequest,
			wantError:  map[string]string{"error": "Missing original URL header"},
		},
		{
			name:       "original url without host",
			method:     http.MethodGet,
			headers:    map[string]string{"Authorization": "Bearer good-token", HeaderOriginalURL: "/relative/path"},
			wantStatus: http.StatusBadRequest,
			wantError:  map[string]string{"error": "Invalid original URL header"},
		},
		{
			name:       "unknown domain",
			method:     http.MethodGet,
			headers:    map[string]string{"Authorization": "Bearer good-token", HeaderOriginalURL: "https://other.com/v1"},
			wantStatus: http.StatusNotFound,
			wantError:  map[string]string{"error": "No routing rule found for domain", "domain": "other.com"},
		},
		{
			name:       "secret not bound anywhere",
			method:     http.MethodGet,
			headers:    map[string]string{"Authorization": "Bearer good-token", HeaderOriginalURL: "https://nosecret.example.io/v1"},
			wantStatus: http.StatusInternalServerError,
			wantError:  map[string]string{"error": "API credentials not found", "secretName": "MISSING"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, hitsBefore := up.lastRequest()

			req := httptest.NewRequest(tt.method, "/anything", nil)
			req.Header.Set("Origin", testOrigin)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
			}

			if tt.wantError != nil {
				got := decodeError(t, rec.Body)
				if len(got) != len(tt.wantError) {
					t.Errorf("error body = %v, want %v", got, tt.wantError)
				}
				for k, v := range tt.wantError {
					if got[k] != v {
						t.Errorf("error body[%q] = %q, want %q", k, got[k], v)
					}
				}
			}

			_, hitsAfter := up.lastRequest()
			if proxied := hitsAfter > hitsBefore; proxied != tt.wantProxied {
				t.Errorf("upstream called = %v, want %v", proxied, tt.wantProxied)
			}
			if tt.method == http.MethodOptions && rec.Body.Len() != 0 {
				t.Errorf("preflight body = %q, want empty", rec.Body.String())
			}
		})
	}
}

func TestPipeline_HeaderRoundTrip(t *testing.T) {
	up := newUpstream(t)
	h := newTestPipeline(t, pipelineSetup{rules: domainRules, transport: up.transport()})

	req := httptest.NewRequest(http.MethodPost, "/ignored", strings.NewReader(`{"q":1}`))
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set(HeaderOriginalURL, "http://custom.example.net/v2/items?page=3")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("CF-Connecting-IP", "203.0.113.9")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Accept", "text/plain")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	got, _ := up.lastRequest()
	if got.Method != http.MethodPost || got.Body != `{"q":1}` {
		t.Errorf("upstream saw %s %q", got.Method, got.Body)
	}
	if got.Host != "custom.example.net" || got.Path != "/v2/items" || got.Query != "page=3" {
		t.Errorf("upstream target = %s%s?%s", got.Host, got.Path, got.Query)
	}

	outbound := []struct {
		name string
		want []string
	}{
		{"Authorization", []string{"Bearer k2"}},
		{"X-Api-Version", []string{"2024-01"}},
		{"User-Agent", []string{config.DefaultUserAgent}},
		{"Content-Type", []string{"application/json"}},
		{"Accept", []string{"application/json", "text/plain"}},
		{"Cf-Connecting-Ip", nil},
		{"X-Forwarded-For", nil},
		{"X-Original-Url", nil},
	}
	for _, tt := range outbound {
		if gotValues := got.Header.Values(tt.name); strings.Join(gotValues, ",") != strings.Join(tt.want, ",") {
			t.Errorf("outbound %s = %v, want %v", tt.name, gotValues, tt.want)
		}
	}

	inbound := []struct {
		name string
		want []string
	}{
		{"Content-Type", []string{"application/json"}},
		{"X-Multi", []string{"one", "two"}},
		{"Server", nil},
		{"Set-Cookie", nil},
		{"Cf-Ray", nil},
		{"Access-Control-Allow-Origin", []string{testOrigin}},
		{"Access-Control-Allow-Credentials", []string{"true"}},
		{"X-Proxied-By", []string{config.DefaultProxiedBy}},
		{"X-Original-Host", []string{"custom.example.net"}},
	}
	for _, tt := range inbound {
		if gotValues := rec.Header().Values(tt.name); strings.Join(gotValues, ",") != strings.Join(tt.want, ",") {
			t.Errorf("response %s = %v, want %v", tt.name, gotValues, tt.want)
		}
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("body = %q, want upstream body", rec.Body.String())
	}
}

func TestPipeline_HeaderRoundTripThroughChain(t *testing.T) {
	up := newUpstream(t)
	policy := middleware.DefaultCORSPolicy()
	h := middleware.Chain(newTestPipeline(t, pipelineSetup{rules: domainRules, transport: up.transport()}), policy, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set(HeaderOriginalURL, "http://api.example.com:8080/v1/items")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name string
		want []string
	}{
		{"Vary", []string{"Accept-Encoding", "Origin"}},
		{"X-Request-Id", []string{"upstream-id"}},
		{"X-Multi", []string{"one", "two"}},
		{"Content-Type", []string{"application/json"}},
		{"Access-Control-Allow-Origin", []string{testOrigin}},
		{"X-Proxied-By", []string{config.DefaultProxiedBy}},
		{"X-Original-Host", []string{"api.example.com"}},
		{"Server", nil},
		{"Set-Cookie", nil},
	}
	for _, tt := range tests {
		if got := rec.Header().Values(tt.name); strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("response %s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPipeline_PathMode(t *testing.T) {
	up := newUpstream(t)
	parsed, err := routing.ParseDocument([]byte(`{"routes":[
		{"pattern":"[","target":"http://broken.example.com","secretName":"S1"},
		{"pattern":"^/api/weather","target":"http://weather.example.com/data/","secretName":"S1"}
	]}`))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	h := newTestPipeline(t, pipelineSetup{mode: config.ModePath, rules: routing.StaticSource(parsed), transport: up.transport()})

	t.Run("pattern match strips prefix", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/weather/today?city=Utrecht", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
		}
		got, _ := up.lastRequest()
		if got.Host != "weather.example.com" || got.Path != "/data/today" || got.Query != "city=Utrecht" {
			t.Errorf("upstream target = %s%s?%s", got.Host, got.Path, got.Query)
		}
		if got.Header.Get("Authorization") != "Bearer upstream-key" {
			t.Errorf("Authorization = %q", got.Header.Get("Authorization"))
		}
	})

	t.Run("no pattern matches", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		body := decodeError(t, rec.Body)
		if body["error"] != "Route not found" || body["path"] != "/nope" {
			t.Errorf("unexpected body %v", body)
		}
	})
}

type failingSource struct{}

func (failingSource) Fetch(context.Context) ([]routing.Rule, error) {
	return nil, errors.New("routing host unreachable")
}

func TestPipeline_RoutingFetchFailureIsNotFound(t *testing.T) {
	cfg := config.NewDefaultConfig()
	store := secrets.NewCredentialStore(secrets.NewMapProvider(testBindings), nil, time.Second, nil)
	resolver, _ := routing.NewResolver(routing.MatchLoose, nil)

	h, err := NewPipelineHandler(PipelineOptions{
		Verifier:    auth.NewVerifier(cfg.Auth, store, nil, nil),
		Source:      failingSource{},
		Resolver:    resolver,
		Credentials: store,
		Forwarder:   proxy.NewForwarder(proxy.ForwarderConfig{}, nil),
	})
	if err != nil {
		t.Fatalf("NewPipelineHandler() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set(HeaderOriginalURL, "https://api.example.com/")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPipeline_UpstreamFailure(t *testing.T) {
	collector := metrics.NewCollector(config.MetricsConfig{Namespace: "test"}, prometheus.NewRegistry())
	transport := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	h := newTestPipeline(t, pipelineSetup{rules: domainRules, transport: transport, metrics: collector})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set(HeaderOriginalURL, "https://api.example.com/v1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeError(t, rec.Body)
	if body["error"] != "Internal proxy error" || !strings.Contains(body["message"], "connection refused") {
		t.Errorf("unexpected body %v", body)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Error("error response is missing CORS headers")
	}

	scrape := httptest.NewRecorder()
	collector.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), `outcome="upstream_error"`) {
		t.Error("expected upstream_error outcome in metrics")
	}
}

func TestNewPipelineHandler_Validation(t *testing.T) {
	resolver, _ := routing.NewResolver(routing.MatchLoose, nil)
	store := secrets.NewCredentialStore(nil, nil, 0, nil)
	full := PipelineOptions{
		Verifier:    auth.NewVerifier(config.AuthConfig{}, nil, nil, nil),
		Source:      routing.StaticSource{},
		Resolver:    resolver,
		Credentials: store,
		Forwarder:   proxy.NewForwarder(proxy.ForwarderConfig{}, nil),
	}

	tests := []struct {
		name    string
		mutate  func(*PipelineOptions)
		wantErr bool
	}{
		{"complete", func(*PipelineOptions) {}, false},
		{"path mode", func(o *PipelineOptions) { o.Mode = config.ModePath }, false},
		{"unknown mode", func(o *PipelineOptions) { o.Mode = "subdomain" }, true},
		{"no verifier", func(o *PipelineOptions) { o.Verifier = nil }, true},
		{"no forwarder", func(o *PipelineOptions) { o.Forwarder = nil }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := full
			tt.mutate(&opts)
			if _, err := NewPipelineHandler(opts); (err != nil) != tt.wantErr {
				t.Errorf("NewPipelineHandler() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
