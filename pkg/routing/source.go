package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	"simplesalt/authproxy/pkg/config"
)

// maxDocumentSize caps the routing document body.
const maxDocumentSize = 4 << 20

// Source fetches the current routing rules. Rules are fetched on every
// request so edits to the document apply without a restart.
type Source interface {
	Fetch(ctx context.Context) ([]Rule, error)
}

// NewSource returns a file source when cfg.File is set and an HTTP source otherwise.
func NewSource(cfg config.RoutingConfig, userAgent string) Source {
	if cfg.File != "" {
		return &FileSource{Path: cfg.File}
	}
	return NewHTTPSource(cfg.URL, cfg.FetchTimeout, userAgent)
}

// HTTPSource fetches the routing document with GET.
type HTTPSource struct {
	URL       string
	Client    *http.Client
	UserAgent string
}

// NewHTTPSource creates an HTTP source. Each fetch is bounded by timeout.
func NewHTTPSource(url string, timeout time.Duration, userAgent string) *HTTPSource {
	return &HTTPSource{
		URL:       url,
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Rule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build routing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch routing document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch routing document: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read routing document: %w", err)
	}
	return ParseDocument(data)
}

// FileSource reads the routing document from disk.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context) ([]Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing document: %w", err)
	}
	return ParseDocument(data)
}

// StaticSource serves a fixed rule set.
type StaticSource []Rule

// Fetch implements Source.
func (s StaticSource) Fetch(context.Context) ([]Rule, error) {
	return append([]Rule(nil), s...), nil
}

// ParseDocument parses a routing document. The document is either an array
// of rules or an object with a "routes" array. Comments and trailing commas
// are tolerated.
func ParseDocument(data []byte) ([]Rule, error) {
	stripped := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(stripped) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	if stripped[0] == '[' {
		var rules []Rule
		if err := json.Unmarshal(stripped, &rules); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return rules, nil
	}

	var doc struct {
		Routes []Rule `json:"routes"`
	}
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc.Routes, nil
}

// FetchOrEmpty fetches rules and degrades to an empty rule set on failure.
func FetchOrEmpty(ctx context.Context, src Source, logger *slog.Logger) []Rule {
	rules, err := src.Fetch(ctx)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "routing document unavailable, using empty rule set", "error", err)
		return nil
	}
	return rules
}
