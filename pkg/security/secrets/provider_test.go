package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"simplesalt/authproxy/pkg/config"
)

func TestEnvProvider_GetSecret(t *testing.T) {
	t.Setenv("AUTHPROXY_TEST_STRIPE_KEY", "sk_test")

	tests := []struct {
		name    string
		prefix  string
		secret  string
		want    string
		wantErr bool
	}{
		{name: "verbatim name", prefix: "", secret: "AUTHPROXY_TEST_STRIPE_KEY", want: "sk_test"},
		{name: "with prefix", prefix: "AUTHPROXY_TEST_", secret: "STRIPE_KEY", want: "sk_test"},
		{name: "missing", prefix: "", secret: "AUTHPROXY_TEST_NOPE", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := NewEnvProvider(tt.prefix).GetSecret(context.Background(), tt.secret)
			if tt.wantErr {
				if !errors.Is(err, ErrSecretNotFound) {
					t.Errorf("expected ErrSecretNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if value != tt.want {
				t.Errorf("expected %q, got %q", tt.want, value)
			}
		})
	}
}

func TestEnvProvider_EmptyValueIsMissing(t *testing.T) {
	p := &EnvProvider{lookup: func(string) (string, bool) { return "", true }}
	if _, err := p.GetSecret(context.Background(), "X"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound for empty value, got %v", err)
	}
}

func writeSecretFile(t *testing.T, dir, name, content string, perm os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}
	// WriteFile is subject to umask; force the mode under test
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("failed to chmod secret: %v", err)
	}
}

func TestFileProvider_GetSecret(t *testing.T) {
	dir := t.TempDir()
	writeSecretFile(t, dir, "STRIPE_KEY", "sk_file\n", 0600)
	writeSecretFile(t, dir, "READONLY", "ro", 0400)
	writeSecretFile(t, dir, "OPEN", "leaky", 0644)
	writeSecretFile(t, dir, "BLANK", "  \n", 0600)

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name       string
		secret     string
		want       string
		wantErr    bool
		wantAbsent bool
	}{
		{name: "trims whitespace", secret: "STRIPE_KEY", want: "sk_file"},
		{name: "read-only file", secret: "READONLY", want: "ro"},
		{name: "insecure permissions", secret: "OPEN", wantErr: true},
		{name: "empty file", secret: "BLANK", wantErr: true, wantAbsent: true},
		{name: "missing file", secret: "NOPE", wantErr: true, wantAbsent: true},
		{name: "traversal", secret: "../etc/passwd", wantErr: true},
		{name: "dot dot", secret: "..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := p.GetSecret(ctx, tt.secret)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got value %q", value)
				}
				if errors.Is(err, ErrSecretNotFound) != tt.wantAbsent {
					t.Errorf("unexpected not-found classification: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if value != tt.want {
				t.Errorf("expected %q, got %q", tt.want, value)
			}
		})
	}
}

func TestNewFileProvider_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileProvider(file); err == nil {
		t.Fatal("expected error for non-directory base path")
	}
}

func TestParseBindingsJSON(t *testing.T) {
	got, err := ParseBindingsJSON(`{"STRIPE_KEY":"sk","GH":{"apiKey":"gh","headers":{"X-Org":"salt"}}}`)
	if err != nil {
		t.Fatalf("ParseBindingsJSON failed: %v", err)
	}
	if got["STRIPE_KEY"] != "sk" {
		t.Errorf("expected string binding, got %q", got["STRIPE_KEY"])
	}
	if !strings.Contains(got["GH"], `"apiKey":"gh"`) {
		t.Errorf("expected object binding to be re-encoded, got %q", got["GH"])
	}

	if got, err := ParseBindingsJSON("  "); err != nil || len(got) != 0 {
		t.Errorf("expected empty map for blank blob, got %v (%v)", got, err)
	}
	if _, err := ParseBindingsJSON(`{"A":1}`); err == nil {
		t.Error("expected error for numeric binding")
	}
	if _, err := ParseBindingsJSON(`not json`); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

type failingProvider struct{ err error }

func (f failingProvider) GetSecret(context.Context, string) (string, error) { return "", f.err }
func (f failingProvider) Provider() string                                  { return "failing" }

func TestManager_FallbackOrder(t *testing.T) {
	ctx := context.Background()
	first := NewMapProvider(map[string]string{"A": "from-first"})
	second := NewMapProvider(map[string]string{"A": "from-second", "B": "only-second"})
	mgr := NewManager(first, second)

	if v, err := mgr.GetSecret(ctx, "A"); err != nil || v != "from-first" {
		t.Errorf("expected first provider to win, got %q (%v)", v, err)
	}
	if v, err := mgr.GetSecret(ctx, "B"); err != nil || v != "only-second" {
		t.Errorf("expected fallback to second provider, got %q (%v)", v, err)
	}
	if _, err := mgr.GetSecret(ctx, "C"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestManager_ProviderErrorSurfaces(t *testing.T) {
	boom := errors.New("permission denied")
	mgr := NewManager(failingProvider{err: boom}, NewMapProvider(nil))

	_, err := mgr.GetSecret(context.Background(), "A")
	if !errors.Is(err, boom) {
		t.Errorf("expected provider error to be wrapped, got %v", err)
	}
}

func TestNewManagerFromConfig(t *testing.T) {
	cfg := config.CredentialsConfig{
		Sources:     []string{"map"},
		APIKeysBlob: `{"LEGACY":"old","SHARED":"blob"}`,
		Bindings:    map[string]string{"SHARED": "explicit"},
	}
	mgr, err := NewManagerFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewManagerFromConfig failed: %v", err)
	}

	ctx := context.Background()
	if v, _ := mgr.GetSecret(ctx, "LEGACY"); v != "old" {
		t.Errorf("expected legacy blob binding, got %q", v)
	}
	if v, _ := mgr.GetSecret(ctx, "SHARED"); v != "explicit" {
		t.Errorf("expected explicit binding to override blob, got %q", v)
	}

	if _, err := NewManagerFromConfig(config.CredentialsConfig{Sources: []string{"vault"}}); err == nil {
		t.Error("expected error for unknown source")
	}
	if _, err := NewManagerFromConfig(config.CredentialsConfig{Sources: []string{"file"}, SecretsDir: "/does/not/exist"}); err == nil {
		t.Error("expected error for missing secrets dir")
	}
}
