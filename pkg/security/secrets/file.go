package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileProvider reads each credential from its own file under Dir, the layout
// produced by Kubernetes secret volumes. Only regular files with mode 0600
// or 0400 are accepted. Files are read on every lookup so rotated mounts take
// effect without a restart.
type FileProvider struct {
	Dir string
}

// NewFileProvider returns a FileProvider for dir, which must exist.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secrets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets dir %s is not a directory", dir)
	}
	return &FileProvider{Dir: dir}, nil
}

// GetSecret returns the trimmed contents of Dir/name.
func (p *FileProvider) GetSecret(_ context.Context, name string) (string, error) {
	if !validFileName(name) {
		return "", fmt.Errorf("invalid secret name %q", name)
	}

	root, err := os.OpenRoot(p.Dir)
	if err != nil {
		return "", fmt.Errorf("open secrets dir: %w", err)
	}
	defer root.Close()

	info, err := root.Lstat(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("secret file %s: %w", name, ErrSecretNotFound)
	case err != nil:
		return "", fmt.Errorf("stat secret file %s: %w", name, err)
	case !info.Mode().IsRegular():
		return "", fmt.Errorf("secret file %s is not a regular file", name)
	}
	if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
		return "", fmt.Errorf("secret file %s has mode %o, want 0600 or 0400", name, perm)
	}

	data, err := root.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read secret file %s: %w", name, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("secret file %s is empty: %w", name, ErrSecretNotFound)
	}
	return value, nil
}

// Provider returns the provider name.
func (p *FileProvider) Provider() string {
	return "file"
}

func validFileName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
