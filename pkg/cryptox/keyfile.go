package cryptox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadKeyMaterial resolves the master key material. An explicit value wins,
// otherwise the key file at path is read, and generated with 0600
// permissions when it does not exist yet.
func LoadKeyMaterial(value, path string) ([]byte, error) {
	if v := strings.TrimSpace(value); v != "" {
		return []byte(v), nil
	}
	if path == "" {
		return nil, ErrNoKeyMaterial
	}

	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = []byte(strings.TrimSpace(string(data)))
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrNoKeyMaterial, path)
		}
		return data, nil
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read master key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	key, err := GenerateToken(TokenSize256)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(key), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write master key file: %w", err)
	}
	return []byte(key), nil
}
