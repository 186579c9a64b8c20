package img

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Arena is a per-job scratch directory. Every file an extractor writes goes
// into it and Close removes the whole directory.
type Arena struct {
	dir string
}

// NewArena creates a unique directory under base named after the job.
func NewArena(base, name string) (*Arena, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, sanitizeName(name)+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create arena: %w", err)
	}
	return &Arena{dir: dir}, nil
}

func (a *Arena) Dir() string { return a.dir }

func (a *Arena) Path(name string) string { return filepath.Join(a.dir, name) }

// WriteFile stores data under name and returns the full path.
func (a *Arena) WriteFile(name string, data []byte) (string, error) {
	p := a.Path(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return p, nil
}

func (a *Arena) Close() error {
	return os.RemoveAll(a.dir)
}

func sanitizeName(name string) string {
	if name == "" {
		return "job"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
