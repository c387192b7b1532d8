package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed defaults/*.md
var defaultFS embed.FS

// ErrTemplateNotFound is returned when no template exists under a name.
var ErrTemplateNotFound = errors.New("template not found")

// Loader finds templates in an override directory first, then among the
// embedded defaults. Parsed templates are cached. Safe for concurrent use.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]Template
}

// NewLoader creates a loader. An empty dir uses only the embedded defaults.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]Template)}
}

// Load returns the template called name. A ".md" suffix is optional.
func (l *Loader) Load(name string) (Template, error) {
	name = strings.TrimSuffix(name, ".md")

	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.cache[name]; ok {
		return t, nil
	}

	data, err := l.read(name)
	if err != nil {
		return Template{}, err
	}
	t, err := Parse(data)
	if err != nil {
		return Template{}, fmt.Errorf("template %s: %w", name, err)
	}
	if t.Name == "" {
		t.Name = name
	}
	l.cache[name] = t
	return t, nil
}

func (l *Loader) read(name string) ([]byte, error) {
	file := name + ".md"
	if l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, file))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
	}
	data, err := defaultFS.ReadFile("defaults/" + file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return data, nil
}

// Names lists the embedded default templates.
func Names() []string {
	entries, err := defaultFS.ReadDir("defaults")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	return names
}
