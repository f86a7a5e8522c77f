// Package instructions loads the role prompts used by the router and the
// responders. Defaults are compiled in; a directory can override any of them.
package instructions

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/infra/cache"

	"go.uber.org/zap"
)

// Prompt names.
const (
	NeedsBased   = "needs_based"
	Quote        = "quote"
	Presenter    = "presenter"
	Orchestrator = "orchestrator"
	Extractor    = "extractor"
)

const generic = "Actúa de manera profesional y útil."

//go:embed defaults/*.txt
var defaults embed.FS

// Loader resolves role prompts, caching them for ttl.
type Loader struct {
	dir    string
	cache  *cache.InMemory[string]
	logger *zap.Logger
}

// NewLoader creates a Loader. An empty dir uses only the embedded defaults.
func NewLoader(dir string, ttl time.Duration, logger *zap.Logger) *Loader {
	return &Loader{
		dir:    dir,
		cache:  cache.New[string](ttl),
		logger: logger,
	}
}

// Get returns the prompt for name. It never fails: unknown names get a
// generic professional prompt.
func (l *Loader) Get(name string) string {
	if v, ok := l.cache.Get(name); ok {
		return v
	}

	text := l.read(name)
	l.cache.Set(name, text)
	return text
}

// Reload drops every cached prompt so the next Get hits the files again.
func (l *Loader) Reload() {
	l.cache.Clear()
	l.logger.Info("instructions cache cleared")
}

// Close stops the cache janitor.
func (l *Loader) Close() {
	l.cache.Stop()
}

func (l *Loader) read(name string) string {
	file := name + ".txt"

	if l.dir != "" {
		b, err := os.ReadFile(filepath.Join(l.dir, file))
		switch {
		case err == nil:
			if s := strings.TrimSpace(string(b)); s != "" {
				return s
			}
		case !errors.Is(err, fs.ErrNotExist):
			l.logger.Warn("reading instructions override",
				zap.String("name", name),
				zap.Error(err),
			)
		}
	}

	b, err := defaults.ReadFile("defaults/" + file)
	if err != nil {
		return generic
	}
	return strings.TrimSpace(string(b))
}
