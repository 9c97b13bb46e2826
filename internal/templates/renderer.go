package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var placeholder = regexp.MustCompile(`\{\{\s*[A-Za-z0-9_]+\s*\}\}`)

// Renderer loads HTML templates from a directory and substitutes
// "{{ key }}" placeholders. Loaded files are cached until they change on disk.
type Renderer struct {
	dir string
	log *zap.Logger

	mu    sync.RWMutex
	cache map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewRenderer(dir string, log *zap.Logger) *Renderer {
	return &Renderer{
		dir:   dir,
		log:   log,
		cache: make(map[string]string),
	}
}

// Watch drops cached templates whenever their file is written, renamed or removed.
func (r *Renderer) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	if err := w.Add(r.dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch template directory %s: %w", r.dir, err)
	}

	r.watcher = w
	r.done = make(chan struct{})
	go r.processEvents()

	r.log.Info("Watching templates", zap.String("dir", r.dir))
	return nil
}

func (r *Renderer) processEvents() {
	defer close(r.done)
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			r.mu.Lock()
			_, cached := r.cache[name]
			delete(r.cache, name)
			r.mu.Unlock()
			if cached {
				r.log.Debug("Template invalidated", zap.String("name", name), zap.String("op", event.Op.String()))
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn("Template watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher, if one was started.
func (r *Renderer) Close() error {
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	<-r.done
	return err
}

// Render returns template name with every key of data substituted. Placeholders
// without a value are removed.
func (r *Renderer) Render(name string, data map[string]string) ([]byte, error) {
	html, err := r.load(name)
	if err != nil {
		return nil, err
	}

	for k, v := range data {
		html = strings.ReplaceAll(html, "{{ "+k+" }}", v)
	}
	html = placeholder.ReplaceAllString(html, "")

	return []byte(html), nil
}

func (r *Renderer) load(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid template name %q", name)
	}

	r.mu.RLock()
	html, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return html, nil
	}

	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	html = string(data)

	if r.watcher != nil {
		r.mu.Lock()
		r.cache[name] = html
		r.mu.Unlock()
	}

	return html, nil
}
