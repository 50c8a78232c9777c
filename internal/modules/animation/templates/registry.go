package templates

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// Registry maps template id to definition. Definitions are code; the catalog only
// supplies display metadata and may be swapped at runtime.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	base    map[string]Definition
	catalog *Catalog
	log     *logger.Logger
}

// NewRegistry builds a registry of the built-in templates with the catalog at path
// (or the embedded one). A broken catalog is logged and the code defaults are used.
func NewRegistry(log *logger.Logger, catalogPath string) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	r := &Registry{base: map[string]Definition{}, log: log.With("component", "TemplateRegistry")}
	for _, def := range builtinDefinitions() {
		_ = r.Register(def)
	}
	cat, err := LoadCatalog(catalogPath)
	if err != nil {
		r.log.Warn("templates: catalog load failed; using fallback", "error", err, "path", catalogPath)
		return r
	}
	r.catalog = cat
	return r
}

// Register adds a definition. Ids are unique.
func (r *Registry) Register(def Definition) error {
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		return fmt.Errorf("template id required")
	}
	if def.ID == GenerativeFallbackID {
		return fmt.Errorf("template id %q is reserved", def.ID)
	}
	if def.Skeleton == nil {
		return fmt.Errorf("template %s: skeleton required", def.ID)
	}
	seen := map[string]bool{}
	for _, a := range def.Axes {
		if a.Key == "" || seen[a.Key] {
			return fmt.Errorf("template %s: axis keys must be unique and non-empty", def.ID)
		}
		seen[a.Key] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.base[def.ID]; ok {
		return fmt.Errorf("template %s already registered", def.ID)
	}
	r.base[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// Apply swaps in a new catalog.
func (r *Registry) Apply(cat *Catalog) {
	r.mu.Lock()
	r.catalog = cat
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.base[id]
	if !ok {
		return Definition{}, false
	}
	return finish(r.catalog.apply(def)), true
}

// List returns definitions in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, finish(r.catalog.apply(r.base[id])))
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// finish fills any display text the catalog left empty.
func finish(def Definition) Definition {
	if def.Name == "" {
		def.Name = humanize(def.ID)
	}
	if def.Category == "" {
		def.Category = CategoryGeneral
	}
	if def.DefaultTitle == "" {
		def.DefaultTitle = def.Name
	}
	axes := make([]AxisRequirement, len(def.Axes))
	copy(axes, def.Axes)
	for i := range axes {
		if axes[i].DisplayLabel == "" {
			axes[i].DisplayLabel = humanize(strings.TrimSuffix(axes[i].Key, "_column"))
		}
		if axes[i].Label == "" {
			axes[i].Label = axes[i].DisplayLabel
		}
	}
	def.Axes = axes
	return def
}

func humanize(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// Watch reloads the catalog at path whenever the file is written or replaced, until
// ctx is done. Invalid edits are logged and the previous catalog stays active.
func (r *Registry) Watch(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("template catalog watcher: %w", err)
	}
	// Editors replace files by rename, so watch the directory and filter by name.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				cat, err := LoadCatalog(abs)
				if err != nil {
					r.log.Warn("templates: catalog reload failed; keeping previous", "error", err, "path", abs)
					continue
				}
				r.Apply(cat)
				r.log.Info("templates: catalog reloaded", "path", abs, "templates", len(cat.Templates))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.log.Warn("templates: catalog watcher error", "error", err)
			}
		}
	}()
	return nil
}
