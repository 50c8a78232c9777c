package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
)

// Handler executes one kind of claimed run.
type Handler interface {
	Kind() animation.JobKind
	Run(ctx *Context) error
}

var ErrDuplicateHandler = errors.New("handler already registered")

type Registry struct {
	mu       sync.RWMutex
	handlers map[animation.JobKind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[animation.JobKind]Handler)}
}

// Register adds handlers in order and stops at the first one that is nil, has no
// kind, or repeats a kind already present.
func (r *Registry) Register(hs ...Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hs {
		if h == nil {
			return errors.New("nil handler")
		}
		kind := h.Kind()
		if kind == animation.JobKindNone {
			return fmt.Errorf("handler %T has no job kind", h)
		}
		if _, dup := r.handlers[kind]; dup {
			return fmt.Errorf("%w: job_kind=%s", ErrDuplicateHandler, kind)
		}
		r.handlers[kind] = h
	}
	return nil
}

func (r *Registry) Get(kind animation.JobKind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds lists registered job kinds, sorted.
func (r *Registry) Kinds() []animation.JobKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]animation.JobKind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
