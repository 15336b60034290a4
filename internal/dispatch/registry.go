package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownCallable is returned when a name resolves to nothing.
var ErrUnknownCallable = errors.New("unknown callable")

// Kind separates decision stages from skills. Each kind has its own budget counter.
type Kind int

const (
	KindSkill Kind = iota
	KindReasoner
)

func (k Kind) String() string {
	if k == KindReasoner {
		return "reasoner"
	}
	return "skill"
}

func (k Kind) namespace() string {
	if k == KindReasoner {
		return "reasoners"
	}
	return "skills"
}

// Callable is a registered skill or decision stage.
type Callable struct {
	Name  string // {node}.{reasoners|skills}.{short}
	Short string
	Kind  Kind
	Tags  []string

	invoke func(context.Context, Call) (any, error)
}

// Skill wraps a typed skill function for registration.
func Skill[C Call, R any](short string, fn func(context.Context, C) (R, error), tags ...string) Callable {
	return newCallable(KindSkill, short, fn, tags)
}

// Reasoner wraps a typed decision-stage function for registration.
func Reasoner[C Call, R any](short string, fn func(context.Context, C) (R, error), tags ...string) Callable {
	return newCallable(KindReasoner, short, fn, tags)
}

func newCallable[C Call, R any](kind Kind, short string, fn func(context.Context, C) (R, error), tags []string) Callable {
	return Callable{
		Short: short,
		Kind:  kind,
		Tags:  tags,
		invoke: func(ctx context.Context, call Call) (any, error) {
			typed, ok := call.(C)
			if !ok {
				return nil, fmt.Errorf("%s %q cannot accept %T", kind, short, call)
			}
			return fn(ctx, typed)
		},
	}
}

// Registry maps fully-qualified names to callables for one node.
// It is built once at startup and passed to the engine.
type Registry struct {
	node      string
	callables map[string]*Callable
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry for the given node id.
func NewRegistry(node string) *Registry {
	return &Registry{
		node:      node,
		callables: make(map[string]*Callable),
	}
}

// Node returns the node id used as the namespace prefix.
func (r *Registry) Node() string {
	return r.node
}

// Register adds a callable under {node}.{kind}.{short}.
// If a callable with the same name already exists, it will be replaced.
func (r *Registry) Register(c Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.Name = r.qualify(c.Kind, c.Short)
	r.callables[c.Name] = &c
}

func (r *Registry) qualify(kind Kind, short string) string {
	return r.node + "." + kind.namespace() + "." + short
}

// Resolve finds a callable by fully-qualified or short name. A short name
// present in both namespaces resolves to the reasoner.
func (r *Registry) Resolve(name string) (*Callable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if strings.HasPrefix(name, r.node+".reasoners.") || strings.HasPrefix(name, r.node+".skills.") {
		if c, ok := r.callables[name]; ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallable, name)
	}

	if c, ok := r.callables[name]; ok {
		return c, nil
	}
	if c, ok := r.callables[r.qualify(KindReasoner, name)]; ok {
		return c, nil
	}
	if c, ok := r.callables[r.qualify(KindSkill, name)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCallable, name)
}

// Has returns true if the name resolves.
func (r *Registry) Has(name string) bool {
	_, err := r.Resolve(name)
	return err == nil
}

// Count returns the number of registered callables.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.callables)
}

// Names returns the sorted fully-qualified names of one kind.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.callables))
	for name, c := range r.callables {
		if c.Kind == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
