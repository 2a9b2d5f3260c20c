// Package scene keeps the named fields a console session works with and
// builds them from YAML scene files.
package scene

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

var (
	// ErrFieldNotFound is returned by GetField for unknown names.
	ErrFieldNotFound = errors.New("field not found")
	// ErrDuplicateField is returned when a name is registered twice.
	ErrDuplicateField = errors.New("duplicate field")
)

// Registry is an insertion-ordered set of named fields. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	fields map[string]field.Field
	grid   *geom.GridCell
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fields: make(map[string]field.Field)}
}

// SetGrid records the scene grid point clouds are rasterized onto for
// display and export.
func (r *Registry) SetGrid(cell geom.GridCell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grid = &cell
}

// Grid returns the scene grid, if one was set.
func (r *Registry) Grid() (geom.GridCell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.grid == nil {
		return geom.GridCell{}, false
	}
	return *r.grid, true
}

// Add registers f under name.
func (r *Registry) Add(name string, f field.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.put(name, f, false)
}

// Put registers or replaces f under name. A replaced name keeps its
// position.
func (r *Registry) Put(name string, f field.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.put(name, f, true)
}

func (r *Registry) put(name string, f field.Field, replace bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty field name", field.ErrInvalidArgument)
	}
	if f == nil {
		return fmt.Errorf("%w: nil field %q", field.ErrInvalidArgument, name)
	}
	if _, ok := r.fields[name]; ok {
		if !replace {
			return fmt.Errorf("%w: %q", ErrDuplicateField, name)
		}
	} else {
		r.names = append(r.names, name)
	}
	r.fields[name] = f
	return nil
}

// GetField returns the field registered under name. Unknown names fail
// with ErrFieldNotFound and list the available names.
func (r *Registry) GetField(name string) (field.Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q, available fields are [%s]", ErrFieldNotFound, name, strings.Join(r.names, ", "))
	}
	return f, nil
}

// Names returns all names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Len returns the number of registered fields.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// OrderedNames returns the registered names in display order: names from
// display that exist come first in the order given, then the rest in
// registration order.
func (r *Registry) OrderedNames(display []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.names))
	seen := make(map[string]bool, len(r.names))
	for _, name := range display {
		if _, ok := r.fields[name]; ok && !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	for _, name := range r.names {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}
