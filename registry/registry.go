// Package registry contains the handler registry: listener objects registered under a name,
// so configuration can refer to them by that name.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrHandlerNotFound matches every HandlerNotFoundError with errors.Is.
var ErrHandlerNotFound = errors.New("handler not found")

// HandlerNotFoundError is returned by Lookup for names which were never registered.
type HandlerNotFoundError struct {
	Name string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered with name %q", e.Name)
}

func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// Registry holds handlers by name. It is safe for concurrent use.
type Registry struct {
	handlers map[string]interface{}
	lock     sync.RWMutex
}

func New() *Registry {
	return &Registry{handlers: map[string]interface{}{}}
}

// Register adds handler under name. Names are case-sensitive and must be unique.
func (r *Registry) Register(name string, handler interface{}) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("handler name cannot be empty")
	}
	if handler == nil {
		return errors.Errorf("handler %s cannot be nil", name)
	}
	if v := reflect.ValueOf(handler); isNilable(v.Kind()) && v.IsNil() {
		return errors.Errorf("handler %s cannot be nil", name)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.handlers[name]; ok {
		return errors.Errorf("handler %s already exists", name)
	}
	r.handlers[name] = handler

	return nil
}

// MustRegister works like Register, but panics on error.
func (r *Registry) MustRegister(name string, handler interface{}) {
	if err := r.Register(name, handler); err != nil {
		panic(err)
	}
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (interface{}, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	handler, ok := r.handlers[name]
	if !ok {
		return nil, &HandlerNotFoundError{Name: name}
	}

	return handler, nil
}

// Names returns the names of all registered handlers, sorted.
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func isNilable(kind reflect.Kind) bool {
	switch kind {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}
