// Package dispatch routes incoming calls to locally registered capabilities.
//
// A capability is a named table of methods. Each method declares its arity and
// an invoker, so lookups and arity checks never inspect Go functions at call
// time. Func0..Func3 build table entries from typed functions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/efprojects/kitten-ipc/internal/protocol"
)

// Separator splits a call's method string into capability and method name.
const Separator = "."

// Method is one invocable entry of a capability.
type Method struct {
	Arity  int
	Invoke func(ctx context.Context, params []any) (any, error)
}

// Methods is a capability's method table keyed by method name.
type Methods map[string]Method

// Methods lets a plain table be registered as a Capability.
func (m Methods) Methods() Methods {
	return m
}

// Capability is implemented by anything exposing methods to the peer.
type Capability interface {
	Methods() Methods
}

// Registry is the immutable capability lookup used while dispatching.
type Registry struct {
	caps map[string]Methods
}

// NewRegistry snapshots every capability's method table.
func NewRegistry(caps map[string]Capability) (*Registry, error) {
	r := &Registry{caps: make(map[string]Methods, len(caps))}
	for name, capability := range caps {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("capability name must not be empty")
		}
		if strings.Contains(name, Separator) {
			return nil, fmt.Errorf("capability name %q must not contain %q", name, Separator)
		}
		if capability == nil {
			return nil, fmt.Errorf("capability %q is nil", name)
		}

		methods := make(Methods)
		for methodName, method := range capability.Methods() {
			if methodName == "" || strings.Contains(methodName, Separator) {
				return nil, fmt.Errorf("capability %q: invalid method name %q", name, methodName)
			}
			if method.Arity < 0 {
				return nil, fmt.Errorf("capability %q: method %q has negative arity", name, methodName)
			}
			if method.Invoke == nil {
				return nil, fmt.Errorf("capability %q: method %q has no invoker", name, methodName)
			}
			methods[methodName] = method
		}
		r.caps[name] = methods
	}
	return r, nil
}

// Names lists the registered capabilities in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a "<capability>.<name>" method string.
func (r *Registry) Lookup(method string) (Method, error) {
	parts := strings.Split(method, Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Method{}, fmt.Errorf("call malformed: %s", method)
	}

	capName, methodName := parts[0], parts[1]
	methods, ok := r.caps[capName]
	if !ok {
		return Method{}, fmt.Errorf("capability not found: %s", capName)
	}
	m, ok := methods[methodName]
	if !ok {
		return Method{}, fmt.Errorf("method not found: %s", method)
	}
	return m, nil
}

// Dispatch runs one Call message and returns the Response to send back.
func (r *Registry) Dispatch(ctx context.Context, call protocol.Message) protocol.Message {
	method, err := r.Lookup(call.Method)
	if err != nil {
		return protocol.NewError(call.ID, err)
	}

	if len(call.Params) != method.Arity {
		return protocol.NewError(call.ID, fmt.Errorf("argument count mismatch: expected %d, got %d", method.Arity, len(call.Params)))
	}

	result, err := invoke(ctx, method, call.Params)
	if err != nil {
		return protocol.NewError(call.ID, err)
	}
	return protocol.NewResult(call.ID, result)
}

func invoke(ctx context.Context, method Method, params []any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("handle call panicked: %v", rec)
		}
	}()
	return method.Invoke(ctx, params)
}
