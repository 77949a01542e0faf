// Package hooks stores and executes ordered callback chains keyed by
// (phase, route). Third parties register callbacks against named routes and
// the chains run around the route handlers: request-phase before the handler
// body, response-phase after the body is built but before serialization.
package hooks

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
)

// Phase names an extension point in the request lifecycle.
type Phase string

const (
	Request  Phase = "request"
	Response Phase = "response"
)

// RequestInfo is the request snapshot handed to every callback.
type RequestInfo struct {
	Method string
	Route  string
	Path   string
	Params map[string]string
	Header http.Header
	UserID string
}

// ResponseInfo carries the response under construction. Response-phase hooks
// mutate Body in place; during the request phase Body is nil.
type ResponseInfo struct {
	Status int
	Body   map[string]any
}

// Advance continues the chain. Calling it with a nil error runs the next
// callback (or the terminal callback after the last one); calling it with an
// error skips every remaining callback and routes to the error terminal.
// Advance is single-shot per callback; extra calls are ignored.
type Advance func(err error)

// Callback is one registered hook.
type Callback func(req *RequestInfo, res *ResponseInfo, advance Advance)

// HaltError lets a hook short-circuit with a specific HTTP status, e.g. an
// auth hook rejecting with 401.
type HaltError struct {
	Status  int
	Message string
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("hook halted: %d %s", e.Status, e.Message)
}

// Halt builds a HaltError for use with advance.
func Halt(status int, msg string) error {
	return &HaltError{Status: status, Message: msg}
}

var (
	ErrBadPhase    = errors.New("hooks: phase must be request or response")
	ErrNilCallback = errors.New("hooks: callback must not be nil")
	ErrEmptyRoute  = errors.New("hooks: route must not be empty")
)

type chainKey struct {
	phase Phase
	route string
}

// Registry owns the hook chains for the process lifetime. Chains are rebuilt
// fresh each start; nothing is persisted.
type Registry struct {
	mu     sync.RWMutex
	chains map[chainKey][]Callback
}

func NewRegistry() *Registry {
	return &Registry{chains: make(map[chainKey][]Callback)}
}

// Add appends the callback to the ordered chain for (phase, route).
func (r *Registry) Add(phase Phase, route string, cb Callback) error {
	if phase != Request && phase != Response {
		return ErrBadPhase
	}
	if route == "" {
		return ErrEmptyRoute
	}
	if cb == nil {
		return ErrNilCallback
	}
	k := chainKey{phase: phase, route: route}
	r.mu.Lock()
	r.chains[k] = append(r.chains[k], cb)
	r.mu.Unlock()
	return nil
}

// Remove deletes the first callback matching cb by identity, or the whole
// chain when cb is nil. A chain emptied by removal disappears from the key
// set, indistinguishable from one never registered.
func (r *Registry) Remove(phase Phase, route string, cb Callback) {
	k := chainKey{phase: phase, route: route}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb == nil {
		delete(r.chains, k)
		return
	}
	want := reflect.ValueOf(cb).Pointer()
	chain := r.chains[k]
	for i, c := range chain {
		if reflect.ValueOf(c).Pointer() == want {
			chain = append(chain[:i:i], chain[i+1:]...)
			break
		}
	}
	if len(chain) == 0 {
		delete(r.chains, k)
		return
	}
	r.chains[k] = chain
}

// Routes reports the route names that currently have a non-empty chain for
// the phase.
func (r *Registry) Routes(phase Phase) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var routes []string
	for k := range r.chains {
		if k.phase == phase {
			routes = append(routes, k.route)
		}
	}
	return routes
}

// Len reports the chain length for (phase, route).
func (r *Registry) Len(phase Phase, route string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chains[chainKey{phase: phase, route: route}])
}

// Execute runs the chain for (phase, route) in registration order. Each
// callback receives an advance bound to its own position, so the cursor only
// ever moves forward over the remaining list; advancing past the last
// callback invokes terminal. advance(err) aborts: remaining callbacks are
// skipped and fail receives the error. An empty chain invokes terminal
// immediately. A callback that never advances stalls the request; no timeout
// is applied here.
func (r *Registry) Execute(phase Phase, route string, req *RequestInfo, res *ResponseInfo, terminal func(), fail func(error)) {
	r.mu.RLock()
	stored := r.chains[chainKey{phase: phase, route: route}]
	chain := make([]Callback, len(stored))
	copy(chain, stored)
	r.mu.RUnlock()

	if fail == nil {
		fail = func(error) {}
	}
	if len(chain) == 0 {
		terminal()
		return
	}

	var run func(i int)
	run = func(i int) {
		if i >= len(chain) {
			terminal()
			return
		}
		var once sync.Once
		chain[i](req, res, func(err error) {
			once.Do(func() {
				if err != nil {
					fail(err)
					return
				}
				run(i + 1)
			})
		})
	}
	run(0)
}
