package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// AdapterEnv is the environment variable consulted as the last step of
// adapter resolution.
const AdapterEnv = "STORE_ADAPTER"

// ErrNoAdapterConfigured reports that no adapter name could be resolved from
// the argument, the process configuration, or the environment.
var ErrNoAdapterConfigured = errors.New("store: no adapter configured")

// UnknownAdapterError reports a resolved name with no registered factory.
type UnknownAdapterError struct {
	Name string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("store: unknown adapter %q", e.Name)
}

// Factory constructs a fresh, unconnected adapter instance.
type Factory func() Adapter

// Binding is the adapter instance currently bound to live traffic.
type Binding struct {
	Name    string
	Adapter Adapter
}

// Registry maps lowercase adapter names to factories and owns the single
// active binding for the process.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	active    *Binding
	logger    *logrus.Logger
}

func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{factories: make(map[string]Factory), logger: logger}
}

// Register adds an adapter type under a name. Meant for startup wiring, not
// request time; later registrations under the same name win.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Resolve picks an adapter by precedence: explicit name, then the configured
// name carried in opts, then the STORE_ADAPTER environment variable.
func (r *Registry) Resolve(name string, opts Options) (Factory, string, error) {
	if name == "" {
		name = opts.Adapter
	}
	if name == "" {
		name = os.Getenv(AdapterEnv)
	}
	if name == "" {
		return nil, "", ErrNoAdapterConfigured
	}
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.Lock()
	f, ok := r.factories[name]
	r.mu.Unlock()
	if !ok {
		return nil, "", &UnknownAdapterError{Name: name}
	}
	return f, name, nil
}

// Open resolves an adapter, connects it once, and caches it as the active
// binding. Subsequent calls return the cached binding; switching to a
// different adapter requires Close first. A connect failure with
// opts.ExitOnFail terminates the process.
func (r *Registry) Open(ctx context.Context, name string, opts Options) (*Binding, error) {
	f, resolved, err := r.Resolve(name, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		if r.active.Name == resolved {
			return r.active, nil
		}
		return nil, fmt.Errorf("store: adapter %q already active, disconnect before switching to %q", r.active.Name, resolved)
	}

	adapter := f()
	if err := adapter.Connect(ctx, opts); err != nil {
		if opts.ExitOnFail {
			r.logger.WithError(err).WithField("adapter", resolved).Fatal("store connect failed")
		}
		return nil, fmt.Errorf("store: connect %s: %w", resolved, err)
	}
	r.logger.WithField("adapter", resolved).Info("store connected")
	r.active = &Binding{Name: resolved, Adapter: adapter}
	return r.active, nil
}

// Active returns the bound adapter handlers should use.
func (r *Registry) Active() (*Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, ErrNoAdapterConfigured
	}
	return r.active, nil
}

// Close disconnects and clears the active binding.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	err := r.active.Adapter.Disconnect(ctx)
	r.active = nil
	return err
}
