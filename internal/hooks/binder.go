package hooks

import (
	"fmt"
	"slices"
)

// Wildcard expands to every route name known at bind time.
const Wildcard = "*"

// Binder validates hook targets against the configured route-name set before
// they reach the registry, so a typoed route fails at registration instead of
// silently never firing. The set is supplied as a function because route
// names are themselves configuration-dependent.
type Binder struct {
	Registry *Registry
	Known    func() []string
}

func NewBinder(reg *Registry, known func() []string) *Binder {
	return &Binder{Registry: reg, Known: known}
}

// Bind attaches callbacks to routes. A single "*" target expands to every
// currently known route. With one callback, it is attached to every listed
// route; with one callback per route they pair positionally. Any other
// arity, and any route name outside the known set, is a hard error.
func (b *Binder) Bind(phase Phase, routes []string, cbs ...Callback) error {
	if len(cbs) == 0 {
		return ErrNilCallback
	}
	known := b.Known()

	if len(routes) == 1 && routes[0] == Wildcard {
		if len(cbs) != 1 {
			return fmt.Errorf("hooks: wildcard target takes exactly one callback, got %d", len(cbs))
		}
		routes = known
	} else if len(cbs) != 1 && len(cbs) != len(routes) {
		return fmt.Errorf("hooks: %d callbacks cannot pair with %d routes", len(cbs), len(routes))
	}

	for _, route := range routes {
		if !slices.Contains(known, route) {
			return fmt.Errorf("hooks: unknown route %q", route)
		}
	}
	for i, route := range routes {
		cb := cbs[0]
		if len(cbs) > 1 {
			cb = cbs[i]
		}
		if err := b.Registry.Add(phase, route, cb); err != nil {
			return err
		}
	}
	return nil
}

// On attaches one callback to one named route (or "*").
func (b *Binder) On(phase Phase, route string, cb Callback) error {
	return b.Bind(phase, []string{route}, cb)
}
