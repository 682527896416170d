package autodiff

import "github.com/tellurio-ai/tellurio-go/registry"

// callableRegistry adapts registry.Registry[interface{}] to
// wire.CallableRegistrar so Encode can register an arbitrary Go func value
// under a freshly minted id (spec.md §9, "callable passing"). The
// reverse-call protocol that would invoke these callables is reserved but
// not implemented, matching the spec's "concrete reverse-call protocol is
// not fixed here".
type callableRegistry struct {
	reg *registry.Registry[interface{}]
}

func newCallableRegistry() *callableRegistry {
	return &callableRegistry{reg: registry.New[interface{}]("callable")}
}

// Get returns the callable registered under id, if any.
func (r *callableRegistry) Get(id string) (interface{}, bool) {
	return r.reg.Get(id)
}
