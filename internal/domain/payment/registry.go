package payment

import (
	"github.com/go-faster/errors"
)

// ErrUnknownProvider is returned when a payment method has no registered
// verifier.
var ErrUnknownProvider = errors.New("unknown payment provider")

// Registry maps payment methods to their verification adapters. Adding a
// provider is a single Register call at wiring time; the orchestrator never
// branches on provider names itself.
//
// The registry is populated once during startup and read-only afterwards, so
// it needs no locking.
type Registry struct {
	verifiers map[Method]Verifier
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[Method]Verifier)}
}

// Register binds a verifier to a payment method, replacing any previous
// binding for the same method.
func (r *Registry) Register(m Method, v Verifier) {
	r.verifiers[m] = v
}

// Lookup returns the verifier for the given method.
// It returns ErrUnknownProvider when the method is not registered.
func (r *Registry) Lookup(m Method) (Verifier, error) {
	v, ok := r.verifiers[m]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProvider, "%q", m)
	}
	return v, nil
}

// Supported reports whether the given method has a registered verifier.
func (r *Registry) Supported(m Method) bool {
	_, ok := r.verifiers[m]
	return ok
}
