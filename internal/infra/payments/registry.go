// Package payments resolves payment providers by method and callback name.
package payments

import (
	"strings"

	"hotelbooking/internal/app/policies"
	domainbooking "hotelbooking/internal/domain/booking"
)

// Registry implements both policies.DispatcherRegistry and
// policies.GatewayRegistry.
type Registry struct {
	dispatchers map[domainbooking.PaymentMethod]policies.PaymentDispatcher
	verifiers   map[string]policies.CallbackVerifier
	checkers    map[domainbooking.PaymentMethod]policies.StatusChecker
}

func NewRegistry() *Registry {
	return &Registry{
		dispatchers: make(map[domainbooking.PaymentMethod]policies.PaymentDispatcher),
		verifiers:   make(map[string]policies.CallbackVerifier),
		checkers:    make(map[domainbooking.PaymentMethod]policies.StatusChecker),
	}
}

// Register adds a dispatcher for method. When the dispatcher also verifies
// callbacks or answers status queries it is registered for those too, the
// callbacks under provider.
func (r *Registry) Register(method domainbooking.PaymentMethod, provider string, d policies.PaymentDispatcher) *Registry {
	r.dispatchers[method] = d
	if v, ok := d.(policies.CallbackVerifier); ok && provider != "" {
		r.verifiers[strings.ToLower(provider)] = v
	}
	if c, ok := d.(policies.StatusChecker); ok {
		r.checkers[method] = c
	}
	return r
}

func (r *Registry) Dispatcher(method domainbooking.PaymentMethod) (policies.PaymentDispatcher, bool) {
	d, ok := r.dispatchers[method]
	return d, ok
}

func (r *Registry) Verifier(provider string) (policies.CallbackVerifier, bool) {
	v, ok := r.verifiers[strings.ToLower(provider)]
	return v, ok
}

func (r *Registry) StatusChecker(method domainbooking.PaymentMethod) (policies.StatusChecker, bool) {
	c, ok := r.checkers[method]
	return c, ok
}

var (
	_ policies.DispatcherRegistry = (*Registry)(nil)
	_ policies.GatewayRegistry    = (*Registry)(nil)
)
