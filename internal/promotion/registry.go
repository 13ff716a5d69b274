package promotion

import (
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Strategy names accepted by the default registry.
const (
	NameBulkQuantity = "bulk_quantity"
	NamePercentage   = "percentage"
)

// ErrUnknownStrategy is returned when a configured strategy name has no
// registered factory.
var ErrUnknownStrategy = errors.New("unknown promotion strategy")

// Collaborators are the shared dependencies handed to strategy factories.
type Collaborators struct {
	Absolute   AbsolutePriceCalculator
	Percentage PercentagePriceCalculator
	Translator Translator
}

// Factory builds a registration. The result is expected to implement
// Strategy; anything else is skipped by the Evaluator.
type Factory func(Collaborators) any

// Registry resolves configured strategy names into registrations.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NameBulkQuantity, func(co Collaborators) any {
		return NewBulkQuantityStrategy(co.Absolute, co.Translator)
	})
	r.Register(NamePercentage, func(co Collaborators) any {
		return NewPercentageStrategy(co.Percentage, co.Translator)
	})
	return r
}

// Register binds name to f, replacing any previous factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve builds one registration per name, preserving order.
func (r *Registry) Resolve(names []string, co Collaborators) ([]any, error) {
	out := make([]any, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		f, ok := r.factories[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownStrategy, "%q (known: %s)", name, strings.Join(r.Names(), ", "))
		}
		out = append(out, f(co))
	}
	return out, nil
}
