// Package provider defines the adapter contract for content sources and the
// registry the resolver fans out over.
package provider

import (
	"context"

	"anisync/models"
)

// Adapter describes a pluggable content source capable of searching for media
// by title. Adapters are network-facing scrapers; Search fails with a
// provider-local error on network or parse failure.
type Adapter interface {
	Name() string
	MediaType() models.MediaType
	Search(ctx context.Context, query string) ([]models.ProviderResult, error)
}

// Getter is the optional fast-path capability: adapters keeping their own
// canonical-ID index can resolve an ID directly, skipping fuzzy matching.
type Getter interface {
	GetByID(ctx context.Context, id string) (*models.Record, error)
}

// Registry is an immutable adapter list constructed once at startup and
// passed by reference into the orchestrator.
type Registry struct {
	adapters []Adapter
}

// NewRegistry copies the adapter list so later mutation of the input slice
// cannot change the registry.
func NewRegistry(adapters ...Adapter) *Registry {
	list := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		if a != nil {
			list = append(list, a)
		}
	}
	return &Registry{adapters: list}
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []Adapter {
	return r.adapters
}

// ForType returns the adapters serving the given media type, in registration
// order.
func (r *Registry) ForType(t models.MediaType) []Adapter {
	var out []Adapter
	for _, a := range r.adapters {
		if a.MediaType() == t {
			out = append(out, a)
		}
	}
	return out
}
