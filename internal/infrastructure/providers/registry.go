package providers

import (
	"fmt"
	"sort"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// StaticRegistry resolves the closed provider set to adapter instances.
// Built once at startup; construction fails when a duplicate adapter is
// registered, so a missing provider at runtime can only mean a disabled one.
type StaticRegistry struct {
	clients map[integration.Provider]integration.ProviderClient
}

// NewStaticRegistry creates a registry from the enabled adapters
func NewStaticRegistry(clients ...integration.ProviderClient) (*StaticRegistry, error) {
	registry := &StaticRegistry{
		clients: make(map[integration.Provider]integration.ProviderClient, len(clients)),
	}
	for _, client := range clients {
		provider := client.Provider()
		if !provider.IsValid() {
			return nil, fmt.Errorf("%w: %s", integration.ErrProviderInvalid, provider)
		}
		if _, exists := registry.clients[provider]; exists {
			return nil, fmt.Errorf("providers: duplicate adapter for %s", provider)
		}
		registry.clients[provider] = client
	}
	return registry, nil
}

// Get returns the adapter for the provider
func (r *StaticRegistry) Get(p integration.Provider) (integration.ProviderClient, error) {
	client, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrProviderNotConfigured, p)
	}
	return client, nil
}

// List returns all registered adapters in stable provider order
func (r *StaticRegistry) List() []integration.ProviderClient {
	clients := make([]integration.ProviderClient, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].Provider() < clients[j].Provider()
	})
	return clients
}

// Ensure StaticRegistry implements the Registry interface
var _ integration.Registry = (*StaticRegistry)(nil)
