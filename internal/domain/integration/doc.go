// Package integration contains the domain model for the multi-provider
// synchronization engine: credentials and their token lifecycle, integration
// state, sync/health/webhook records, and the port interfaces implemented by
// the infrastructure layer (provider clients, repositories, notifiers).
//
// The package follows the Ports & Adapters pattern: everything here is pure
// domain logic with no transport or persistence dependencies. Concrete
// provider adapters live in internal/infrastructure/providers and GORM
// repositories in internal/infrastructure/persistence.
package integration
