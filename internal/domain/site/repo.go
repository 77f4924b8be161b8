package site

import "context"

// Registry lists the known sites.
type Registry interface {
	GetSite(ctx context.Context, code string) (*Site, error)
	ListSites(ctx context.Context) ([]Site, error)
}

// RegistryWriter is implemented by registries that can be edited.
type RegistryWriter interface {
	UpsertSite(ctx context.Context, s *Site) error
}

// Store is an editable registry.
type Store interface {
	Registry
	RegistryWriter
}
