package storage

import "context"

// ProviderIndex records, per target URL, the pages that referenced it in discovery order.
// Duplicates are kept.
type ProviderIndex interface {
	Append(ctx context.Context, target, referrer string) error
	Providers(ctx context.Context, target string) ([]string, error)
	Close() error
}
