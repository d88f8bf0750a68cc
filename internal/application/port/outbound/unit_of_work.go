package outbound

import (
	"context"
)

// RepositoryProvider hands out repositories bound to the running unit of work.
type RepositoryProvider interface {
	Order() OrderRepository
}

// UnitOfWork runs fn atomically. Units locking the same driver id are
// serialized; units on disjoint drivers never wait for each other.
type UnitOfWork interface {
	Do(ctx context.Context, driverIDs []string, fn func(provider RepositoryProvider) error) error
}
