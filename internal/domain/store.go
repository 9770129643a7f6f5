package domain

import "context"

// TxManager runs fn as one atomic unit. Repositories called with the ctx passed
// to fn participate in the unit. Nested calls open a savepoint, so a failing
// inner unit rolls back alone.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OwnerRepository lists the owners that have anything to generate.
type OwnerRepository interface {
	ListOwnerIDs(ctx context.Context) ([]string, error)
}
