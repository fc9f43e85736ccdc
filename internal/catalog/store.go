package catalog

import "context"

type Store interface {
	ListSortedByID(ctx context.Context, portal string) ([]Product, error)
	Get(ctx context.Context, portal, id string) (Product, bool, error)
	Ping(ctx context.Context) error
}
