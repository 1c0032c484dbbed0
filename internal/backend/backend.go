// Package backend holds the feature API modules: typed calls for each
// inventory endpoint, built on the shared api.Client.
package backend

import (
	"context"
	"net/url"

	"github.com/felixgeelhaar/stockbook/internal/api"
	"github.com/felixgeelhaar/stockbook/internal/domain"
)

// Requester is the subset of *api.Client the modules use.
type Requester interface {
	Get(ctx context.Context, path string, params url.Values) (*api.Response, error)
	Post(ctx context.Context, path string, body any) (*api.Response, error)
	Patch(ctx context.Context, path string, body any) (*api.Response, error)
	Delete(ctx context.Context, path string) (*api.Response, error)
}

// API groups every feature module.
type API struct {
	Auth         *Auth
	Clients      *Resource[domain.Client]
	Products     *Resource[domain.Product]
	Warehouses   *Resource[domain.Warehouse]
	Transactions *Resource[domain.Transaction]
}

// New builds all modules over r.
func New(r Requester) *API {
	return &API{
		Auth:         &Auth{r: r},
		Clients:      NewResource[domain.Client](r, "clients"),
		Products:     NewResource[domain.Product](r, "products"),
		Warehouses:   NewResource[domain.Warehouse](r, "warehouses"),
		Transactions: NewResource[domain.Transaction](r, "transactions"),
	}
}

// normalize keeps a nil error nil; api.Normalize returns a typed nil pointer.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	return api.Normalize(err)
}
