package backend

import (
	"context"
	"net/url"
	"strconv"

	"github.com/felixgeelhaar/stockbook/internal/api"
)

// Resource is a REST collection of T under one path.
type Resource[T any] struct {
	r    Requester
	path string
}

// NewResource returns the collection at path, relative to the base URL.
func NewResource[T any](r Requester, path string) *Resource[T] {
	return &Resource[T]{r: r, path: path}
}

// Path returns the collection path.
func (res *Resource[T]) Path() string {
	return res.path
}

func (res *Resource[T]) item(id int) string {
	return res.path + "/" + strconv.Itoa(id)
}

// List fetches the collection, filtered by params.
func (res *Resource[T]) List(ctx context.Context, params url.Values) ([]T, error) {
	resp, err := res.r.Get(ctx, res.path, params)
	if err != nil {
		return nil, normalize(err)
	}
	return api.Decode[[]T](resp)
}

// Get fetches one item.
func (res *Resource[T]) Get(ctx context.Context, id int) (T, error) {
	var zero T
	resp, err := res.r.Get(ctx, res.item(id), nil)
	if err != nil {
		return zero, normalize(err)
	}
	return api.Decode[T](resp)
}

// Create posts v and returns what the server stored.
func (res *Resource[T]) Create(ctx context.Context, v T) (T, error) {
	var zero T
	resp, err := res.r.Post(ctx, res.path, v)
	if err != nil {
		return zero, normalize(err)
	}
	return api.Decode[T](resp)
}

// Update patches item id with the given fields.
func (res *Resource[T]) Update(ctx context.Context, id int, fields any) (T, error) {
	var zero T
	resp, err := res.r.Patch(ctx, res.item(id), fields)
	if err != nil {
		return zero, normalize(err)
	}
	return api.Decode[T](resp)
}

// Delete removes item id.
func (res *Resource[T]) Delete(ctx context.Context, id int) error {
	_, err := res.r.Delete(ctx, res.item(id))
	return normalize(err)
}
