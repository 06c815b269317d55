// Package resolve hydrates references on demand and caches the outcome for
// the lifetime of one rendering context.
package resolve

import (
	"context"
	"fmt"
	"net/url"

	"grimoire/internal/entity"
)

// Fetcher loads the full detail of one entity. A missing entity is reported
// as entity.ErrNotFound.
type Fetcher interface {
	Detail(ctx context.Context, t entity.Type, id string) (entity.Detail, error)
}

// DetailGetter is the store method StoreFetcher wraps.
type DetailGetter interface {
	GetEntity(ctx context.Context, t entity.Type, id string) (entity.Detail, error)
}

// StoreFetcher reads details straight from the database.
type StoreFetcher struct {
	store DetailGetter
}

func NewStoreFetcher(s DetailGetter) *StoreFetcher {
	return &StoreFetcher{store: s}
}

func (f *StoreFetcher) Detail(ctx context.Context, t entity.Type, id string) (entity.Detail, error) {
	return f.store.GetEntity(ctx, t, id)
}

// JSONGetter is the part of the API client HTTPFetcher needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// HTTPFetcher reads details through the API's per-collection endpoints.
type HTTPFetcher struct {
	client     JSONGetter
	isNotFound func(error) bool
}

// NewHTTPFetcher builds a fetcher; isNotFound classifies client errors that
// mean the entity does not exist.
func NewHTTPFetcher(client JSONGetter, isNotFound func(error) bool) *HTTPFetcher {
	return &HTTPFetcher{client: client, isNotFound: isNotFound}
}

func (f *HTTPFetcher) Detail(ctx context.Context, t entity.Type, id string) (entity.Detail, error) {
	path, err := detailPath(t, id)
	if err != nil {
		return entity.Detail{}, err
	}

	var detail entity.Detail
	if err := f.client.GetJSON(ctx, path, nil, &detail); err != nil {
		if f.isNotFound != nil && f.isNotFound(err) {
			return entity.Detail{}, fmt.Errorf("%s %s: %w", t, id, entity.ErrNotFound)
		}
		return entity.Detail{}, err
	}
	detail.Type = t
	return detail, nil
}

func detailPath(t entity.Type, id string) (string, error) {
	escaped := url.PathEscape(id)
	switch t {
	case entity.Rule:
		return "/api/rules/" + escaped, nil
	case entity.Ability:
		return "/api/abilities/" + escaped, nil
	case entity.Feat:
		return "/api/feats/" + escaped, nil
	case entity.Spell:
		return "/api/spells/" + escaped, nil
	default:
		return "", fmt.Errorf("%w: %q", entity.ErrUnknownType, string(t))
	}
}
