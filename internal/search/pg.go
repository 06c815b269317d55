package search

import (
	"context"

	"grimoire/internal/entity"
	"grimoire/internal/store"
)

// EntityLister is the slice of the Postgres store that search reads from.
type EntityLister interface {
	ListEntities(ctx context.Context, t entity.Type, filter store.ListFilter) ([]entity.Summary, error)
}

// PgCollection lists entities straight from Postgres. The search text is not
// pushed down: ILIKE would drop typo and subsequence matches that the
// aggregator ranks in Go, so rows come back in name order one page at a time.
type PgCollection struct {
	store EntityLister
}

func NewPgCollection(s EntityLister) *PgCollection {
	return &PgCollection{store: s}
}

func (p *PgCollection) List(ctx context.Context, t entity.Type, f Filter) ([]Item, error) {
	return p.store.ListEntities(ctx, t, store.ListFilter{
		Status: f.Status,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}
