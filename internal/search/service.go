package search

import (
	"context"

	"go.uber.org/zap"

	"grimoire/internal/entity"
	"grimoire/internal/render"
)

// DetailLoader reads every entity of a type for reindexing.
type DetailLoader interface {
	LoadAll(ctx context.Context, t entity.Type) ([]entity.Detail, error)
}

// Service is the Collection facade: Meilisearch when healthy, Postgres
// otherwise. The choice is made per collection and per call.
type Service struct {
	meili *Meili
	pg    Collection
	log   *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pg Collection, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{meili: meili, pg: pg, log: log}
}

// List reads from Meilisearch while it is healthy and falls back to
// Postgres on any Meilisearch error. Both return the same name-ordered page.
func (s *Service) List(ctx context.Context, t entity.Type, f Filter) ([]Item, error) {
	if s.meiliReady() {
		items, err := s.meili.List(ctx, t, f)
		if err == nil {
			return items, nil
		}
		s.log.Warn("search: meilisearch error, falling back to postgres",
			zap.String("entity_type", t.String()), zap.Error(err))
	}
	return s.pg.List(ctx, t, f)
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// RecordFromDetail flattens a detail into its index document. The rich-text
// description is reduced to plain text so references and markup are not
// matched as words.
func RecordFromDetail(d entity.Detail) Record {
	return Record{
		ID:          d.ID,
		Name:        d.Name,
		Description: render.PlainText(d.Description),
		Status:      d.Status,
		Attributes:  d.Attributes,
	}
}

// ReindexAll reads every collection from loader and pushes it to
// Meilisearch. Called during bootstrap.
func (s *Service) ReindexAll(ctx context.Context, loader DetailLoader) {
	if !s.meiliReady() || loader == nil {
		return
	}
	for _, t := range entity.All() {
		details, err := loader.LoadAll(ctx, t)
		if err != nil {
			s.log.Warn("search: reindex load failed", zap.String("entity_type", t.String()), zap.Error(err))
			continue
		}
		records := make([]Record, 0, len(details))
		for _, d := range details {
			records = append(records, RecordFromDetail(d))
		}
		if err := s.meili.IndexRecords(t, records); err != nil {
			s.log.Warn("search: reindex", zap.String("entity_type", t.String()), zap.Error(err))
			continue
		}
		s.log.Info("search: reindexed", zap.String("entity_type", t.String()), zap.Int("count", len(records)))
	}
}
