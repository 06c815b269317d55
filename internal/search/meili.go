package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"grimoire/internal/entity"
)

const (
	indexPrefix = "grimoire_"
	// maxTotalHits lifts Meilisearch's default 1000-hit window so offset
	// paging can reach the end of a large collection.
	maxTotalHits = 100000
)

// Meili implements Collection over one Meilisearch index per entity type.
type Meili struct {
	client  meili.ServiceManager
	log     *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is not an error; the health loop keeps probing.
func NewMeili(url, apiKey string, log *zap.Logger) *Meili {
	if log == nil {
		log = zap.NewNop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		log:    log,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn("search: meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

// IndexName returns the Meilisearch index uid for t.
func IndexName(t entity.Type) string {
	return indexPrefix + t.Collection()
}

func (m *Meili) configureIndexes() {
	filterable := []interface{}{"status"}
	searchable := []string{"name", "description"}
	sortable := []string{"name", "id"}

	for _, t := range entity.All() {
		uid := IndexName(t)
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        uid,
			PrimaryKey: "id",
		}); err != nil {
			m.log.Debug("search: create index (may already exist)", zap.String("index", uid), zap.Error(err))
		}

		index := m.client.Index(uid)
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.log.Warn("search: update filterable attrs", zap.String("index", uid), zap.Error(err))
		}
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			m.log.Warn("search: update searchable attrs", zap.String("index", uid), zap.Error(err))
		}
		if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
			m.log.Warn("search: update sortable attrs", zap.String("index", uid), zap.Error(err))
		}
		if _, err := index.UpdatePagination(&meili.Pagination{MaxTotalHits: maxTotalHits}); err != nil {
			m.log.Warn("search: update pagination", zap.String("index", uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// List pages through the index for t in name order, filtered by status.
// The search text is never sent: Meilisearch's own matching drops short
// typo and subsequence matches, so ranking stays with the aggregator.
func (m *Meili) List(ctx context.Context, t entity.Type, f Filter) ([]Item, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := int64(f.Limit)
	if limit <= 0 {
		limit = DefaultPageSize
	}
	sr := &meili.SearchRequest{
		IndexUID: IndexName(t),
		Limit:    limit,
		Offset:   int64(f.Offset),
		Sort:     []string{"name:asc", "id:asc"},
	}
	if f.Status != "" {
		sr.Filter = []string{fmt.Sprintf("status = %q", f.Status)}
	}

	resp, err := m.client.MultiSearchWithContext(ctx, &meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search %s: %w", t, err)
	}

	items := make([]Item, 0)
	for _, res := range resp.Results {
		for _, hit := range res.Hits {
			items = append(items, hitToItem(hit, t))
		}
	}
	return items, nil
}

func hitToItem(hit meili.Hit, t entity.Type) Item {
	item := Item{
		Type:        t,
		ID:          decodeString(hit, "id"),
		Name:        decodeString(hit, "name"),
		Description: decodeString(hit, "description"),
		Status:      decodeString(hit, "status"),
	}
	if raw, ok := hit["attributes"]; ok {
		var attrs map[string]string
		if err := json.Unmarshal(raw, &attrs); err == nil && len(attrs) > 0 {
			item.Attributes = attrs
		}
	}
	return item
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexRecords adds or replaces records in the index for t.
func (m *Meili) IndexRecords(t entity.Type, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(IndexName(t)).AddDocuments(records, nil)
	return err
}
