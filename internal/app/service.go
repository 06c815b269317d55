package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"grimoire/internal/config"
	"grimoire/internal/entity"
	"grimoire/internal/refcodec"
	"grimoire/internal/render"
	"grimoire/internal/resolve"
	"grimoire/internal/search"
	"grimoire/internal/store"
	"grimoire/internal/util"
)

type dataStore interface {
	Ping(context.Context) error
	ListEntities(context.Context, entity.Type, store.ListFilter) ([]entity.Summary, error)
	GetEntity(context.Context, entity.Type, string) (entity.Detail, error)
	UpsertEntity(context.Context, entity.Detail) error
	CountEntities(context.Context) (int, error)
	LoadAll(context.Context, entity.Type) ([]entity.Detail, error)
}

type referenceSearcher interface {
	Search(ctx context.Context, query string, limit int, excludeID string) []search.Candidate
}

type searchIndexer interface {
	ReindexAll(context.Context, search.DetailLoader)
}

// viewMemo shares resolution outcomes of one view across API instances.
type viewMemo interface {
	ForView(viewID string) resolve.Memo
	Touch(ctx context.Context, viewID string) error
	DropView(ctx context.Context, viewID string) error
}

type viewRecord struct {
	cache     *resolve.Cache
	expiresAt time.Time
}

type Service struct {
	cfg      config.Config
	store    dataStore
	searcher referenceSearcher
	indexer  searchIndexer
	fetcher  resolve.Fetcher
	memo     viewMemo
	log      *zap.Logger

	viewTTL time.Duration
	viewMu  sync.Mutex
	views   map[string]*viewRecord
}

// Option customizes a Service beyond its required collaborators.
type Option func(*Service)

// WithSearchIndex pushes seeded entities to the search index.
func WithSearchIndex(idx searchIndexer) Option {
	return func(s *Service) { s.indexer = idx }
}

// WithViewMemo persists view outcomes outside the process.
func WithViewMemo(m viewMemo) Option {
	return func(s *Service) { s.memo = m }
}

func New(cfg config.Config, dataStore dataStore, collection search.Collection, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	agg := search.NewAggregator(collection, log)
	if cfg.SearchTimeout > 0 {
		agg.Timeout = cfg.SearchTimeout
	}
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		searcher: agg,
		fetcher:  resolve.NewStoreFetcher(dataStore),
		log:      log,
		viewTTL:  cfg.ViewTTL,
		views:    make(map[string]*viewRecord),
	}
	if s.viewTTL <= 0 {
		s.viewTTL = 30 * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap seeds the sample catalog into an empty database and reindexes
// search.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.cfg.Seed {
		count, err := s.store.CountEntities(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			for _, d := range seedCatalog() {
				if err := s.store.UpsertEntity(ctx, d); err != nil {
					return err
				}
			}
			s.log.Info("app: seeded sample catalog", zap.Int("entities", len(seedCatalog())))
		}
	}
	if s.indexer != nil {
		s.indexer.ReindexAll(ctx, s.store)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Checks pings the database and, when configured, the shared view memo.
func (s *Service) Checks(ctx context.Context) map[string]error {
	checks := map[string]error{"database": s.Ping(ctx)}
	if p, ok := s.memo.(interface{ Ping(context.Context) error }); ok {
		checks["view_memo"] = p.Ping(ctx)
	}
	return checks
}

func (s *Service) SearchReferences(ctx context.Context, query string, limit int, excludeID string) []search.Candidate {
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}
	return s.searcher.Search(ctx, query, limit, strings.TrimSpace(excludeID))
}

func (s *Service) EncodeReference(rawType, id, label string) (string, error) {
	t, err := parseType(rawType)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(id) == "" {
		return "", validationError("id is required", nil)
	}
	return refcodec.Encode(t, id, label), nil
}

func (s *Service) DecodeDocument(document string) []refcodec.Segment {
	return refcodec.Decode(document)
}

type RenderedDocument struct {
	HTML       string               `json:"html"`
	References []refcodec.Reference `json:"references"`
}

// RenderDocument turns a document into read-only HTML. When viewID names an
// open view its references are prefetched into that view.
func (s *Service) RenderDocument(document, viewID string) (RenderedDocument, error) {
	refs := refcodec.References(document)
	if refs == nil {
		refs = []refcodec.Reference{}
	}
	if viewID != "" {
		cache, err := s.viewCache(context.Background(), viewID)
		if err != nil {
			return RenderedDocument{}, err
		}
		for _, ref := range refs {
			cache.Prefetch(ref.Type, ref.ID)
		}
	}
	return RenderedDocument{HTML: render.HTML(document), References: refs}, nil
}

// OpenView starts a rendering context whose resolutions are cached until it
// has been idle for the view TTL.
func (s *Service) OpenView() string {
	id := util.NewID("view")
	var opts resolve.Options
	if s.memo != nil {
		opts.Memo = s.memo.ForView(id)
	}
	opts.Logger = s.log

	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	s.sweepViewsLocked(time.Now())
	s.views[id] = &viewRecord{
		cache:     resolve.NewCache(s.fetcher, opts),
		expiresAt: time.Now().Add(s.viewTTL),
	}
	return id
}

// CloseView discards a view and its cached outcomes.
func (s *Service) CloseView(ctx context.Context, viewID string) error {
	s.viewMu.Lock()
	_, ok := s.views[viewID]
	delete(s.views, viewID)
	s.viewMu.Unlock()
	if !ok {
		return errViewNotFound(viewID)
	}
	if s.memo != nil {
		if err := s.memo.DropView(ctx, viewID); err != nil {
			s.log.Warn("app: drop view memo", zap.String("view_id", viewID), zap.Error(err))
		}
	}
	return nil
}

// ResolveReference hydrates one reference. Without a view a throwaway cache
// is used. A missing target is a not_found outcome, never an error.
func (s *Service) ResolveReference(ctx context.Context, viewID, rawType, id string) (resolve.Outcome, error) {
	t, err := parseType(rawType)
	if err != nil {
		return resolve.Outcome{}, err
	}

	var cache *resolve.Cache
	if viewID == "" {
		cache = resolve.NewCache(s.fetcher, resolve.Options{Logger: s.log})
	} else {
		cache, err = s.viewCache(ctx, viewID)
		if err != nil {
			return resolve.Outcome{}, err
		}
	}
	return cache.Resolve(ctx, t, id), nil
}

func (s *Service) ListEntities(ctx context.Context, rawType string, filter store.ListFilter) ([]entity.Summary, error) {
	t, err := parseType(rawType)
	if err != nil {
		return nil, err
	}
	return s.store.ListEntities(ctx, t, filter)
}

func (s *Service) GetEntity(ctx context.Context, rawType, id string) (entity.Detail, error) {
	t, err := parseType(rawType)
	if err != nil {
		return entity.Detail{}, err
	}
	return s.store.GetEntity(ctx, t, id)
}

func (s *Service) viewCache(ctx context.Context, viewID string) (*resolve.Cache, error) {
	now := time.Now()
	s.viewMu.Lock()
	s.sweepViewsLocked(now)
	record, ok := s.views[viewID]
	if ok {
		record.expiresAt = now.Add(s.viewTTL)
	}
	s.viewMu.Unlock()

	if !ok {
		return nil, errViewNotFound(viewID)
	}
	if s.memo != nil {
		if err := s.memo.Touch(ctx, viewID); err != nil {
			s.log.Debug("app: touch view memo", zap.String("view_id", viewID), zap.Error(err))
		}
	}
	return record.cache, nil
}

func (s *Service) sweepViewsLocked(now time.Time) {
	for key, record := range s.views {
		if now.After(record.expiresAt) {
			delete(s.views, key)
		}
	}
}

func (s *Service) openViews() int {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return len(s.views)
}

func parseType(raw string) (entity.Type, error) {
	t, err := entity.Parse(raw)
	if err != nil {
		return "", unknownTypeError(raw, err)
	}
	return t, nil
}

// isNotFound reports whether err means the requested entity does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, entity.ErrNotFound)
}
