package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"grimoire/internal/config"
	"grimoire/internal/entity"
	"grimoire/internal/refcodec"
	"grimoire/internal/resolve"
	"grimoire/internal/search"
	"grimoire/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	entities map[string]entity.Detail
	gets     int
	listErr  map[entity.Type]error
}

func fakeKey(t entity.Type, id string) string {
	return t.Slug() + ":" + id
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) ListEntities(ctx context.Context, t entity.Type, filter store.ListFilter) ([]entity.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[t]; err != nil {
		return nil, err
	}
	var out []entity.Summary
	for _, d := range f.entities {
		if d.Type != t {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, d.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) GetEntity(ctx context.Context, t entity.Type, id string) (entity.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	d, ok := f.entities[fakeKey(t, id)]
	if !ok {
		return entity.Detail{}, entity.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) UpsertEntity(ctx context.Context, d entity.Detail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entities == nil {
		f.entities = make(map[string]entity.Detail)
	}
	f.entities[fakeKey(d.Type, d.ID)] = d
	return nil
}

func (f *fakeStore) CountEntities(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities), nil
}

func (f *fakeStore) LoadAll(ctx context.Context, t entity.Type) ([]entity.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Detail
	for _, d := range f.entities {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type fakeIndexer struct {
	reindexed int
}

func (f *fakeIndexer) ReindexAll(ctx context.Context, loader search.DetailLoader) {
	f.reindexed++
}

func newSeededService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	fs := &fakeStore{}
	svc := New(config.Config{Seed: true}, fs, search.NewPgCollection(fs), nil)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	return svc, fs
}

func TestBootstrapSeedsEmptyStoreOnce(t *testing.T) {
	fs := &fakeStore{}
	idx := &fakeIndexer{}
	svc := New(config.Config{Seed: true}, fs, search.NewPgCollection(fs), nil, WithSearchIndex(idx))

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	seeded, _ := fs.CountEntities(context.Background())
	if seeded != len(seedCatalog()) {
		t.Fatalf("expected %d seeded entities, got %d", len(seedCatalog()), seeded)
	}

	fs.entities[fakeKey(entity.Rule, "rule-queda")] = entity.Detail{Type: entity.Rule, ID: "rule-queda", Name: "Editada", Status: entity.StatusActive}
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("second Bootstrap() error = %v", err)
	}
	if got := fs.entities[fakeKey(entity.Rule, "rule-queda")].Name; got != "Editada" {
		t.Errorf("expected non-empty store to be left alone, got name %q", got)
	}
	if idx.reindexed != 2 {
		t.Errorf("expected reindex on every bootstrap, got %d", idx.reindexed)
	}
}

func TestSeedCatalogReferencesResolve(t *testing.T) {
	catalog := seedCatalog()
	byKey := make(map[string]entity.Detail, len(catalog))
	for _, d := range catalog {
		byKey[fakeKey(d.Type, d.ID)] = d
	}
	for _, d := range catalog {
		for _, ref := range refcodec.References(d.Description) {
			if _, ok := byKey[fakeKey(ref.Type, ref.ID)]; !ok {
				t.Errorf("%s references missing %s:%s", d.ID, ref.Type, ref.ID)
			}
		}
	}
}

func TestSearchReferencesRanksAcrossTypes(t *testing.T) {
	svc, _ := newSeededService(t)

	got := svc.SearchReferences(context.Background(), "fogo", 0, "")
	if len(got) < 2 {
		t.Fatalf("expected at least two candidates, got %+v", got)
	}
	if got[0].Label != "Fogo" || got[0].EntityType != entity.Spell {
		t.Errorf("expected exact spell first, got %+v", got[0])
	}

	excluded := svc.SearchReferences(context.Background(), "fogo", 0, "spell-fogo")
	for _, c := range excluded {
		if c.ID == "spell-fogo" {
			t.Errorf("excluded id returned: %+v", c)
		}
	}
}

func TestSearchReferencesSkipsInactive(t *testing.T) {
	svc, _ := newSeededService(t)

	for _, c := range svc.SearchReferences(context.Background(), "iniciativa", 50, "") {
		if c.ID == "rule-iniciativa-antiga" {
			t.Fatalf("inactive entity suggested: %+v", c)
		}
	}
}

func TestEncodeReferenceValidates(t *testing.T) {
	svc, _ := newSeededService(t)

	token, err := svc.EncodeReference("spells", "spell-fogo", "Fogo")
	if err != nil {
		t.Fatalf("EncodeReference() error = %v", err)
	}
	if !strings.Contains(token, `data-entity-type="Spell"`) {
		t.Errorf("unexpected token %q", token)
	}

	tests := []struct {
		name       string
		entityType string
		id         string
		wantStatus int
	}{
		{name: "unknown type", entityType: "Monster", id: "x", wantStatus: 400},
		{name: "missing id", entityType: "Rule", id: " ", wantStatus: 422},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.EncodeReference(tt.entityType, tt.id, "label")
			var domainErr *DomainError
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected DomainError, got %v", err)
			}
			if domainErr.Status != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, domainErr.Status)
			}
			if tt.wantStatus == 400 && !errors.Is(err, entity.ErrUnknownType) {
				t.Errorf("expected error to wrap ErrUnknownType, got %v", err)
			}
		})
	}
}

func TestResolveReferenceWithinViewFetchesOnce(t *testing.T) {
	svc, fs := newSeededService(t)
	viewID := svc.OpenView()

	for i := 0; i < 3; i++ {
		outcome, err := svc.ResolveReference(context.Background(), viewID, "Spell", "spell-bola-de-fogo")
		if err != nil {
			t.Fatalf("ResolveReference() error = %v", err)
		}
		if outcome.State != resolve.StateReady || outcome.Detail.Name != "Bola de Fogo" {
			t.Fatalf("unexpected outcome %+v", outcome)
		}
	}
	if fs.getCount() != 1 {
		t.Errorf("expected one fetch per view, got %d", fs.getCount())
	}
}

func TestResolveReferenceMissingAndInactive(t *testing.T) {
	svc, _ := newSeededService(t)

	tests := []struct {
		name string
		typ  string
		id   string
	}{
		{name: "missing", typ: "Feat", id: "feat-nope"},
		{name: "inactive", typ: "Rule", id: "rule-iniciativa-antiga"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := svc.ResolveReference(context.Background(), "", tt.typ, tt.id)
			if err != nil {
				t.Fatalf("ResolveReference() error = %v", err)
			}
			if outcome.State != resolve.StateNotFound {
				t.Errorf("expected not_found, got %+v", outcome)
			}
		})
	}
}

func TestViewLifecycle(t *testing.T) {
	svc, _ := newSeededService(t)
	svc.viewTTL = 20 * time.Millisecond

	viewID := svc.OpenView()
	if _, err := svc.ResolveReference(context.Background(), viewID, "Rule", "rule-agarrar"); err != nil {
		t.Fatalf("ResolveReference() error = %v", err)
	}

	time.Sleep(40 * time.Millisecond)
	_, err := svc.ResolveReference(context.Background(), viewID, "Rule", "rule-agarrar")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VIEW_NOT_FOUND" {
		t.Fatalf("expected expired view, got %v", err)
	}
	if svc.openViews() != 0 {
		t.Errorf("expected expired view to be swept, got %d open", svc.openViews())
	}

	other := svc.OpenView()
	if err := svc.CloseView(context.Background(), other); err != nil {
		t.Fatalf("CloseView() error = %v", err)
	}
	if err := svc.CloseView(context.Background(), other); err == nil {
		t.Error("expected closing twice to fail")
	}
}

func TestRenderDocumentPrefetchesIntoView(t *testing.T) {
	svc, fs := newSeededService(t)
	viewID := svc.OpenView()
	detail, _ := fs.GetEntity(context.Background(), entity.Spell, "spell-bola-de-fogo")

	rendered, err := svc.RenderDocument(detail.Description, viewID)
	if err != nil {
		t.Fatalf("RenderDocument() error = %v", err)
	}
	if len(rendered.References) != 2 {
		t.Fatalf("expected two references, got %+v", rendered.References)
	}
	if !strings.Contains(rendered.HTML, `class="ref ref-spell"`) {
		t.Errorf("expected spell badge in %q", rendered.HTML)
	}

	cache, err := svc.viewCache(context.Background(), viewID)
	if err != nil {
		t.Fatalf("viewCache() error = %v", err)
	}
	cache.Wait()
	if o, ok := cache.Peek(entity.Spell, "spell-fogo"); !ok || o.State != resolve.StateReady {
		t.Errorf("expected prefetched outcome, got %+v (cached=%v)", o, ok)
	}

	if _, err := svc.RenderDocument(detail.Description, "view_missing"); err == nil {
		t.Error("expected unknown view to fail")
	}
}
