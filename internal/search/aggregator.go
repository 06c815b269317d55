package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"grimoire/internal/entity"
	"grimoire/internal/render"
)

const (
	DefaultLimit   = 10
	MaxLimit       = 50
	DefaultTimeout = 2 * time.Second
	// DefaultPageSize is how many rows one collection request asks for.
	// Collections are paged until exhausted.
	DefaultPageSize = 200

	secondaryPreview = 140
)

// Score bands keep the matchers ordered: any subsequence match outranks any
// typo match, which outranks a description hit.
const (
	bandFuzzy     = 10000
	bandTypo      = 5000
	bandSecondary = 1000
)

// Aggregator queries every entity collection and ranks the merged result.
type Aggregator struct {
	collection Collection
	log        *zap.Logger

	Timeout  time.Duration
	PageSize int
}

func NewAggregator(collection Collection, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		collection: collection,
		log:        log,
		Timeout:    DefaultTimeout,
		PageSize:   DefaultPageSize,
	}
}

// ClampLimit applies the default and maximum result counts.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Search returns at most limit candidates for query, never including
// excludeID. Collection failures are logged and skipped; the result is never
// nil.
func (a *Aggregator) Search(ctx context.Context, query string, limit int, excludeID string) []Candidate {
	limit = ClampLimit(limit)
	merged := a.gather(ctx, strings.TrimSpace(query))

	if excludeID != "" {
		kept := merged[:0]
		for _, c := range merged {
			if c.ID != excludeID {
				kept = append(kept, c)
			}
		}
		merged = kept
	}

	ranked := rank(fold(query), merged)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// gather fans out one List per type and concatenates results in the
// default type order.
func (a *Aggregator) gather(ctx context.Context, query string) []Candidate {
	types := entity.All()
	perType := make([][]Candidate, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			cctx := gctx
			if a.Timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(gctx, a.Timeout)
				defer cancel()
			}
			items, err := a.listAll(cctx, t, query)
			if err != nil {
				// One collection failing must not hide the others.
				a.log.Warn("search: collection query failed",
					zap.String("entity_type", t.String()),
					zap.Error(err))
				return nil
			}
			out := make([]Candidate, 0, len(items))
			for _, item := range items {
				if item.Status != "" && item.Status != entity.StatusActive {
					continue
				}
				out = append(out, candidateFromItem(t, item, render.PlainText(item.Description)))
			}
			perType[i] = out
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]Candidate, 0)
	for _, cs := range perType {
		merged = append(merged, cs...)
	}
	return merged
}

// listAll pages through one collection. It stops on a short or empty page,
// and on a page that adds no new ids, which is what a collection that
// ignores Offset returns.
func (a *Aggregator) listAll(ctx context.Context, t entity.Type, query string) ([]Item, error) {
	size := a.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	var all []Item
	seen := make(map[string]struct{})
	for offset := 0; ; offset += size {
		page, err := a.collection.List(ctx, t, Filter{
			Search: query,
			Status: entity.StatusActive,
			Limit:  size,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		added := 0
		for _, item := range page {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			all = append(all, item)
			added++
		}
		if len(page) < size || added == 0 {
			return all, nil
		}
	}
}

type labelSource []Candidate

func (s labelSource) String(i int) string { return fold(s[i].Label) }
func (s labelSource) Len() int            { return len(s) }

func rank(query string, candidates []Candidate) []Candidate {
	if query == "" {
		for i := range candidates {
			candidates[i].Secondary = preview(candidates[i].Secondary)
		}
		return candidates
	}

	scores := make([]int, len(candidates))
	matched := make([]bool, len(candidates))
	for _, m := range fuzzy.FindFrom(query, labelSource(candidates)) {
		scores[m.Index] = bandFuzzy + m.Score
		matched[m.Index] = true
	}

	q := []rune(query)
	for i, c := range candidates {
		if matched[i] {
			continue
		}
		if len(q) >= minTypoQuery {
			if d := typoDistance(query, fold(c.Label)); d <= typoThreshold(q) {
				scores[i] = bandTypo - 100*d
				matched[i] = true
				continue
			}
		}
		if c.Secondary != "" && strings.Contains(fold(c.Secondary), query) {
			scores[i] = bandSecondary
			matched[i] = true
		}
	}

	ranked := make([]Candidate, 0, len(candidates))
	for i, c := range candidates {
		if !matched[i] {
			continue
		}
		c.Score = scores[i]
		c.Secondary = preview(c.Secondary)
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func preview(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= secondaryPreview {
		return string(r)
	}
	return strings.TrimSpace(string(r[:secondaryPreview])) + "…"
}
