package suggest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"grimoire/internal/entity"
	"grimoire/internal/refcodec"
	"grimoire/internal/search"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testDebounce = 20 * time.Millisecond

type searchCall struct {
	query   string
	limit   int
	exclude string
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	results map[string][]search.Candidate
	gates   map[string]chan struct{}
	started chan string
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		results: map[string][]search.Candidate{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int, excludeID string) []search.Candidate {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{query: query, limit: limit, exclude: excludeID})
	gate := f.gates[query]
	out := f.results[query]
	f.mu.Unlock()

	f.started <- query
	if gate != nil {
		<-gate
	}
	if out == nil {
		return []search.Candidate{}
	}
	return out
}

func (f *fakeSearcher) Calls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

type insertion struct {
	r     Range
	token string
}

type fakeSurface struct {
	mu      sync.Mutex
	inserts []insertion
	views   []View
}

func (s *fakeSurface) Insert(r Range, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, insertion{r: r, token: token})
}

func (s *fakeSurface) Render(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, v)
}

func (s *fakeSurface) Inserts() []insertion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]insertion(nil), s.inserts...)
}

func (s *fakeSurface) Last() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return View{}
	}
	return s.views[len(s.views)-1]
}

var spells = []search.Candidate{
	{ID: "s1", Label: "Fogo", EntityType: entity.Spell},
	{ID: "s2", Label: "Bola de Fogo", EntityType: entity.Spell},
	{ID: "a1", Label: "Força", EntityType: entity.Ability},
}

func newController(t *testing.T, s *fakeSearcher, opts Options) (*Controller, *fakeSurface) {
	t.Helper()
	surface := &fakeSurface{}
	if opts.Debounce == 0 {
		opts.Debounce = testDebounce
	}
	c := NewController(s, surface, opts)
	t.Cleanup(c.Close)
	return c, surface
}

func waitPopulated(t *testing.T, c *Controller) View {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.View().State == Populated
	}, time.Second, 5*time.Millisecond)
	return c.View()
}

func TestOpenShowsLoadingList(t *testing.T) {
	s := newFakeSearcher()
	c, surface := newController(t, s, Options{})

	c.Open(Range{From: 4, To: 5}, "")

	v := c.View()
	assert.Equal(t, Triggered, v.State)
	assert.True(t, v.Visible)
	assert.True(t, v.Loading)
	assert.False(t, v.Empty)
	assert.True(t, surface.Last().Loading)

	waitPopulated(t, c)
}

func TestDebounceIssuesOnlyLastQuery(t *testing.T) {
	s := newFakeSearcher()
	s.results["abc"] = spells
	c, _ := newController(t, s, Options{Debounce: 50 * time.Millisecond})

	c.Open(Range{From: 0, To: 2}, "a")
	c.Update("ab")
	c.Update("abc")

	v := waitPopulated(t, c)
	assert.Len(t, v.Candidates, 3)

	time.Sleep(80 * time.Millisecond)
	calls := s.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "abc", calls[0].query)
}

func TestSearchUsesLimitAndExclusion(t *testing.T) {
	s := newFakeSearcher()
	c, _ := newController(t, s, Options{ExcludeID: "s9"})

	c.Open(Range{}, "fo")
	waitPopulated(t, c)

	calls := s.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, DefaultLimit, calls[0].limit)
	assert.Equal(t, "s9", calls[0].exclude)
}

func TestStaleResultsAreDiscarded(t *testing.T) {
	s := newFakeSearcher()
	s.results["slow"] = []search.Candidate{{ID: "old", Label: "Old", EntityType: entity.Rule}}
	s.results["fast"] = spells
	gate := make(chan struct{})
	s.gates["slow"] = gate
	c, _ := newController(t, s, Options{})

	c.Open(Range{}, "slow")
	require.Equal(t, "slow", <-s.started)

	c.Update("fast")
	require.Equal(t, "fast", <-s.started)
	v := waitPopulated(t, c)
	require.Equal(t, "s1", v.Candidates[0].ID)

	close(gate)
	time.Sleep(30 * time.Millisecond)

	v = c.View()
	assert.Equal(t, "fast", v.Query)
	require.Len(t, v.Candidates, 3)
	assert.Equal(t, "s1", v.Candidates[0].ID)
}

func TestArrowKeysWrap(t *testing.T) {
	s := newFakeSearcher()
	s.results["fo"] = spells
	c, _ := newController(t, s, Options{})

	c.Open(Range{}, "fo")
	waitPopulated(t, c)

	assert.True(t, c.Key(KeyUp))
	assert.Equal(t, 2, c.View().Cursor)
	assert.True(t, c.Key(KeyDown))
	assert.Equal(t, 0, c.View().Cursor)
	assert.True(t, c.Key(KeyDown))
	assert.Equal(t, 1, c.View().Cursor)

	require.Len(t, s.Calls(), 1, "navigation must not search")
}

func TestEnterCommitsEncodedToken(t *testing.T) {
	s := newFakeSearcher()
	s.results["fo"] = spells
	c, surface := newController(t, s, Options{})

	trigger := Range{From: 5, To: 8}
	c.Open(trigger, "fo")
	waitPopulated(t, c)
	c.Key(KeyDown)

	assert.True(t, c.Key(KeyEnter))

	inserts := surface.Inserts()
	require.Len(t, inserts, 1)
	assert.Equal(t, trigger, inserts[0].r)
	assert.Equal(t, refcodec.Encode(entity.Spell, "s2", "Bola de Fogo"), inserts[0].token)

	v := c.View()
	assert.Equal(t, Committed, v.State)
	assert.False(t, v.Visible)
	assert.Empty(t, v.Candidates)
	assert.False(t, surface.Last().Visible)
}

func TestSelectCommitsByIndex(t *testing.T) {
	s := newFakeSearcher()
	s.results["fo"] = spells
	c, surface := newController(t, s, Options{})

	c.Open(Range{From: 0, To: 3}, "fo")
	waitPopulated(t, c)

	assert.False(t, c.Select(7))
	assert.True(t, c.Select(2))

	inserts := surface.Inserts()
	require.Len(t, inserts, 1)
	segs := refcodec.Decode(inserts[0].token)
	require.Len(t, segs, 1)
	assert.Equal(t, "a1", segs[0].Reference.ID)
	assert.Equal(t, entity.Ability, segs[0].Reference.Type)
	assert.Equal(t, "Força", segs[0].Reference.Label)
}

func TestUpdateMovesTriggerEnd(t *testing.T) {
	s := newFakeSearcher()
	s.results["bol"] = spells
	c, surface := newController(t, s, Options{})

	c.Open(Range{From: 5, To: 6}, "")
	c.Update("bol")
	waitPopulated(t, c)
	c.Key(KeyEnter)

	inserts := surface.Inserts()
	require.Len(t, inserts, 1)
	assert.Equal(t, Range{From: 5, To: 9}, inserts[0].r)
}

func TestEscapeCancelsAndIgnoresInFlight(t *testing.T) {
	s := newFakeSearcher()
	s.results["fo"] = spells
	gate := make(chan struct{})
	s.gates["fo"] = gate
	c, surface := newController(t, s, Options{})

	c.Open(Range{}, "fo")
	require.Equal(t, "fo", <-s.started)

	assert.True(t, c.Key(KeyEscape))
	close(gate)
	time.Sleep(30 * time.Millisecond)

	v := c.View()
	assert.Equal(t, Cancelled, v.State)
	assert.False(t, v.Visible)
	assert.Empty(t, v.Candidates)
	assert.Empty(t, surface.Inserts())
	assert.False(t, surface.Last().Visible)
}

func TestBlurCancels(t *testing.T) {
	s := newFakeSearcher()
	s.results["fo"] = spells
	c, surface := newController(t, s, Options{})

	c.Open(Range{}, "fo")
	waitPopulated(t, c)
	c.Blur()

	assert.Equal(t, Cancelled, c.View().State)
	assert.Empty(t, surface.Inserts())
	assert.False(t, c.Key(KeyEnter), "keys are ignored once cancelled")
}

func TestCancelBeforeDebounceSkipsSearch(t *testing.T) {
	s := newFakeSearcher()
	c, _ := newController(t, s, Options{Debounce: 40 * time.Millisecond})

	c.Open(Range{}, "fo")
	c.Cancel()
	time.Sleep(80 * time.Millisecond)

	assert.Empty(t, s.Calls())
	assert.Equal(t, Cancelled, c.View().State)
}

func TestNoResultsState(t *testing.T) {
	s := newFakeSearcher()
	c, surface := newController(t, s, Options{})

	c.Open(Range{}, "zzz")
	v := waitPopulated(t, c)

	assert.True(t, v.Visible)
	assert.True(t, v.Empty)
	assert.False(t, v.Loading)
	assert.True(t, surface.Last().Empty)
	assert.False(t, c.Key(KeyEnter), "enter with nothing to commit is not consumed")
}

func TestUpdateWhileIdleIsIgnored(t *testing.T) {
	s := newFakeSearcher()
	c, surface := newController(t, s, Options{})

	c.Update("fo")
	time.Sleep(2 * testDebounce)

	assert.Equal(t, Idle, c.View().State)
	assert.Empty(t, s.Calls())
	assert.Equal(t, View{}, surface.Last())
}

func TestReopenAfterCommit(t *testing.T) {
	s := newFakeSearcher()
	s.results["fo"] = spells
	c, surface := newController(t, s, Options{})

	c.Open(Range{}, "fo")
	waitPopulated(t, c)
	c.Key(KeyEnter)

	c.Open(Range{From: 10, To: 13}, "fo")
	waitPopulated(t, c)
	c.Key(KeyEnter)

	assert.Len(t, surface.Inserts(), 2)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "populated", Populated.String())
	assert.Equal(t, "unknown", State(42).String())
}
