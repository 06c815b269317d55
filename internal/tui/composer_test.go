package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"grimoire/internal/entity"
	"grimoire/internal/refcodec"
	"grimoire/internal/search"
	"grimoire/internal/suggest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int, excludeID string) []search.Candidate {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	all := []search.Candidate{
		{ID: "spell-bola-de-fogo", Label: "Bola de Fogo", EntityType: entity.Spell, Hints: map[string]string{"circle": "3"}},
		{ID: "spell-fogo", Label: "Fogo", EntityType: entity.Spell},
		{ID: "rule-agarrar", Label: "Agarrar", EntityType: entity.Rule},
	}
	var out []search.Candidate
	for _, c := range all {
		if c.ID != excludeID && strings.Contains(strings.ToLower(c.Label), strings.ToLower(query)) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeSearcher) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func newTestComposer(t *testing.T, s suggest.Searcher) *Composer {
	t.Helper()
	c := NewComposer(s, ComposerOptions{Debounce: 5 * time.Millisecond})
	t.Cleanup(func() { c.ctrl.Close() })
	return c
}

func typeText(c *Composer, text string) {
	for _, r := range text {
		c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func press(c *Composer, k tea.KeyType) tea.Cmd {
	_, cmd := c.Update(tea.KeyMsg{Type: k})
	return cmd
}

func waitPopulated(t *testing.T, c *Composer) suggest.View {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.surf.current().State == suggest.Populated
	}, time.Second, 2*time.Millisecond)
	return c.surf.current()
}

func TestComposerInsertsPickedReference(t *testing.T) {
	s := &fakeSearcher{}
	c := newTestComposer(t, s)

	typeText(c, "Veja @fog")
	v := waitPopulated(t, c)
	assert.Equal(t, "fog", s.last())
	require.Len(t, v.Candidates, 2)
	assert.Contains(t, c.View(), "Bola de Fogo")

	press(c, tea.KeyDown)
	assert.Equal(t, 1, c.surf.current().Cursor)
	press(c, tea.KeyEnter)

	assert.False(t, c.surf.current().Visible)
	assert.Empty(t, c.input.Value())

	typeText(c, " queima")
	want := "Veja " + refcodec.Encode(entity.Spell, "spell-fogo", "Fogo") + " queima"
	assert.Equal(t, want, c.Document())

	cmd := press(c, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.False(t, c.Aborted())
}

func TestComposerEscapeCancelsWithoutInserting(t *testing.T) {
	c := newTestComposer(t, &fakeSearcher{})

	typeText(c, "@aga")
	waitPopulated(t, c)

	press(c, tea.KeyEsc)
	v := c.surf.current()
	assert.Equal(t, suggest.Cancelled, v.State)
	assert.False(t, v.Visible)
	assert.Equal(t, "@aga", c.Document())

	// A second escape leaves the composer.
	cmd := press(c, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.True(t, c.Aborted())
}

func TestComposerWhitespaceEndsTrigger(t *testing.T) {
	c := newTestComposer(t, &fakeSearcher{})

	typeText(c, "@fo")
	assert.True(t, c.surf.current().Visible)

	typeText(c, " ")
	assert.False(t, c.surf.current().Visible)
	assert.Equal(t, suggest.Cancelled, c.surf.current().State)
}

func TestComposerShowsNoResults(t *testing.T) {
	c := newTestComposer(t, &fakeSearcher{})

	typeText(c, "@zzz")
	v := waitPopulated(t, c)
	assert.True(t, v.Empty)
	assert.Contains(t, c.View(), "No results")
}

func TestComposerEscapesPlainText(t *testing.T) {
	c := newTestComposer(t, &fakeSearcher{})

	typeText(c, "a < b")
	assert.Equal(t, "a &lt; b", c.Document())
}
