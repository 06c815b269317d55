// Package suggest drives the "type @ to reference" candidate list for one
// editing surface.
package suggest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"grimoire/internal/refcodec"
	"grimoire/internal/search"
	"grimoire/internal/util"
)

const (
	DefaultDebounce = 200 * time.Millisecond
	DefaultLimit    = 8
	DefaultTrigger  = '@'
)

type State int

const (
	Idle State = iota
	Triggered
	Populated
	Committed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Triggered:
		return "triggered"
	case Populated:
		return "populated"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyEnter
	KeyEscape
)

// Range is a span of rune offsets in the editing surface's text.
type Range struct {
	From int
	To   int
}

// Searcher is satisfied by *search.Aggregator.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, excludeID string) []search.Candidate
}

// Surface is the editing widget hosting the candidate list.
type Surface interface {
	// Insert replaces r with token.
	Insert(r Range, token string)
	// Render is called whenever the visible list changes.
	Render(v View)
}

// View is a snapshot of what the floating list should show.
type View struct {
	State      State
	Visible    bool
	Query      string
	Loading    bool
	Candidates []search.Candidate
	Cursor     int
	// Empty is set when a finished query produced no candidates.
	Empty bool
}

type Options struct {
	Debounce time.Duration
	Limit    int
	// ExcludeID is the id of the entity being edited, never suggested.
	ExcludeID string
	Logger    *zap.Logger
}

// Controller is the per-surface suggestion state machine. All methods are
// safe for concurrent use; search results arrive on timer goroutines.
type Controller struct {
	searcher Searcher
	surface  Surface
	limit    int
	exclude  string
	log      *zap.Logger
	debounce *util.Debouncer

	mu         sync.Mutex
	state      State
	trigger    Range
	query      string
	candidates []search.Candidate
	cursor     int
	loading    bool
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	seq        uint64

	renderMu     sync.Mutex
	lastRendered uint64
}

func NewController(searcher Searcher, surface Surface, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		searcher: searcher,
		surface:  surface,
		limit:    opts.Limit,
		exclude:  opts.ExcludeID,
		log:      opts.Logger,
		debounce: util.NewDebouncer(opts.Debounce),
	}
}

func (c *Controller) active() bool {
	return c.state == Triggered || c.state == Populated
}

// Open starts a suggestion cycle for the trigger at r. Calling Open while a
// cycle is active restarts it.
func (c *Controller) Open(r Range, query string) {
	c.mu.Lock()
	c.teardownLocked()
	c.state = Triggered
	c.trigger = r
	c.query = query
	c.candidates = nil
	c.cursor = 0
	c.loading = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.scheduleLocked()
	v, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.render(v, seq)
}

// Update records a keystroke inside an active cycle. The trigger range end
// follows the query.
func (c *Controller) Update(query string) {
	c.mu.Lock()
	if !c.active() {
		c.mu.Unlock()
		return
	}
	c.query = query
	c.trigger.To = c.trigger.From + 1 + len([]rune(query))
	c.loading = true
	c.scheduleLocked()
	v, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.render(v, seq)
}

// Key handles navigation keys. It reports whether the key was consumed.
func (c *Controller) Key(k Key) bool {
	c.mu.Lock()
	if !c.active() {
		c.mu.Unlock()
		return false
	}

	switch k {
	case KeyUp, KeyDown:
		n := len(c.candidates)
		if n > 0 {
			if k == KeyUp {
				c.cursor = (c.cursor - 1 + n) % n
			} else {
				c.cursor = (c.cursor + 1) % n
			}
		}
		v, seq := c.snapshotLocked()
		c.mu.Unlock()
		c.render(v, seq)
		return true
	case KeyEnter:
		if len(c.candidates) == 0 {
			c.mu.Unlock()
			return false
		}
		c.commitLocked(c.cursor)
		return true
	case KeyEscape:
		c.cancelLocked()
		return true
	default:
		c.mu.Unlock()
		return false
	}
}

// Select commits the candidate at index i, as a pointer click would.
func (c *Controller) Select(i int) bool {
	c.mu.Lock()
	if !c.active() || i < 0 || i >= len(c.candidates) {
		c.mu.Unlock()
		return false
	}
	c.commitLocked(i)
	return true
}

// Blur cancels the cycle when the surface loses focus.
func (c *Controller) Blur() {
	c.Cancel()
}

// Cancel ends the cycle without inserting anything.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if !c.active() {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
}

// Close stops pending timers regardless of state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.teardownLocked()
	if c.active() {
		c.state = Cancelled
	}
	c.mu.Unlock()
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.snapshotLocked()
	return v
}

// commitLocked releases c.mu.
func (c *Controller) commitLocked(i int) {
	cand := c.candidates[i]
	token := refcodec.Encode(cand.EntityType, cand.ID, cand.Label)
	r := c.trigger
	c.teardownLocked()
	c.state = Committed
	v, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.surface.Insert(r, token)
	c.render(v, seq)
}

// cancelLocked releases c.mu.
func (c *Controller) cancelLocked() {
	c.teardownLocked()
	c.state = Cancelled
	v, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.render(v, seq)
}

// teardownLocked invalidates any scheduled or in-flight search.
func (c *Controller) teardownLocked() {
	c.generation++
	c.debounce.Cancel()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.candidates = nil
	c.cursor = 0
	c.loading = false
}

func (c *Controller) scheduleLocked() {
	c.generation++
	gen, query, ctx := c.generation, c.query, c.ctx
	c.debounce.Debounce(func() {
		c.run(ctx, gen, query)
	})
}

func (c *Controller) run(ctx context.Context, gen uint64, query string) {
	c.mu.Lock()
	if gen != c.generation || !c.active() {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	results := c.searcher.Search(ctx, query, c.limit, c.exclude)

	c.mu.Lock()
	if gen != c.generation || !c.active() {
		c.mu.Unlock()
		c.log.Debug("suggest: discarding stale results", zap.String("query", query))
		return
	}
	c.candidates = results
	c.cursor = 0
	c.loading = false
	c.state = Populated
	v, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.render(v, seq)
}

func (c *Controller) snapshotLocked() (View, uint64) {
	c.seq++
	v := View{
		State:   c.state,
		Visible: c.active(),
		Query:   c.query,
		Loading: c.loading,
		Cursor:  c.cursor,
	}
	if v.Visible {
		v.Candidates = append([]search.Candidate(nil), c.candidates...)
		v.Empty = len(c.candidates) == 0 && !c.loading
	}
	return v, c.seq
}

// render drops snapshots older than one already shown, since renders happen
// outside c.mu.
func (c *Controller) render(v View, seq uint64) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if seq <= c.lastRendered {
		return
	}
	c.lastRendered = seq
	c.surface.Render(v)
}
