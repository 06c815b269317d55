package resolve

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"grimoire/internal/entity"
)

type State string

const (
	StatePending     State = "pending"
	StateReady       State = "ready"
	StateNotFound    State = "not_found"
	StateUnavailable State = "unavailable"
)

// Outcome is the cached result of resolving one reference.
type Outcome struct {
	State  State          `json:"state"`
	Detail *entity.Detail `json:"detail,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// Placeholder is the text shown in place of a preview that has no detail.
func (o Outcome) Placeholder() string {
	switch o.State {
	case StatePending:
		return "Loading…"
	case StateNotFound, StateUnavailable:
		return "Unavailable"
	default:
		return ""
	}
}

// Key identifies one resolvable reference.
type Key struct {
	Type entity.Type
	ID   string
}

func (k Key) String() string {
	return k.Type.Slug() + ":" + k.ID
}

// Memo persists outcomes beyond a single Cache value, e.g. across the
// requests of one server-side view.
type Memo interface {
	Load(ctx context.Context, key string) (Outcome, bool, error)
	Store(ctx context.Context, key string, o Outcome) error
}

const DefaultFetchTimeout = 5 * time.Second

type Options struct {
	Memo         Memo
	FetchTimeout time.Duration
	Logger       *zap.Logger
}

type entry struct {
	done    chan struct{}
	outcome Outcome
}

// Cache resolves each key at most once. Failures are cached like successes;
// nothing is invalidated until the Cache is discarded.
type Cache struct {
	fetcher Fetcher
	memo    Memo
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	entries map[Key]*entry
	wg      sync.WaitGroup
}

func NewCache(fetcher Fetcher, opts Options) *Cache {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		fetcher: fetcher,
		memo:    opts.Memo,
		timeout: opts.FetchTimeout,
		log:     opts.Logger,
		entries: make(map[Key]*entry),
	}
}

// Resolve blocks until the outcome for (t, id) is known or ctx is done, in
// which case a pending outcome is returned and the fetch keeps running.
func (c *Cache) Resolve(ctx context.Context, t entity.Type, id string) Outcome {
	e := c.start(Key{Type: t, ID: id})
	select {
	case <-e.done:
		return e.outcome
	case <-ctx.Done():
		return Outcome{State: StatePending}
	}
}

// Peek returns the outcome without waiting. ok is false when the key was
// never requested.
func (c *Cache) Peek(t entity.Type, id string) (Outcome, bool) {
	c.mu.Lock()
	e, ok := c.entries[Key{Type: t, ID: id}]
	c.mu.Unlock()
	if !ok {
		return Outcome{}, false
	}
	select {
	case <-e.done:
		return e.outcome, true
	default:
		return Outcome{State: StatePending}, true
	}
}

// Prefetch starts resolving (t, id) without waiting.
func (c *Cache) Prefetch(t entity.Type, id string) {
	c.start(Key{Type: t, ID: id})
}

// Wait blocks until every started fetch has finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) start(k Key) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok {
		return e
	}
	e := &entry{done: make(chan struct{})}
	c.entries[k] = e
	c.wg.Add(1)
	go c.fetch(k, e)
	return e
}

func (c *Cache) fetch(k Key, e *entry) {
	defer c.wg.Done()
	defer close(e.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if c.memo != nil {
		o, ok, err := c.memo.Load(ctx, k.String())
		if err != nil {
			c.log.Warn("resolve: memo load failed", zap.String("key", k.String()), zap.Error(err))
		}
		if ok {
			e.outcome = o
			return
		}
	}

	e.outcome = c.load(ctx, k)

	if c.memo != nil {
		if err := c.memo.Store(ctx, k.String(), e.outcome); err != nil {
			c.log.Warn("resolve: memo store failed", zap.String("key", k.String()), zap.Error(err))
		}
	}
}

func (c *Cache) load(ctx context.Context, k Key) Outcome {
	if !k.Type.Valid() {
		return Outcome{State: StateNotFound, Err: entity.ErrUnknownType.Error()}
	}
	detail, err := c.fetcher.Detail(ctx, k.Type, k.ID)
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return Outcome{State: StateNotFound}
	case err != nil:
		c.log.Info("resolve: fetch failed", zap.String("key", k.String()), zap.Error(err))
		return Outcome{State: StateUnavailable, Err: err.Error()}
	case !detail.Active():
		// Deactivated targets resolve like deleted ones.
		return Outcome{State: StateNotFound}
	default:
		return Outcome{State: StateReady, Detail: &detail}
	}
}
