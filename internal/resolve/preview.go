package resolve

import (
	"context"
	"sync"
	"time"

	"grimoire/internal/entity"
	"grimoire/internal/util"
)

const (
	DefaultOpenDelay  = 300 * time.Millisecond
	DefaultCloseDelay = 150 * time.Millisecond
)

// PreviewState is what the popover for one badge should show.
type PreviewState struct {
	Visible bool
	Outcome Outcome
}

type PreviewOptions struct {
	OpenDelay  time.Duration
	CloseDelay time.Duration
	// OnChange receives every visible change. It is called from timer
	// goroutines.
	OnChange func(PreviewState)
}

// Preview drives the hover popover of one rendered reference badge.
type Preview struct {
	cache    *Cache
	key      Key
	onChange func(PreviewState)
	opener   *util.Debouncer
	closer   *util.Debouncer

	mu      sync.Mutex
	visible bool
	gen     uint64
}

func NewPreview(cache *Cache, t entity.Type, id string, opts PreviewOptions) *Preview {
	if opts.OpenDelay <= 0 {
		opts.OpenDelay = DefaultOpenDelay
	}
	if opts.CloseDelay <= 0 {
		opts.CloseDelay = DefaultCloseDelay
	}
	if opts.OnChange == nil {
		opts.OnChange = func(PreviewState) {}
	}
	return &Preview{
		cache:    cache,
		key:      Key{Type: t, ID: id},
		onChange: opts.OnChange,
		opener:   util.NewDebouncer(opts.OpenDelay),
		closer:   util.NewDebouncer(opts.CloseDelay),
	}
}

// Enter is called when the pointer moves onto the badge or its popover.
func (p *Preview) Enter() {
	p.closer.Cancel()

	p.mu.Lock()
	visible := p.visible
	p.mu.Unlock()
	if visible {
		return
	}
	p.opener.Debounce(p.show)
}

// Leave is called when the pointer leaves the badge or its popover.
func (p *Preview) Leave() {
	p.opener.Cancel()

	p.mu.Lock()
	visible := p.visible
	p.mu.Unlock()
	if !visible {
		return
	}
	p.closer.Debounce(p.hide)
}

// Visible reports whether the popover is currently shown.
func (p *Preview) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Close cancels pending timers and hides the popover without notifying.
func (p *Preview) Close() {
	p.opener.Cancel()
	p.closer.Cancel()
	p.mu.Lock()
	p.visible = false
	p.gen++
	p.mu.Unlock()
}

func (p *Preview) show() {
	p.mu.Lock()
	if p.visible {
		p.mu.Unlock()
		return
	}
	p.visible = true
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	if o, ok := p.cache.Peek(p.key.Type, p.key.ID); ok && o.State != StatePending {
		p.notify(gen, PreviewState{Visible: true, Outcome: o})
		return
	}
	p.notify(gen, PreviewState{Visible: true, Outcome: Outcome{State: StatePending}})

	o := p.cache.Resolve(context.Background(), p.key.Type, p.key.ID)
	p.notify(gen, PreviewState{Visible: true, Outcome: o})
}

func (p *Preview) hide() {
	p.mu.Lock()
	if !p.visible {
		p.mu.Unlock()
		return
	}
	p.visible = false
	p.gen++
	p.mu.Unlock()

	p.onChange(PreviewState{Visible: false})
}

// notify drops updates from a show that has since been hidden.
func (p *Preview) notify(gen uint64, s PreviewState) {
	p.mu.Lock()
	current := p.gen == gen && p.visible
	p.mu.Unlock()
	if current {
		p.onChange(s)
	}
}
