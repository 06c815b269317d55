package tui

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"grimoire/internal/refcodec"
	"grimoire/internal/render"
	"grimoire/internal/resolve"
)

type ReaderOptions struct {
	Styles     *Styles
	OpenDelay  time.Duration
	CloseDelay time.Duration
}

// Reader shows a read-only document. Moving the focus onto a reference badge
// acts as hovering it: the preview opens after the open delay and closes
// after the close delay once the focus moves away.
type Reader struct {
	styles   *Styles
	cache    *resolve.Cache
	segments []refcodec.Segment
	refs     []refcodec.Reference
	previews []*resolve.Preview
	focus    int

	mu     sync.Mutex
	states []resolve.PreviewState
	send   func(tea.Msg)
}

func NewReader(document string, cache *resolve.Cache, opts ReaderOptions) *Reader {
	if opts.Styles == nil {
		opts.Styles = DefaultStyles()
	}
	segments := refcodec.Decode(document)
	refs := topLevelReferences(segments)
	r := &Reader{
		styles:   opts.Styles,
		cache:    cache,
		segments: segments,
		refs:     refs,
		previews: make([]*resolve.Preview, len(refs)),
		states:   make([]resolve.PreviewState, len(refs)),
		focus:    -1,
	}
	for i, ref := range refs {
		r.previews[i] = resolve.NewPreview(cache, ref.Type, ref.ID, resolve.PreviewOptions{
			OpenDelay:  opts.OpenDelay,
			CloseDelay: opts.CloseDelay,
			OnChange:   r.onChange(i),
		})
	}
	return r
}

// Bind connects background redraws to a running program, normally
// program.Send.
func (r *Reader) Bind(send func(tea.Msg)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.send = send
}

func (r *Reader) onChange(i int) func(resolve.PreviewState) {
	return func(s resolve.PreviewState) {
		r.mu.Lock()
		r.states[i] = s
		send := r.send
		r.mu.Unlock()
		if send != nil {
			go send(refreshMsg{})
		}
	}
}

func (r *Reader) Init() tea.Cmd {
	return nil
}

func (r *Reader) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return r, nil
	}
	switch key.String() {
	case "tab", "right", "l":
		r.moveFocus(1)
	case "shift+tab", "left", "h":
		r.moveFocus(-1)
	case "q", "esc", "ctrl+c":
		r.Close()
		return r, tea.Quit
	}
	return r, nil
}

func (r *Reader) moveFocus(delta int) {
	n := len(r.previews)
	if n == 0 {
		return
	}
	if r.focus >= 0 {
		r.previews[r.focus].Leave()
	}
	if r.focus < 0 && delta < 0 {
		r.focus = n - 1
	} else {
		r.focus = ((r.focus+delta)%n + n) % n
	}
	r.previews[r.focus].Enter()
}

// Close stops every preview timer and waits for in-flight fetches.
func (r *Reader) Close() {
	for _, p := range r.previews {
		p.Close()
	}
	r.cache.Wait()
}

// Focus returns the index of the focused reference, or -1.
func (r *Reader) Focus() int {
	return r.focus
}

func (r *Reader) state(i int) resolve.PreviewState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[i]
}

func (r *Reader) View() string {
	var b strings.Builder
	b.WriteString(renderSegments(r.styles, r.segments, r.focus))
	b.WriteString("\n\n")

	for i := range r.refs {
		s := r.state(i)
		if !s.Visible {
			continue
		}
		b.WriteString(r.renderPopover(r.refs[i], s.Outcome))
		b.WriteString("\n")
	}

	b.WriteString(r.styles.Help.Render("tab/→ next reference · shift+tab/← previous · q quit"))
	return b.String()
}

func (r *Reader) renderPopover(ref refcodec.Reference, o resolve.Outcome) string {
	if o.State != resolve.StateReady || o.Detail == nil {
		text := o.Placeholder()
		if text == "" {
			text = refcodec.PlainLabel(ref)
		}
		return r.styles.Popover.Render(r.styles.Muted.Render(text))
	}

	d := o.Detail
	lines := []string{
		r.styles.Badge(d.Type, false).Render(d.Name) + " " + r.styles.Muted.Render(d.Type.String()),
	}
	if attrs := formatPairs(d.Attributes, " · "); attrs != "" {
		lines = append(lines, r.styles.Muted.Render(attrs))
	}
	if desc := render.PlainText(d.Description); desc != "" {
		lines = append(lines, r.styles.Normal.Render(desc))
	}
	return r.styles.Popover.Render(strings.Join(lines, "\n"))
}
