package tui

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"grimoire/internal/refcodec"
	"grimoire/internal/suggest"
)

type ComposerOptions struct {
	Styles    *Styles
	Debounce  time.Duration
	Limit     int
	ExcludeID string
	Logger    *zap.Logger
}

// Composer is a one-line editor where typing @ opens the reference
// candidate list. Text before a committed reference moves into the document
// and is shown rendered above the input.
type Composer struct {
	styles *Styles
	input  textinput.Model
	ctrl   *suggest.Controller
	surf   *surface

	document  string
	lastValue string
	trigger   int
	aborted   bool
}

func NewComposer(searcher suggest.Searcher, opts ComposerOptions) *Composer {
	if opts.Styles == nil {
		opts.Styles = DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "Type text, @ to reference…"
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 72

	surf := &surface{}
	return &Composer{
		styles: opts.Styles,
		input:  ti,
		surf:   surf,
		ctrl: suggest.NewController(searcher, surf, suggest.Options{
			Debounce:  opts.Debounce,
			Limit:     opts.Limit,
			ExcludeID: opts.ExcludeID,
			Logger:    opts.Logger,
		}),
		trigger: -1,
	}
}

// Bind connects background redraws to a running program, normally
// program.Send.
func (c *Composer) Bind(send func(tea.Msg)) {
	c.surf.bind(send)
}

func (c *Composer) Init() tea.Cmd {
	return textinput.Blink
}

func (c *Composer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		return c, nil
	case tea.KeyMsg:
		return c.handleKey(msg)
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *Composer) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return c.finish(true)
	}

	if c.surf.current().Visible {
		//nolint:exhaustive // only list navigation is intercepted
		switch msg.Type {
		case tea.KeyUp:
			c.ctrl.Key(suggest.KeyUp)
			return c, nil
		case tea.KeyDown:
			c.ctrl.Key(suggest.KeyDown)
			return c, nil
		case tea.KeyEnter, tea.KeyTab:
			if c.ctrl.Key(suggest.KeyEnter) {
				c.applyInserts()
			}
			return c, nil
		case tea.KeyEsc:
			c.ctrl.Key(suggest.KeyEscape)
			return c, nil
		}
	}

	//nolint:exhaustive // remaining keys go to the input
	switch msg.Type {
	case tea.KeyEnter:
		return c.finish(false)
	case tea.KeyEsc:
		return c.finish(true)
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	c.syncTrigger()
	return c, cmd
}

// syncTrigger opens, updates or cancels the suggestion cycle to match the
// text around the caret.
func (c *Composer) syncTrigger() {
	value := c.input.Value()
	changed := value != c.lastValue
	c.lastValue = value

	r, query, ok := suggest.DetectTrigger(value, c.input.Position(), suggest.DefaultTrigger)
	active := c.surf.current().Visible

	switch {
	case !ok:
		c.trigger = -1
		if active {
			c.ctrl.Cancel()
		}
	case !changed:
	case !active || r.From != c.trigger:
		c.trigger = r.From
		c.ctrl.Open(r, query)
	default:
		c.ctrl.Update(query)
	}
}

func (c *Composer) applyInserts() {
	for _, ins := range c.surf.takeInserts() {
		runes := []rune(c.input.Value())
		from := clamp(ins.r.From, 0, len(runes))
		to := clamp(ins.r.To, from, len(runes))

		c.document += html.EscapeString(string(runes[:from])) + ins.token
		rest := string(runes[to:])
		c.input.SetValue(rest)
		c.input.SetCursor(0)
		c.lastValue = rest
		c.trigger = -1
	}
}

func (c *Composer) finish(aborted bool) (tea.Model, tea.Cmd) {
	c.ctrl.Close()
	c.aborted = aborted
	return c, tea.Quit
}

// Document is the composed rich text: committed text and tokens followed by
// whatever is still in the input.
func (c *Composer) Document() string {
	return c.document + html.EscapeString(c.input.Value())
}

// Aborted reports whether the user quit without accepting the document.
func (c *Composer) Aborted() bool {
	return c.aborted
}

func (c *Composer) View() string {
	var b strings.Builder
	b.WriteString(c.styles.Title.Render("Compose"))
	b.WriteString("\n\n")
	if c.document != "" {
		b.WriteString(renderSegments(c.styles, refcodec.Decode(c.document), -1))
		b.WriteString("\n")
	}
	b.WriteString(c.input.View())
	b.WriteString("\n")

	if list := c.renderList(c.surf.current()); list != "" {
		b.WriteString(list)
		b.WriteString("\n")
	}

	b.WriteString(c.styles.Help.Render("@ reference · ↑/↓ move · enter pick/accept · esc cancel"))
	return b.String()
}

func (c *Composer) renderList(v suggest.View) string {
	if !v.Visible {
		return ""
	}
	var lines []string
	switch {
	case v.Loading && len(v.Candidates) == 0:
		lines = append(lines, c.styles.Muted.Render("Searching…"))
	case v.Empty:
		lines = append(lines, c.styles.Muted.Render("No results"))
	}
	for i, cand := range v.Candidates {
		label := "  " + cand.Label
		if i == v.Cursor {
			label = c.styles.Selected.Render("› " + cand.Label)
		}
		meta := cand.EntityType.String()
		if hints := formatPairs(cand.Hints, ", "); hints != "" {
			meta += " · " + hints
		}
		lines = append(lines, fmt.Sprintf("%s %s", label, c.styles.Muted.Render(meta)))
	}
	return c.styles.List.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
