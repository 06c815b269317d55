package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"grimoire/internal/suggest"
)

// refreshMsg asks the program to redraw after state changed on a timer
// goroutine.
type refreshMsg struct{}

type insertion struct {
	r     suggest.Range
	token string
}

// surface adapts the composer to suggest.Surface. The controller calls it
// from timer goroutines and from inside Update, so it only records state and
// never blocks on the program.
type surface struct {
	mu      sync.Mutex
	view    suggest.View
	inserts []insertion
	send    func(tea.Msg)
}

func (s *surface) Insert(r suggest.Range, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, insertion{r: r, token: token})
}

func (s *surface) Render(v suggest.View) {
	s.mu.Lock()
	s.view = v
	send := s.send
	s.mu.Unlock()
	if send != nil {
		// Send blocks until the event loop reads it, which must not happen
		// on the loop itself.
		go send(refreshMsg{})
	}
}

func (s *surface) current() suggest.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *surface) takeInserts() []insertion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.inserts
	s.inserts = nil
	return out
}

func (s *surface) bind(send func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = send
}
