package view

import (
	"sync"
	"time"
)

// Message is the banner shown to the user.
type Message struct {
	Text string      `json:"text"`
	Kind MessageKind `json:"kind"`
}

// BoardState is a copy of every region.
type BoardState struct {
	Submitting  bool      `json:"submitting"`
	Button      string    `json:"button"`
	Status      string    `json:"status"`
	StatusClass string    `json:"status_class,omitempty"`
	CloudSafe   bool      `json:"cloud_safe"`
	Results     string    `json:"results"`
	Message     *Message  `json:"message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Board keeps the regions in memory so they can be served or inspected.
type Board struct {
	mu    sync.RWMutex
	state BoardState
	// transitions records submit control changes in order.
	transitions []bool
}

// NewBoard creates a board in its initial, idle state.
func NewBoard() *Board {
	return &Board{
		state: BoardState{
			Button:    ButtonIdle,
			Status:    PlaceholderStatus("Awaiting scan start..."),
			Results:   EmptyResults,
			UpdatedAt: time.Now().UTC(),
		},
	}
}

func (b *Board) SetSubmitting(submitting bool) {
	b.update(func(s *BoardState) {
		s.Submitting = submitting
		s.Button = ButtonIdle
		if submitting {
			s.Button = ButtonScanning
		}
		b.transitions = append(b.transitions, submitting)
	})
}

func (b *Board) ShowStatus(u StatusUpdate) {
	b.update(func(s *BoardState) {
		s.Status = u.Text
		s.StatusClass = StatusClass(u.Status)
		s.CloudSafe = u.Mode.CloudSafe()
	})
}

func (b *Board) ShowResults(text string) {
	b.update(func(s *BoardState) { s.Results = text })
}

func (b *Board) ShowMessage(text string, kind MessageKind) {
	b.update(func(s *BoardState) { s.Message = &Message{Text: text, Kind: kind} })
}

func (b *Board) HideMessage() {
	b.update(func(s *BoardState) { s.Message = nil })
}

// Snapshot returns a copy of the current regions.
func (b *Board) Snapshot() BoardState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	state := b.state
	if state.Message != nil {
		msg := *state.Message
		state.Message = &msg
	}
	return state
}

// Transitions returns every submit control change seen so far.
func (b *Board) Transitions() []bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]bool, len(b.transitions))
	copy(out, b.transitions)
	return out
}

func (b *Board) update(fn func(*BoardState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.state)
	b.state.UpdatedAt = time.Now().UTC()
}
