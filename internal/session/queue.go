package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pixil98/go-storyteller/internal/narrator"
)

// CommandQueue collects the per-turn action submissions. A queue is opened
// for exactly one turn number at a time; submissions for any other turn are
// rejected as stale.
type CommandQueue struct {
	mu       sync.Mutex
	open     bool
	turn     int
	expected map[string]bool
	actions  map[string]string
	ready    chan struct{}
	notified bool
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Open readies the queue for the given turn and set of participant ids.
// The returned channel closes when every expected participant has
// submitted, letting the scheduler close the window early.
func (q *CommandQueue) Open(turn int, expected []string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.open = true
	q.turn = turn
	q.expected = make(map[string]bool, len(expected))
	for _, id := range expected {
		q.expected[id] = true
	}
	q.actions = map[string]string{}
	q.ready = make(chan struct{})
	q.notified = false
	if len(q.expected) == 0 {
		close(q.ready)
		q.notified = true
	}
	return q.ready
}

// Submit records an action for the open turn. A second submission from the
// same participant replaces the first.
func (q *CommandQueue) Submit(id string, turn int, text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.open || turn != q.turn {
		return fmt.Errorf("%w: got turn %d, want %d", ErrStaleTurn, turn, q.turn)
	}
	if !q.expected[id] {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	q.actions[id] = text
	q.notifyLocked()
	return nil
}

// Drop removes a departed participant from the open window, discarding any
// action they had already submitted.
func (q *CommandQueue) Drop(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.open {
		return
	}
	delete(q.expected, id)
	delete(q.actions, id)
	q.notifyLocked()
}

func (q *CommandQueue) notifyLocked() {
	if q.notified || len(q.actions) < len(q.expected) {
		return
	}
	close(q.ready)
	q.notified = true
}

// Close ends the window and returns the collected actions, resolved to
// display names and sorted by name for a deterministic prompt. The second
// return lists participant ids that never submitted.
func (q *CommandQueue) Close(names map[string]string) ([]narrator.PlayerAction, []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.open = false
	out := make([]narrator.PlayerAction, 0, len(q.actions))
	for id, text := range q.actions {
		name, ok := names[id]
		if !ok {
			continue
		}
		out = append(out, narrator.PlayerAction{Name: name, Text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	var idle []string
	for id := range q.expected {
		if _, ok := q.actions[id]; !ok {
			idle = append(idle, id)
		}
	}
	sort.Strings(idle)
	return out, idle
}
