package narrator

import "sync"

// History keeps the recent narrative transcript fed back into prompts.
// Old lines fall off once the character budget is exceeded, so prompt size
// stays bounded no matter how long a session runs.
type History struct {
	mu       sync.Mutex
	maxChars int
	size     int
	lines    []string
}

func NewHistory(maxChars int) *History {
	return &History{maxChars: maxChars}
}

// Add appends a line, evicting the oldest lines while over budget. A single
// line longer than the whole budget is kept alone rather than dropped.
func (h *History) Add(line string) {
	if line == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lines = append(h.lines, line)
	h.size += len(line)

	for h.size > h.maxChars && len(h.lines) > 1 {
		h.size -= len(h.lines[0])
		h.lines = h.lines[1:]
	}
}

// Lines returns a copy of the retained transcript, oldest first.
func (h *History) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}
