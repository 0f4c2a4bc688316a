package generate

// History is the ordered list of techniques produced so far in a session.
// With a positive window only the most recent entries are kept, in a ring.
type History struct {
	window int
	items  []string
	head   int
}

// NewHistory creates a history. window <= 0 keeps every entry.
func NewHistory(window int) *History {
	if window < 0 {
		window = 0
	}
	return &History{window: window}
}

// Add records a technique.
func (h *History) Add(technique string) {
	if h.window == 0 || len(h.items) < h.window {
		h.items = append(h.items, technique)
		return
	}
	h.items[h.head] = technique
	h.head = (h.head + 1) % h.window
}

// Items returns the retained techniques, oldest first.
func (h *History) Items() []string {
	out := make([]string, 0, len(h.items))
	out = append(out, h.items[h.head:]...)
	out = append(out, h.items[:h.head]...)
	return out
}

// Len returns the number of retained techniques.
func (h *History) Len() int {
	return len(h.items)
}
