package elo

// RecentWindow is a bounded FIFO of matchup keys already presented.
type RecentWindow struct {
	size int
	keys []string
}

// NewRecentWindow returns a window holding at most size keys.
func NewRecentWindow(size int) *RecentWindow {
	if size < 0 {
		size = 0
	}
	return &RecentWindow{size: size, keys: make([]string, 0, size+1)}
}

// Contains reports whether key is in the window.
func (w *RecentWindow) Contains(key string) bool {
	for _, k := range w.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Push appends key and evicts the oldest entries beyond the window size.
func (w *RecentWindow) Push(key string) {
	w.keys = append(w.keys, key)
	if over := len(w.keys) - w.size; over > 0 {
		w.keys = append(w.keys[:0], w.keys[over:]...)
	}
}

// Len returns the number of keys held.
func (w *RecentWindow) Len() int { return len(w.keys) }

// Size returns the window capacity.
func (w *RecentWindow) Size() int { return w.size }

// Reset empties the window.
func (w *RecentWindow) Reset() { w.keys = w.keys[:0] }
