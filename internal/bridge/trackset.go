package bridge

// trackSet is an insertion-ordered string set with a hard bound. When the
// bound is exceeded roughly the older half is evicted, oldest first. Used
// by the audio bridge to remember which question ids already triggered a
// one-time signal without growing forever over a long session.
type trackSet struct {
	limit int
	order []string
	seen  map[string]bool
}

func newTrackSet(limit int) *trackSet {
	return &trackSet{limit: limit, seen: make(map[string]bool)}
}

func (t *trackSet) contains(key string) bool { return t.seen[key] }

func (t *trackSet) insert(key string) {
	if t.seen[key] {
		return
	}
	t.seen[key] = true
	t.order = append(t.order, key)
	if len(t.order) > t.limit {
		evict := len(t.order) / 2
		for _, old := range t.order[:evict] {
			delete(t.seen, old)
		}
		t.order = append([]string(nil), t.order[evict:]...)
	}
}

func (t *trackSet) clear() {
	t.order = nil
	t.seen = make(map[string]bool)
}

func (t *trackSet) len() int { return len(t.order) }
