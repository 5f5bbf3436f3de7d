package pokebattle

import (
	"container/list"
	"sync"
)

// seenCap bounds the duplicate-suppression window.
// Sessions only ever have a handful of messages in flight,
// so remembering the last few hundred sequence numbers is
// plenty to absorb retransmissions.
const seenCap = 512

// A seenSet remembers which inbound sequence numbers have already
// been dispatched, evicting the oldest entries beyond seenCap
type seenSet struct {
	mu    sync.Mutex
	items map[int]*list.Element
	order *list.List
}

func newSeenSet() *seenSet {
	return &seenSet{
		items: make(map[int]*list.Element),
		order: list.New(),
	}
}

// add records seq and reports whether it was new.
// The window is keyed on the sequence number alone, not per
// sender: a session has exactly one active peer, so a shared
// window is enough.
func (s *seenSet) add(seq int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[seq]; ok {
		return false
	}

	s.items[seq] = s.order.PushFront(seq)

	for s.order.Len() > seenCap {
		back := s.order.Back()
		delete(s.items, back.Value.(int))
		s.order.Remove(back)
	}

	return true
}
