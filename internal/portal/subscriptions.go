package portal

import (
	"vibeverse/internal/avatar"
)

// AvatarChangedFunc receives completed avatar swaps.
type AvatarChangedFunc func(avatar.Change)

type subscription struct {
	id uint64
	fn AvatarChangedFunc
}

// subscribers notifies in registration order.
type subscribers struct {
	next uint64
	subs []subscription
}

// add registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (s *subscribers) add(fn AvatarChangedFunc) func() {
	s.next++
	id := s.next
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *subscribers) notify(c avatar.Change) {
	for _, sub := range s.subs {
		sub.fn(c)
	}
}
