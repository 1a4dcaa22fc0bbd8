package session

import (
	"sync"

	"github.com/tinyland-inc/wspanel/pkg/logger"
)

// Subscription delivers changes on C until Close is called. A subscriber
// that falls behind by more than its buffer loses the overflow.
type Subscription struct {
	C <-chan Change

	ch     chan Change
	fields map[Field]bool
	id     uint64
	owner  *Controller
	once   sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.owner.unsubscribe(s.id)
	})
}

func (s *Subscription) wants(f Field) bool {
	return len(s.fields) == 0 || s.fields[f]
}

// Subscribe registers for changes. With no fields every change is delivered,
// otherwise only changes to the listed fields.
func (c *Controller) Subscribe(buffer int, fields ...Field) *Subscription {
	if buffer <= 0 {
		buffer = c.subscriberBuffer
	}
	ch := make(chan Change, buffer)
	sub := &Subscription{C: ch, ch: ch, owner: c}
	if len(fields) > 0 {
		sub.fields = make(map[Field]bool, len(fields))
		for _, f := range fields {
			sub.fields[f] = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return sub
	}
	c.nextSub++
	sub.id = c.nextSub
	c.subs[sub.id] = sub
	return sub
}

func (c *Controller) unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(sub.ch)
	}
}

// publishLocked fans a change out without blocking. Callers hold c.mu.
func (c *Controller) publishLocked(ch Change) {
	for _, sub := range c.subs {
		if !sub.wants(ch.Field) {
			continue
		}
		select {
		case sub.ch <- ch:
		default:
			logger.WarnCF("session", "Subscriber buffer full, dropping change", map[string]any{
				"field":      string(ch.Field),
				"subscriber": sub.id,
			})
		}
	}
}
