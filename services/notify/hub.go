package notifysvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

const defaultBuffer = 16

type subscription struct {
	events chan timetable.ChangeEvent
	once   sync.Once
}

// Hub fans change events out to the subscribers of each school, in process.
// Slow subscribers miss events instead of blocking writers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	logger core.Logger
	closed bool
}

var (
	_ timetable.ChangeNotifier = (*Hub)(nil)
	_ timetable.Subscriber     = (*Hub)(nil)
)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: defaultBuffer,
		logger: logger,
	}
}

func (h *Hub) Notify(_ context.Context, evt timetable.ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[evt.SchoolID] {
		select {
		case sub.events <- evt:
		default:
			h.logger.Warn(fmt.Sprintf("hub: dropping %s event of school %q for a slow subscriber", evt.Kind, evt.SchoolID))
		}
	}
	return nil
}

func (h *Hub) Subscribe(schoolID string) (<-chan timetable.ChangeEvent, func()) {
	sub := &subscription{events: make(chan timetable.ChangeEvent, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.events)
		return sub.events, func() {}
	}
	if h.subs[schoolID] == nil {
		h.subs[schoolID] = make(map[*subscription]struct{})
	}
	h.subs[schoolID][sub] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(schoolID, sub)
	}
	return sub.events, cancel
}

// must hold h.mu
func (h *Hub) remove(schoolID string, sub *subscription) {
	sub.once.Do(func() {
		delete(h.subs[schoolID], sub)
		if len(h.subs[schoolID]) == 0 {
			delete(h.subs, schoolID)
		}
		close(sub.events)
	})
}

// Subscribers counts the live subscriptions of a school.
func (h *Hub) Subscribers(schoolID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[schoolID])
}

// Close ends every subscription. Later subscriptions are closed right away.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for schoolID, subs := range h.subs {
		for sub := range subs {
			h.remove(schoolID, sub)
		}
	}
	h.closed = true
}
