package timetable

import "sync"

// sectionLocks serializes writes per section while letting different sections proceed in parallel.
type sectionLocks struct {
	mu    sync.Mutex
	locks map[string]*sectionLock
}

type sectionLock struct {
	sync.Mutex
	refs int
}

func newSectionLocks() *sectionLocks {
	return &sectionLocks{locks: make(map[string]*sectionLock)}
}

// lock blocks until the section is free and returns its unlock func.
func (l *sectionLocks) lock(sectionID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[sectionID]
	if !ok {
		sl = new(sectionLock)
		l.locks[sectionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, sectionID)
		}
		l.mu.Unlock()
	}
}

func (l *sectionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
