package inmemdb

import (
	"sync"

	"github.com/trezcool/ratiba/core/timetable"
)

type (
	DB struct {
		catalog *catalogTables
		entry   *entryTable

		failMu sync.RWMutex
		fail   error
	}

	catalogTables struct {
		sync.RWMutex
		classes     map[string]*timetable.Class
		sections    map[string]*timetable.Section
		periods     map[string]*timetable.Period
		subjects    map[string]*timetable.Subject
		teachers    map[string]*timetable.Teacher
		links       map[timetable.SectionSubject]struct{}
		assignments map[sectionSubject]string // -> teacherID
	}

	entryTable struct {
		sync.RWMutex
		table map[string]*timetable.Entry
		slots map[sectionSlot]string // -> entryID
	}

	sectionSubject struct {
		sectionID string
		subjectID string
	}

	sectionSlot struct {
		sectionID string
		slot      timetable.Slot
	}
)

func Open() (*DB, error) {
	db := &DB{
		catalog: &catalogTables{
			classes:     make(map[string]*timetable.Class),
			sections:    make(map[string]*timetable.Section),
			periods:     make(map[string]*timetable.Period),
			subjects:    make(map[string]*timetable.Subject),
			teachers:    make(map[string]*timetable.Teacher),
			links:       make(map[timetable.SectionSubject]struct{}),
			assignments: make(map[sectionSubject]string),
		},
		entry: &entryTable{
			table: make(map[string]*timetable.Entry),
			slots: make(map[sectionSlot]string),
		},
	}
	return db, nil
}

// FailWith makes every following repository call return err (nil restores normal operation).
func (db *DB) FailWith(err error) {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	db.fail = err
}

func (db *DB) failure() error {
	db.failMu.RLock()
	defer db.failMu.RUnlock()
	return db.fail
}
