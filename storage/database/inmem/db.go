// Package inmemdb holds in-memory repositories, used in tests and when `database.inMemory` is set.
package inmemdb

import (
	"sync"

	"github.com/youknow/checklist/core/checklist"
	"github.com/youknow/checklist/core/user"
)

type (
	DB struct {
		user      *userTable
		checklist *checklistTables
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	// checklistTables share one lock so that cascades & upserts are atomic.
	checklistTables struct {
		mutex       sync.RWMutex
		templates   map[string]*checklist.TaskTemplate
		assignments map[string]*checklist.TaskAssignment
		completions map[string]*checklist.TaskCompletion
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		checklist: &checklistTables{
			templates:   make(map[string]*checklist.TaskTemplate),
			assignments: make(map[string]*checklist.TaskAssignment),
			completions: make(map[string]*checklist.TaskCompletion),
		},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user.mutex.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.mutex.Unlock()

	db.checklist.mutex.Lock()
	db.checklist.templates = make(map[string]*checklist.TaskTemplate)
	db.checklist.assignments = make(map[string]*checklist.TaskAssignment)
	db.checklist.completions = make(map[string]*checklist.TaskCompletion)
	db.checklist.mutex.Unlock()
}
