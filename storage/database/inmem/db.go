// Package inmemdb is a process-local store used by tests and local runs without PostgreSQL.
// A single mutex serializes every operation, which gives each write the atomicity of a transaction.
package inmemdb

import (
	"sync"

	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
)

type DB struct {
	mu       sync.Mutex
	accounts map[string]*account.Account
	teachers map[string]*account.TeacherProfile // {account id: profile}
	students map[string]*account.StudentProfile // {account id: profile}
	classes  map[string]*classroom.Class
	audits   []account.RoleChangeAudit
	auditSeq int64
}

func New() *DB {
	db := new(DB)
	db.reset()
	return db
}

// Reset drops all data.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.reset()
}

func (db *DB) reset() {
	db.accounts = make(map[string]*account.Account)
	db.teachers = make(map[string]*account.TeacherProfile)
	db.students = make(map[string]*account.StudentProfile)
	db.classes = make(map[string]*classroom.Class)
	db.audits = nil
	db.auditSeq = 0
}

// teacherByProfileID must be called with mu held.
func (db *DB) teacherByProfileID(id string) (*account.TeacherProfile, bool) {
	for _, t := range db.teachers {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// recount must be called with mu held.
func (db *DB) recount(classID string) {
	cls, ok := db.classes[classID]
	if !ok {
		return
	}
	var n int
	for accID, s := range db.students {
		if s.ClassID.Valid && s.ClassID.String == classID && db.accounts[accID].IsActive {
			n++
		}
	}
	cls.StudentCount = n
}
