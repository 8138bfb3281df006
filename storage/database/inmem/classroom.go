package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lms/core/classroom"
)

type classStore struct {
	db *DB
}

var _ classroom.Store = (*classStore)(nil)

func NewClassStore(db *DB) *classStore {
	return &classStore{db: db}
}

func (s *classStore) InsertClass(_ context.Context, cls classroom.Class) (classroom.Class, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, c := range s.db.classes {
		if c.Name == cls.Name {
			return classroom.Class{}, classroom.ErrClassExists
		}
	}
	if cls.TeacherID.Valid {
		if _, ok := s.db.teacherByProfileID(cls.TeacherID.String); !ok {
			return classroom.Class{}, classroom.ErrTeacherNotFound
		}
	}
	cls.ID = uuid.New().String()
	cls.StudentCount = 0
	s.db.classes[cls.ID] = &cls
	return cls, nil
}

func (s *classStore) GetClass(_ context.Context, id string) (classroom.Class, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cls, ok := s.db.classes[id]
	if !ok {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	return *cls, nil
}

func (s *classStore) AssignStudent(_ context.Context, studentID string, classID null.String, at time.Time) (classroom.StudentPlacement, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	st, ok := s.db.students[studentID]
	if !ok {
		return classroom.StudentPlacement{}, classroom.ErrStudentNotFound
	}
	var cls *classroom.Class
	if classID.Valid {
		if cls, ok = s.db.classes[classID.String]; !ok {
			return classroom.StudentPlacement{}, classroom.ErrClassNotFound
		}
	}

	prev := st.ClassID
	st.ClassID = classID
	s.db.accounts[studentID].UpdatedAt = at
	if prev.Valid {
		s.db.recount(prev.String)
	}
	placement := classroom.StudentPlacement{StudentID: studentID, ClassID: classID}
	if cls != nil {
		s.db.recount(cls.ID)
		cp := *cls
		placement.Class = &cp
	}
	return placement, nil
}

func (s *classStore) RecountClass(_ context.Context, id string) (classroom.Class, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cls, ok := s.db.classes[id]
	if !ok {
		return classroom.Class{}, classroom.ErrClassNotFound
	}
	s.db.recount(id)
	return *cls, nil
}

func (s *classStore) RecountAll(_ context.Context) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for id := range s.db.classes {
		s.db.recount(id)
	}
	return len(s.db.classes), nil
}
