package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
)

type accountStore struct {
	db *DB
}

var _ account.Store = (*accountStore)(nil)

func NewAccountStore(db *DB) *accountStore {
	return &accountStore{db: db}
}

// conflicts must be called with mu held.
func (s *accountStore) conflicts(acc account.Account) bool {
	for _, a := range s.db.accounts {
		if !a.IsActive || a.ID == acc.ID {
			continue
		}
		if a.Email == acc.Email || (acc.Username.Valid && a.Username.Valid && a.Username.String == acc.Username.String) {
			return true
		}
	}
	return false
}

func (s *accountStore) FindByEmailOrUsername(_ context.Context, email, username string) (account.Account, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, a := range s.db.accounts {
		if !a.IsActive {
			continue
		}
		if a.Email == email || (username != "" && a.Username.Valid && a.Username.String == username) {
			return *a, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (s *accountStore) FindByIdentifier(_ context.Context, identifier string) (account.Account, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	matches := make([]account.Account, 0, 1)
	for _, a := range s.db.accounts {
		if a.Email == identifier || (a.Username.Valid && a.Username.String == identifier) {
			matches = append(matches, *a)
		}
	}
	if len(matches) == 0 {
		return account.Account{}, account.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].IsActive != matches[j].IsActive {
			return matches[i].IsActive
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0], nil
}

// identity must be called with mu held.
func (s *accountStore) identity(id string) (account.Identity, error) {
	acc, ok := s.db.accounts[id]
	if !ok {
		return account.Identity{}, account.ErrNotFound
	}
	idt := account.Identity{Account: *acc}
	if t, ok := s.db.teachers[id]; ok {
		tp := *t
		idt.Teacher = &tp
	}
	if st, ok := s.db.students[id]; ok {
		sp := *st
		idt.Student = &sp
	}
	return idt, nil
}

func (s *accountStore) GetIdentity(_ context.Context, id string) (account.Identity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.identity(id)
}

func (s *accountStore) InsertAccountAndProfile(_ context.Context, idt account.Identity) (account.Identity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	// stage every row, then commit
	acc := idt.Account
	if acc.ID == "" {
		acc.ID = uuid.New().String()
	}
	if s.conflicts(acc) {
		return account.Identity{}, account.ErrDuplicateAccount
	}

	var teacher *account.TeacherProfile
	if idt.Teacher != nil {
		tp := *idt.Teacher
		tp.ID = uuid.New().String()
		tp.AccountID = acc.ID
		teacher = &tp
	}

	var student *account.StudentProfile
	if idt.Student != nil {
		sp := *idt.Student
		sp.ID = uuid.New().String()
		sp.AccountID = acc.ID
		if sp.ClassID.Valid {
			if _, ok := s.db.classes[sp.ClassID.String]; !ok {
				return account.Identity{}, classroom.ErrClassNotFound
			}
		}
		if sp.TeacherID.Valid {
			if _, ok := s.db.teacherByProfileID(sp.TeacherID.String); !ok {
				return account.Identity{}, classroom.ErrTeacherNotFound
			}
		}
		student = &sp
	}

	s.db.accounts[acc.ID] = &acc
	if teacher != nil {
		s.db.teachers[acc.ID] = teacher
	}
	if student != nil {
		s.db.students[acc.ID] = student
		if student.ClassID.Valid {
			s.db.recount(student.ClassID.String)
		}
	}
	return s.identity(acc.ID)
}

func (s *accountStore) UpdateRole(_ context.Context, audit account.RoleChangeAudit) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	acc, ok := s.db.accounts[audit.AccountID]
	if !ok {
		return account.ErrNotFound
	}
	teacher, hasTeacher := s.db.teachers[audit.AccountID]
	if audit.NewRole == account.RoleAdmin && !hasTeacher {
		return account.ErrNotFound
	}

	s.db.auditSeq++
	audit.ID = s.db.auditSeq
	s.db.audits = append(s.db.audits, audit)
	acc.Role = audit.NewRole
	acc.UpdatedAt = audit.CreatedAt
	if hasTeacher {
		teacher.IsAdmin = audit.NewRole == account.RoleAdmin
	}
	return nil
}

func (s *accountStore) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	acc, ok := s.db.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	if active && !acc.IsActive {
		probe := *acc
		if s.conflicts(probe) {
			return account.ErrDuplicateAccount
		}
	}
	acc.IsActive = active
	acc.UpdatedAt = at
	if st, ok := s.db.students[id]; ok && st.ClassID.Valid {
		s.db.recount(st.ClassID.String)
	}
	return nil
}

func (s *accountStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	acc, ok := s.db.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	acc.LastLogin.SetValid(at)
	acc.UpdatedAt = at
	return nil
}

func (s *accountStore) UpdatePassword(_ context.Context, id string, hash []byte, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	acc, ok := s.db.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	acc.PasswordHash = hash
	acc.UpdatedAt = at
	return nil
}

func (s *accountStore) ListRoleChanges(_ context.Context, accountID string) ([]account.RoleChangeAudit, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	audits := make([]account.RoleChangeAudit, 0)
	for _, a := range s.db.audits {
		if a.AccountID == accountID {
			audits = append(audits, a)
		}
	}
	return audits, nil
}
