package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lms/core/classroom"
)

const classColumns = `id, name, teacher_id, student_count, created_at, updated_at`

type classStore struct {
	db *sqlx.DB
}

var _ classroom.Store = (*classStore)(nil) // interface compliance check

func NewClassStore(db *sqlx.DB) *classStore {
	return &classStore{db: db}
}

func (s *classStore) InsertClass(ctx context.Context, cls classroom.Class) (classroom.Class, error) {
	if cls.TeacherID.Valid {
		if err := checkID(cls.TeacherID.String, classroom.ErrTeacherNotFound); err != nil {
			return classroom.Class{}, err
		}
	}
	cls.ID = uuid.New().String()
	cls.StudentCount = 0
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO classes (`+classColumns+`)
		VALUES (:id, :name, :teacher_id, :student_count, :created_at, :updated_at)`, cls)
	if pqErr, ok := pqError(err); ok {
		switch pqErr.Code {
		case uniqueViolation:
			return classroom.Class{}, classroom.ErrClassExists
		case foreignKeyViolation:
			return classroom.Class{}, classroom.ErrTeacherNotFound
		}
	}
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func getClass(ctx context.Context, q sqlx.QueryerContext, id string) (classroom.Class, error) {
	var cls classroom.Class
	if err := sqlx.GetContext(ctx, q, &cls, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id); err != nil {
		return classroom.Class{}, trapNoRowsErr(err, classroom.ErrClassNotFound)
	}
	return cls, nil
}

func (s *classStore) GetClass(ctx context.Context, id string) (classroom.Class, error) {
	if err := checkID(id, classroom.ErrClassNotFound); err != nil {
		return classroom.Class{}, err
	}
	return getClass(ctx, s.db, id)
}

func (s *classStore) AssignStudent(ctx context.Context, studentID string, classID null.String, at time.Time) (classroom.StudentPlacement, error) {
	if err := checkID(studentID, classroom.ErrStudentNotFound); err != nil {
		return classroom.StudentPlacement{}, err
	}
	if classID.Valid {
		if err := checkID(classID.String, classroom.ErrClassNotFound); err != nil {
			return classroom.StudentPlacement{}, err
		}
	}

	placement := classroom.StudentPlacement{StudentID: studentID, ClassID: classID}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var prev null.String
		err := tx.GetContext(ctx, &prev, `SELECT class_id FROM student_profiles WHERE account_id = $1 FOR UPDATE`, studentID)
		if err != nil {
			return trapNoRowsErr(err, classroom.ErrStudentNotFound)
		}
		if classID.Valid {
			if _, err = getClass(ctx, tx, classID.String); err != nil {
				return err
			}
		}

		if _, err = tx.ExecContext(ctx, `UPDATE student_profiles SET class_id = $2 WHERE account_id = $1`, studentID, classID); err != nil {
			return errors.Wrap(err, "updating student class")
		}
		if _, err = tx.ExecContext(ctx, `UPDATE accounts SET updated_at = $2 WHERE id = $1`, studentID, at); err != nil {
			return errors.Wrap(err, "touching account")
		}
		if prev.Valid {
			if err = recountClass(ctx, tx, prev.String); err != nil {
				return err
			}
		}
		if classID.Valid {
			if err = recountClass(ctx, tx, classID.String); err != nil {
				return err
			}
			cls, err := getClass(ctx, tx, classID.String)
			if err != nil {
				return err
			}
			placement.Class = &cls
		}
		return nil
	})
	if err != nil {
		return classroom.StudentPlacement{}, err
	}
	return placement, nil
}

func (s *classStore) RecountClass(ctx context.Context, id string) (classroom.Class, error) {
	if err := checkID(id, classroom.ErrClassNotFound); err != nil {
		return classroom.Class{}, err
	}
	var cls classroom.Class
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := recountClass(ctx, tx, id); err != nil {
			return err
		}
		var err error
		cls, err = getClass(ctx, tx, id)
		return err
	})
	if err != nil {
		return classroom.Class{}, err
	}
	return cls, nil
}

func (s *classStore) RecountAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, recountSQL)
	if err != nil {
		return 0, errors.Wrap(err, "recounting classes")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "recounting classes")
	}
	return int(n), nil
}
