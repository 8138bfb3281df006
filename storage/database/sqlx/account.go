package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
)

const (
	accountColumns = `id, email, username, password_hash, role, is_active, created_at, updated_at, last_login`
	teacherColumns = `id, account_id, initials, first_name, last_name, address, mobile_no, image_ref, is_admin`
	studentColumns = `id, account_id, initials, first_name, last_name, guardian_name, guardian_type, contact_no, address, image_ref, class_id, teacher_id`
)

type accountStore struct {
	db *sqlx.DB
}

var _ account.Store = (*accountStore)(nil) // interface compliance check

func NewAccountStore(db *sqlx.DB) *accountStore {
	return &accountStore{db: db}
}

// mapWriteErr translates constraint violations raised while writing an account and its profile.
func mapWriteErr(err error) error {
	pqErr, ok := pqError(err)
	if !ok {
		return err
	}
	switch pqErr.Code {
	case uniqueViolation:
		return account.ErrDuplicateAccount
	case foreignKeyViolation:
		switch pqErr.Constraint {
		case "student_profiles_class_id_fkey":
			return classroom.ErrClassNotFound
		case "student_profiles_teacher_id_fkey":
			return classroom.ErrTeacherNotFound
		}
	}
	return err
}

func (s *accountStore) FindByEmailOrUsername(ctx context.Context, email, username string) (account.Account, error) {
	var acc account.Account
	q := `SELECT ` + accountColumns + ` FROM accounts
		WHERE is_active AND (email = $1 OR ($2 <> '' AND username = $2))
		LIMIT 1`
	if err := s.db.GetContext(ctx, &acc, q, email, username); err != nil {
		return account.Account{}, trapNoRowsErr(err, account.ErrNotFound)
	}
	return acc, nil
}

func (s *accountStore) FindByIdentifier(ctx context.Context, identifier string) (account.Account, error) {
	var acc account.Account
	q := `SELECT ` + accountColumns + ` FROM accounts
		WHERE email = $1 OR username = $1
		ORDER BY is_active DESC, created_at DESC
		LIMIT 1`
	if err := s.db.GetContext(ctx, &acc, q, identifier); err != nil {
		return account.Account{}, trapNoRowsErr(err, account.ErrNotFound)
	}
	return acc, nil
}

func getIdentity(ctx context.Context, q sqlx.QueryerContext, id string) (account.Identity, error) {
	var idt account.Identity
	err := sqlx.GetContext(ctx, q, &idt.Account, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if err != nil {
		return account.Identity{}, trapNoRowsErr(err, account.ErrNotFound)
	}

	var tp account.TeacherProfile
	err = sqlx.GetContext(ctx, q, &tp, `SELECT `+teacherColumns+` FROM teacher_profiles WHERE account_id = $1`, id)
	switch trapNoRowsErr(err, errNoProfile) {
	case nil:
		idt.Teacher = &tp
	case errNoProfile:
	default:
		return account.Identity{}, errors.Wrap(err, "getting teacher profile")
	}

	var sp account.StudentProfile
	err = sqlx.GetContext(ctx, q, &sp, `SELECT `+studentColumns+` FROM student_profiles WHERE account_id = $1`, id)
	switch trapNoRowsErr(err, errNoProfile) {
	case nil:
		idt.Student = &sp
	case errNoProfile:
	default:
		return account.Identity{}, errors.Wrap(err, "getting student profile")
	}
	return idt, nil
}

var errNoProfile = errors.New("no profile")

func (s *accountStore) GetIdentity(ctx context.Context, id string) (account.Identity, error) {
	if err := checkID(id, account.ErrNotFound); err != nil {
		return account.Identity{}, err
	}
	return getIdentity(ctx, s.db, id)
}

func (s *accountStore) InsertAccountAndProfile(ctx context.Context, idt account.Identity) (account.Identity, error) {
	var saved account.Identity
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		acc := idt.Account
		if acc.ID == "" {
			acc.ID = uuid.New().String()
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
			VALUES (:id, :email, :username, :password_hash, :role, :is_active, :created_at, :updated_at, :last_login)`, acc)
		if err != nil {
			return mapWriteErr(err)
		}

		if idt.Teacher != nil {
			tp := *idt.Teacher
			tp.ID = uuid.New().String()
			tp.AccountID = acc.ID
			_, err = tx.NamedExecContext(ctx, `INSERT INTO teacher_profiles (`+teacherColumns+`)
				VALUES (:id, :account_id, :initials, :first_name, :last_name, :address, :mobile_no, :image_ref, :is_admin)`, tp)
			if err != nil {
				return mapWriteErr(err)
			}
		}

		if idt.Student != nil {
			sp := *idt.Student
			sp.ID = uuid.New().String()
			sp.AccountID = acc.ID
			_, err = tx.NamedExecContext(ctx, `INSERT INTO student_profiles (`+studentColumns+`)
				VALUES (:id, :account_id, :initials, :first_name, :last_name, :guardian_name, :guardian_type, :contact_no, :address, :image_ref, :class_id, :teacher_id)`, sp)
			if err != nil {
				return mapWriteErr(err)
			}
			if sp.ClassID.Valid {
				if err = recountClass(ctx, tx, sp.ClassID.String); err != nil {
					return err
				}
			}
		}

		saved, err = getIdentity(ctx, tx, acc.ID)
		return err
	})
	if err != nil {
		return account.Identity{}, err
	}
	return saved, nil
}

func (s *accountStore) UpdateRole(ctx context.Context, audit account.RoleChangeAudit) error {
	if err := checkID(audit.AccountID, account.ErrNotFound); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET role = $2, updated_at = $3 WHERE id = $1`,
			audit.AccountID, audit.NewRole, audit.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "updating role")
		}
		if err = mustAffect(res, account.ErrNotFound); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `UPDATE teacher_profiles SET is_admin = $2 WHERE account_id = $1`,
			audit.AccountID, audit.NewRole == account.RoleAdmin)
		if err != nil {
			return errors.Wrap(err, "updating teacher profile")
		}
		if audit.NewRole == account.RoleAdmin {
			// admins are backed by a teacher profile
			if err = mustAffect(res, account.ErrNotFound); err != nil {
				return err
			}
		}

		_, err = tx.NamedExecContext(ctx, `INSERT INTO role_change_audit
			(account_id, previous_role, new_role, changed_by, reason, created_at)
			VALUES (:account_id, :previous_role, :new_role, :changed_by, :reason, :created_at)`, audit)
		return errors.Wrap(err, "writing role change audit")
	})
}

func (s *accountStore) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	if err := checkID(id, account.ErrNotFound); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, at)
		if err != nil {
			return mapWriteErr(err)
		}
		if err = mustAffect(res, account.ErrNotFound); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, recountSQL+` WHERE id = (SELECT class_id FROM student_profiles WHERE account_id = $1)`, id)
		return errors.Wrap(err, "recounting class")
	})
}

func (s *accountStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := checkID(id, account.ErrNotFound); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return errors.Wrap(err, "updating last login")
	}
	return mustAffect(res, account.ErrNotFound)
}

func (s *accountStore) UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error {
	if err := checkID(id, account.ErrNotFound); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, at)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	return mustAffect(res, account.ErrNotFound)
}

func (s *accountStore) ListRoleChanges(ctx context.Context, accountID string) ([]account.RoleChangeAudit, error) {
	audits := make([]account.RoleChangeAudit, 0)
	if checkID(accountID, account.ErrNotFound) != nil {
		return audits, nil
	}
	err := s.db.SelectContext(ctx, &audits, `SELECT id, account_id, previous_role, new_role, changed_by, reason, created_at
		FROM role_change_audit WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "listing role changes")
	}
	return audits, nil
}
