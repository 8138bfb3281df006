// Package sqlxrepos implements the account and classroom stores on PostgreSQL.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// postgres error codes
const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

// withTx runs fn in a transaction, committing only when fn succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(tx)
}

// pqError returns the postgres error behind err, if any.
func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

// trapNoRowsErr swaps sql.ErrNoRows for the domain not-found error.
func trapNoRowsErr(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

// checkID rejects ids postgres would refuse to cast to uuid.
func checkID(id string, notFound error) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound
	}
	return nil
}

// mustAffect returns notFound when res reports no affected rows.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

const recountSQL = `UPDATE classes SET student_count = (
	SELECT COUNT(*) FROM student_profiles sp
	JOIN accounts a ON a.id = sp.account_id
	WHERE sp.class_id = classes.id AND a.is_active
)`

func recountClass(ctx context.Context, tx sqlx.ExtContext, classID string) error {
	_, err := tx.ExecContext(ctx, recountSQL+` WHERE id = $1`, classID)
	return errors.Wrap(err, "recounting class")
}
