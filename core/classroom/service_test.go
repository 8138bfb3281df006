package classroom_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
	"github.com/trezcool/lms/storage/database/inmem"
	"github.com/trezcool/lms/tests"
)

const unknownID = "5d1f3c2a-7b8e-4f60-a1d2-3c4b5a697801"

func setup() (*classroom.Service, account.Store, classroom.Store) {
	db := inmemdb.New()
	classes := inmemdb.NewClassStore(db)
	return classroom.NewService(classes, testutil.Validator()), inmemdb.NewAccountStore(db), classes
}

func TestService_CreateClass(t *testing.T) {
	svc, accounts, _ := setup()
	ctx := context.Background()
	teacher := testutil.CreateAccount(t, accounts, account.RoleTeacher, "t@x.com", "teach", "secret12", true)

	cls, err := svc.CreateClass(ctx, classroom.NewClass{Name: "  5A ", TeacherID: teacher.Teacher.ID})
	require.NoError(t, err)
	assert.Equal(t, "5A", cls.Name)
	assert.Equal(t, null.StringFrom(teacher.Teacher.ID), cls.TeacherID)
	assert.Zero(t, cls.StudentCount)

	got, err := svc.GetClass(ctx, cls.ID)
	require.NoError(t, err)
	assert.Equal(t, cls, got)

	tests := []struct {
		name    string
		nc      classroom.NewClass
		wantErr error
	}{
		{name: "duplicate name", nc: classroom.NewClass{Name: "5A"}, wantErr: classroom.ErrClassExists},
		{name: "unknown teacher", nc: classroom.NewClass{Name: "5B", TeacherID: unknownID}, wantErr: classroom.ErrTeacherNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateClass(ctx, tt.nc)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	for _, nc := range []classroom.NewClass{{Name: " "}, {Name: "5C", TeacherID: "42"}} {
		_, err := svc.CreateClass(ctx, nc)
		var verrs validator.ValidationErrors
		assert.True(t, errors.As(err, &verrs), "CreateClass(%+v)", nc)
	}

	_, err = svc.GetClass(ctx, unknownID)
	assert.Equal(t, classroom.ErrClassNotFound, errors.Cause(err))
}

func TestService_AssignStudent(t *testing.T) {
	svc, accounts, _ := setup()
	ctx := context.Background()
	st := testutil.CreateAccount(t, accounts, account.RoleStudent, "s@x.com", "stud", "secret12", true)
	a, err := svc.CreateClass(ctx, classroom.NewClass{Name: "A"})
	require.NoError(t, err)
	b, err := svc.CreateClass(ctx, classroom.NewClass{Name: "B"})
	require.NoError(t, err)

	count := func(id string) int {
		cls, err := svc.GetClass(ctx, id)
		require.NoError(t, err)
		return cls.StudentCount
	}

	p, err := svc.AssignStudent(ctx, st.Account.ID, classroom.Assignment{ClassID: a.ID})
	require.NoError(t, err)
	require.NotNil(t, p.Class)
	assert.Equal(t, 1, p.Class.StudentCount)

	_, err = svc.AssignStudent(ctx, st.Account.ID, classroom.Assignment{ClassID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, count(a.ID))
	assert.Equal(t, 1, count(b.ID))

	p, err = svc.AssignStudent(ctx, st.Account.ID, classroom.Assignment{})
	require.NoError(t, err)
	assert.Nil(t, p.Class)
	assert.False(t, p.ClassID.Valid)
	assert.Equal(t, 0, count(b.ID))

	_, err = svc.AssignStudent(ctx, unknownID, classroom.Assignment{ClassID: a.ID})
	assert.Equal(t, classroom.ErrStudentNotFound, errors.Cause(err))

	_, err = svc.AssignStudent(ctx, st.Account.ID, classroom.Assignment{ClassID: unknownID})
	assert.Equal(t, classroom.ErrClassNotFound, errors.Cause(err))

	// teachers have no student profile
	teacher := testutil.CreateAccount(t, accounts, account.RoleTeacher, "t@x.com", "teach", "secret12", true)
	_, err = svc.AssignStudent(ctx, teacher.Account.ID, classroom.Assignment{ClassID: a.ID})
	assert.Equal(t, classroom.ErrStudentNotFound, errors.Cause(err))
}

// The stored count always equals the live number of active students in the class,
// whatever sequence of placements and (de)activations led there.
func TestService_studentCountMatchesLiveRows(t *testing.T) {
	svc, accounts, _ := setup()
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(42))

	classIDs := make([]string, 3)
	for i := range classIDs {
		cls, err := svc.CreateClass(ctx, classroom.NewClass{Name: fmt.Sprintf("C%d", i)})
		require.NoError(t, err)
		classIDs[i] = cls.ID
	}
	students := make([]string, 8)
	for i := range students {
		idt := testutil.CreateAccount(t, accounts, account.RoleStudent, fmt.Sprintf("s%d@x.com", i), fmt.Sprintf("s%d", i), "secret12", true)
		students[i] = idt.Account.ID
	}

	placement := make(map[string]string) // {student: class}
	active := make(map[string]bool)
	for _, id := range students {
		active[id] = true
	}

	for step := 0; step < 200; step++ {
		st := students[rnd.Intn(len(students))]
		switch rnd.Intn(3) {
		case 0:
			cls := classIDs[rnd.Intn(len(classIDs))]
			_, err := svc.AssignStudent(ctx, st, classroom.Assignment{ClassID: cls})
			require.NoError(t, err)
			placement[st] = cls
		case 1:
			_, err := svc.AssignStudent(ctx, st, classroom.Assignment{})
			require.NoError(t, err)
			delete(placement, st)
		case 2:
			active[st] = !active[st]
			require.NoError(t, accounts.SetActive(ctx, st, active[st], time.Now()))
		}
	}

	for _, id := range classIDs {
		want := 0
		for st, cls := range placement {
			if cls == id && active[st] {
				want++
			}
		}
		cls, err := svc.GetClass(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, cls.StudentCount, "class %s", id)

		recounted, err := svc.Recount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, recounted.StudentCount)
	}

	n, err := svc.RecountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(classIDs), n)
}
