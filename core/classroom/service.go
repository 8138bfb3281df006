package classroom

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrClassNotFound   = errors.New("class not found")
	ErrClassExists     = errors.New("a class with this name already exists")
	ErrTeacherNotFound = errors.New("teacher not found")
	ErrStudentNotFound = errors.New("student not found")

	NowFunc = time.Now // mockable
)

type (
	// Store persists classes. Every write that changes class membership recomputes
	// `student_count` from the live rows in the same transaction.
	Store interface {
		InsertClass(ctx context.Context, cls Class) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		// AssignStudent sets the class of the student owned by account `studentID`
		// and recounts both the previous and the new class.
		AssignStudent(ctx context.Context, studentID string, classID null.String, at time.Time) (StudentPlacement, error)
		RecountClass(ctx context.Context, id string) (Class, error)
		RecountAll(ctx context.Context) (int, error)
	}

	Service struct {
		store    Store
		validate *validator.Validate
	}
)

func NewService(store Store, validate *validator.Validate) *Service {
	return &Service{store: store, validate: validate}
}

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	nc.Clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Class{}, err
	}
	now := NowFunc().UTC()
	cls, err := svc.store.InsertClass(ctx, Class{
		Name:      nc.Name,
		TeacherID: null.NewString(nc.TeacherID, nc.TeacherID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (svc *Service) GetClass(ctx context.Context, id string) (Class, error) {
	cls, err := svc.store.GetClass(ctx, id)
	if err != nil {
		return Class{}, errors.Wrap(err, "getting class")
	}
	return cls, nil
}

func (svc *Service) AssignStudent(ctx context.Context, studentID string, asg Assignment) (StudentPlacement, error) {
	if err := svc.validate.Struct(asg); err != nil {
		return StudentPlacement{}, err
	}
	classID := null.NewString(asg.ClassID, asg.ClassID != "")
	placement, err := svc.store.AssignStudent(ctx, studentID, classID, NowFunc().UTC())
	if err != nil {
		return StudentPlacement{}, errors.Wrap(err, "assigning student")
	}
	return placement, nil
}

func (svc *Service) Recount(ctx context.Context, id string) (Class, error) {
	cls, err := svc.store.RecountClass(ctx, id)
	if err != nil {
		return Class{}, errors.Wrap(err, "recounting class")
	}
	return cls, nil
}

// RecountAll recomputes every class count and returns the number of classes touched.
func (svc *Service) RecountAll(ctx context.Context) (int, error) {
	n, err := svc.store.RecountAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "recounting classes")
	}
	return n, nil
}
