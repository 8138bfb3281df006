package classroom

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lms/core"
)

type Class struct {
	ID           string      `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	TeacherID    null.String `json:"teacher_id" db:"teacher_id"`
	StudentCount int         `json:"student_count" db:"student_count"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name      string `json:"name" validate:"required,max=100"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid"`
}

func (nc *NewClass) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.TeacherID = core.CleanString(nc.TeacherID, true /* lower */)
}

// Assignment moves a student into a class, or out of any class when ClassID is empty.
type Assignment struct {
	ClassID string `json:"class_id" validate:"omitempty,uuid"`
}

// StudentPlacement is the class membership of a student after an assignment.
type StudentPlacement struct {
	StudentID string      `json:"student_id"`
	ClassID   null.String `json:"class_id"`
	Class     *Class      `json:"class,omitempty"`
}
