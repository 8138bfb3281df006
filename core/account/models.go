package account

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lms/core"
)

type Role string

// Roles
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
	RoleParent  Role = "parent"
)

var AllRoles = []Role{RoleStudent, RoleTeacher, RoleAdmin, RoleParent}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// HasProfile reports whether accounts of this role own a profile row.
func (r Role) HasProfile() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleAdmin
}

type Account struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	Username     null.String `db:"username"`
	PasswordHash []byte      `db:"password_hash"`
	Role         Role        `db:"role"`
	IsActive     bool        `db:"is_active"`
	CreatedAt    time.Time   `db:"created_at"` // UTC
	UpdatedAt    time.Time   `db:"updated_at"` // UTC
	LastLogin    null.Time   `db:"last_login"` // UTC
}

// TeacherProfile also backs admin accounts, flagged with IsAdmin.
type TeacherProfile struct {
	ID        string      `json:"id" db:"id"`
	AccountID string      `json:"-" db:"account_id"`
	Initials  null.String `json:"initials" db:"initials"`
	FirstName string      `json:"first_name" db:"first_name"`
	LastName  string      `json:"last_name" db:"last_name"`
	Address   null.String `json:"address" db:"address"`
	MobileNo  null.String `json:"mobile_no" db:"mobile_no"`
	ImageRef  null.String `json:"image_ref" db:"image_ref"`
	IsAdmin   bool        `json:"is_admin" db:"is_admin"`
}

type StudentProfile struct {
	ID           string      `json:"id" db:"id"`
	AccountID    string      `json:"-" db:"account_id"`
	Initials     null.String `json:"initials" db:"initials"`
	FirstName    string      `json:"first_name" db:"first_name"`
	LastName     string      `json:"last_name" db:"last_name"`
	GuardianName null.String `json:"guardian_name" db:"guardian_name"`
	GuardianType null.String `json:"guardian_type" db:"guardian_type"`
	ContactNo    null.String `json:"contact_no" db:"contact_no"`
	Address      null.String `json:"address" db:"address"`
	ImageRef     null.String `json:"image_ref" db:"image_ref"`
	ClassID      null.String `json:"class_id" db:"class_id"`
	TeacherID    null.String `json:"teacher_id" db:"teacher_id"`
}

// Identity is an Account together with its role-specific profile, if any.
type Identity struct {
	Account Account
	Teacher *TeacherProfile
	Student *StudentProfile
}

// Name returns the display name of the identity.
func (idt Identity) Name() string {
	switch {
	case idt.Teacher != nil:
		return idt.Teacher.FirstName + " " + idt.Teacher.LastName
	case idt.Student != nil:
		return idt.Student.FirstName + " " + idt.Student.LastName
	case idt.Account.Username.Valid:
		return idt.Account.Username.String
	}
	return idt.Account.Email
}

// IsAdmin reports whether the identity holds admin rights.
func (idt Identity) IsAdmin() bool {
	return idt.Account.Role == RoleAdmin || (idt.Teacher != nil && idt.Teacher.IsAdmin)
}

// Person returns the logging identity of the account.
func (idt Identity) Person() core.Person {
	return core.Person{ID: idt.Account.ID, Username: idt.Account.Username.String, Email: idt.Account.Email}
}

// Public returns the client facing view of the identity. It never carries the password hash.
func (idt Identity) Public() PublicAccount {
	return PublicAccount{
		ID:        idt.Account.ID,
		Email:     idt.Account.Email,
		Username:  idt.Account.Username,
		Role:      idt.Account.Role,
		IsActive:  idt.Account.IsActive,
		IsAdmin:   idt.IsAdmin(),
		CreatedAt: idt.Account.CreatedAt,
		UpdatedAt: idt.Account.UpdatedAt,
		LastLogin: idt.Account.LastLogin,
		Teacher:   idt.Teacher,
		Student:   idt.Student,
	}
}

type PublicAccount struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Username  null.String     `json:"username"`
	Role      Role            `json:"role"`
	IsActive  bool            `json:"is_active"`
	IsAdmin   bool            `json:"is_admin"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	LastLogin null.Time       `json:"last_login"`
	Teacher   *TeacherProfile `json:"teacher,omitempty"`
	Student   *StudentProfile `json:"student,omitempty"`
}

// AuthResult is returned by every operation that hands a fresh token to the caller.
type AuthResult struct {
	Token string        `json:"token"`
	User  PublicAccount `json:"user"`
}

// NewAccount contains information needed to register a new Account.
// Which profile fields are required depends on Role.
type NewAccount struct {
	Email        string `json:"email" form:"email" validate:"required,email,max=255"`
	Password     string `json:"password" form:"password" validate:"required"`
	Username     string `json:"username" form:"username" validate:"omitempty,max=50,alphanum_"`
	Role         string `json:"role" form:"role" validate:"oneof=student teacher parent"`
	Initials     string `json:"initials" form:"initials" validate:"max=10"`
	FirstName    string `json:"first_name" form:"first_name" validate:"max=100"`
	LastName     string `json:"last_name" form:"last_name" validate:"max=100"`
	Address      string `json:"address" form:"address" validate:"max=255"`
	MobileNo     string `json:"mobile_no" form:"mobile_no" validate:"max=30"`
	GuardianName string `json:"guardian_name" form:"guardian_name" validate:"max=100"`
	GuardianType string `json:"guardian_type" form:"guardian_type" validate:"max=30"`
	ContactNo    string `json:"contact_no" form:"contact_no" validate:"max=30"`
	ClassID      string `json:"class_id" form:"class_id" validate:"omitempty,uuid"`
	TeacherID    string `json:"teacher_id" form:"teacher_id" validate:"omitempty,uuid"`
}

// Clean normalizes NewAccount in place. Self-registration defaults to the student role.
func (na *NewAccount) Clean() {
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Role = core.CleanString(na.Role, true /* lower */)
	if na.Role == "" {
		na.Role = string(RoleStudent)
	}
	na.Initials = core.CleanString(na.Initials)
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Address = core.CleanString(na.Address)
	na.MobileNo = core.CleanString(na.MobileNo)
	na.GuardianName = core.CleanString(na.GuardianName)
	na.GuardianType = core.CleanString(na.GuardianType)
	na.ContactNo = core.CleanString(na.ContactNo)
	if na.Initials == "" && na.FirstName != "" && na.LastName != "" {
		na.Initials = initials(na.FirstName, na.LastName)
	}
	na.ClassID = core.CleanString(na.ClassID, true /* lower */)
	na.TeacherID = core.CleanString(na.TeacherID, true /* lower */)
}

// initials returns the upper-cased first letter of each name.
func initials(names ...string) string {
	var b strings.Builder
	for _, n := range names {
		if r, _ := utf8.DecodeRuneInString(n); r != utf8.RuneError {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// identity builds the Identity to persist. Profile IDs are assigned by the Store.
func (na NewAccount) identity(hash []byte, imageRef null.String, now time.Time) Identity {
	idt := Identity{
		Account: Account{
			Email:        na.Email,
			Username:     core.NullString(na.Username),
			PasswordHash: hash,
			Role:         Role(na.Role),
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	switch idt.Account.Role {
	case RoleTeacher:
		idt.Teacher = &TeacherProfile{
			Initials:  core.NullString(na.Initials),
			FirstName: na.FirstName,
			LastName:  na.LastName,
			Address:   core.NullString(na.Address),
			MobileNo:  core.NullString(na.MobileNo),
			ImageRef:  imageRef,
		}
	case RoleStudent:
		idt.Student = &StudentProfile{
			Initials:     core.NullString(na.Initials),
			FirstName:    na.FirstName,
			LastName:     na.LastName,
			GuardianName: core.NullString(na.GuardianName),
			GuardianType: core.NullString(na.GuardianType),
			ContactNo:    core.NullString(na.ContactNo),
			Address:      core.NullString(na.Address),
			ImageRef:     imageRef,
			ClassID:      core.NullString(na.ClassID),
			TeacherID:    core.NullString(na.TeacherID),
		}
	}
	return idt
}

// LoginRequest holds the credentials of a login attempt. One of Email or Username is required.
type LoginRequest struct {
	Email    string `json:"email" validate:"required_without=Username"`
	Username string `json:"username" validate:"required_without=Email"`
	Password string `json:"password" validate:"required"`
}

// identifier returns the normalized login identifier.
func (lr LoginRequest) identifier() string {
	if id := core.CleanString(lr.Email, true /* lower */); id != "" {
		return id
	}
	return core.CleanString(lr.Username, true /* lower */)
}

type PromoteRequest struct {
	Password string `json:"password" validate:"required"`
	Reason   string `json:"reason" validate:"max=255"`
}

type RoleChangeAudit struct {
	ID           int64     `json:"id" db:"id"`
	AccountID    string    `json:"account_id" db:"account_id"`
	PreviousRole Role      `json:"previous_role" db:"previous_role"`
	NewRole      Role      `json:"new_role" db:"new_role"`
	ChangedBy    string    `json:"changed_by" db:"changed_by"`
	Reason       string    `json:"reason" db:"reason"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
}
