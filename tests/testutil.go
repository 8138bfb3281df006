// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"io"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
	"github.com/trezcool/lms/services/logger"
)

// Config returns a TEST configuration with the cheapest bcrypt cost.
func Config(t *testing.T) *core.Config {
	t.Helper()
	return &core.Config{
		Env:                "TEST",
		Build:              "test",
		AppName:            "Masomo",
		TestMode:           true,
		WorkDir:            t.TempDir(),
		SecretKey:          "test-secret",
		BcryptCost:         bcrypt.MinCost,
		JWTExpirationDelta: 7 * 24 * time.Hour,
		DefaultFromEmail:   mail.Address{Name: "Masomo", Address: "noreply@masomo.test"},
		FrontendBaseURL:    "http://masomo.test",
		Server:             core.ServerConfig{DisableReqLogs: true, ShutdownTimeout: time.Second},
		Storage: core.StorageConfig{
			Backend:      "local",
			LocalDir:     t.TempDir(),
			MaxImageSize: 5 << 20,
		},
	}
}

// Validator returns a validator with every app validator registered.
func Validator() *validator.Validate {
	validate, _ := Validation()
	return validate
}

// Validation returns a validator along with the translator its messages are registered on.
func Validation() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	account.InitValidators(validate, translator)
	return validate, translator
}

// Logger returns a logger that reports nowhere.
func Logger() core.Logger {
	std := logrus.New()
	std.SetOutput(io.Discard)
	l := logsvc.NewRollbarLogger(std, &core.Config{Env: "TEST"})
	l.Enable(false)
	return l
}

// CreateAccount inserts an account, with the profile its role requires, straight into the store.
func CreateAccount(
	t *testing.T,
	store account.Store,
	role account.Role,
	email, username, pwd string,
	isActive bool,
) account.Identity {
	t.Helper()

	hash, err := account.NewHasher(bcrypt.MinCost).Hash(pwd)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	now := time.Now().UTC()
	idt := account.Identity{
		Account: account.Account{
			Email:        email,
			Username:     core.NullString(username),
			PasswordHash: hash,
			Role:         role,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	switch role {
	case account.RoleTeacher, account.RoleAdmin:
		idt.Teacher = &account.TeacherProfile{
			Initials:  null.StringFrom("T"),
			FirstName: "Teacher",
			LastName:  username,
			IsAdmin:   role == account.RoleAdmin,
		}
	case account.RoleStudent:
		idt.Student = &account.StudentProfile{FirstName: "Student", LastName: username}
	}

	ctx := context.Background()
	idt, err = store.InsertAccountAndProfile(ctx, idt)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	if !isActive {
		if err := store.SetActive(ctx, idt.Account.ID, false, now); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
		idt.Account.IsActive = false
	}
	return idt
}

// CreateClass inserts a class straight into the store.
func CreateClass(t *testing.T, store classroom.Store, name string, teacherID ...string) classroom.Class {
	t.Helper()

	now := time.Now().UTC()
	cls := classroom.Class{Name: name, CreatedAt: now, UpdatedAt: now}
	if len(teacherID) > 0 {
		cls.TeacherID = null.StringFrom(teacherID[0])
	}
	cls, err := store.InsertClass(context.Background(), cls)
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}
