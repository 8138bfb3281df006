package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Hello World", CleanString("  Hello World \n"))
	assert.Equal(t, "hello@test.cd", CleanString(" Hello@Test.CD ", true /* lower */))
}

func TestNullString(t *testing.T) {
	assert.False(t, NullString("   ").Valid)
	ns := NullString(" Kin ", true)
	assert.True(t, ns.Valid)
	assert.Equal(t, "kin", ns.String)
}

func TestBuildConfig(t *testing.T) {
	newViper := func() *viper.Viper {
		v := viper.New()
		setDefaults(v)
		return v
	}

	t.Run("secret required outside DEV|TEST", func(t *testing.T) {
		_, err := buildConfig(newViper(), "PROD", t.TempDir())
		assert.Equal(t, ErrMissingSecretKey, err)
	})

	t.Run("random secret in DEV", func(t *testing.T) {
		c1, err := buildConfig(newViper(), "DEV", t.TempDir())
		require.NoError(t, err)
		c2, err := buildConfig(newViper(), "DEV", t.TempDir())
		require.NoError(t, err)
		assert.Len(t, c1.SecretKey, 64)
		assert.NotEqual(t, c1.SecretKey, c2.SecretKey)
	})

	t.Run("defaults", func(t *testing.T) {
		v := newViper()
		v.Set("secretKey", "s3cr3t")
		v.Set("bcryptCost", 99)
		conf, err := buildConfig(v, "QA", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", conf.SecretKey)
		assert.Equal(t, bcrypt.DefaultCost, conf.BcryptCost)
		assert.Equal(t, 7*24*time.Hour, conf.JWTExpirationDelta)
		assert.Equal(t, "noreply@localhost", conf.DefaultFromEmail.Address)
		assert.Equal(t, int64(5<<20), conf.Storage.MaxImageSize)
		assert.Equal(t, "localhost:5432", conf.Database.Address())
		assert.False(t, conf.IsLocal())
		assert.False(t, conf.Debug)
	})

	t.Run("debug defaults", func(t *testing.T) {
		tests := []struct {
			env  string
			set  interface{} // nil: unset
			want bool
		}{
			{env: "DEV", want: true},
			{env: "TEST", want: false},
			{env: "PROD", want: false},
			{env: "PROD", set: true, want: true},
			{env: "DEV", set: false, want: false},
		}
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%v", tt.env, tt.set), func(t *testing.T) {
				v := newViper()
				v.Set("secretKey", "s3cr3t")
				if tt.set != nil {
					v.Set("debug", tt.set)
				}
				conf, err := buildConfig(v, tt.env, t.TempDir())
				require.NoError(t, err)
				assert.Equal(t, tt.want, conf.Debug)
			})
		}
	})

	t.Run("PROD from the environment", func(t *testing.T) {
		t.Setenv("ENV", "PROD")
		t.Setenv("PROD_SECRETKEY", "s3cr3t")
		t.Setenv("WORKDIR", t.TempDir())
		conf, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, "PROD", conf.Env)
		assert.False(t, conf.Debug)
	})
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(nil,
		FieldError{Field: "email", Error: "this field is required"},
		FieldError{Field: "password", Error: "password is too common"},
	)
	assert.Equal(t, "email: this field is required; password: password is too common", err.Error())
	assert.False(t, IsShutdown(err))
	assert.True(t, IsShutdown(NewShutdownError("bye")))
}

func TestTranslateErrors(t *testing.T) {
	translator := NewTranslator()
	validate := NewValidator(translator)

	type payload struct {
		Name     string `json:"name" validate:"required"`
		Username string `json:"username" validate:"omitempty,alphanum_"`
	}
	err := validate.Struct(payload{Username: "bad name!"})
	require.Error(t, err)
	vErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)

	assert.ElementsMatch(t, []FieldError{
		{Field: "name", Error: "this field is required"},
		{Field: "username", Error: "only alphanumeric characters and underscores are allowed"},
	}, TranslateErrors(vErrs, translator))
}

func TestEmailMessage_Render(t *testing.T) {
	msg := &EmailMessage{
		TemplateName: "welcome",
		TemplateData: struct{ Name, Role string }{Name: "Ada", Role: "teacher"},
	}
	require.NoError(t, msg.Render("http://lms.test"))
	assert.Contains(t, msg.TextContent, "Hi Ada")
	assert.Contains(t, msg.TextContent, "http://lms.test/login")
	assert.Contains(t, msg.HTMLContent, "<p>Hi Ada,</p>")
	assert.True(t, msg.HasContent())
	// layouts come from the _base files
	assert.Contains(t, msg.TextContent, "The Masomo team")
	assert.Contains(t, msg.HTMLContent, "<!DOCTYPE html>")

	changed := &EmailMessage{
		TemplateName: "role_changed",
		TemplateData: struct{ Name, PreviousRole, NewRole string }{Name: "Ada", PreviousRole: "teacher", NewRole: "admin"},
	}
	require.NoError(t, changed.Render("http://lms.test"))
	assert.Contains(t, changed.TextContent, "from teacher to admin")
	assert.Contains(t, changed.TextContent, "The Masomo team")
	assert.Contains(t, changed.HTMLContent, "<b>teacher</b> to <b>admin</b>")

	unknown := &EmailMessage{TemplateName: "lol"}
	assert.Error(t, unknown.Render(""))

	plain := &EmailMessage{BodyStr: "hello"}
	require.NoError(t, plain.Render(""))
	assert.Equal(t, "hello", plain.TextContent)
}

func TestUpload_Ext(t *testing.T) {
	assert.Equal(t, "jpeg", Upload{Filename: "Me.JPEG"}.Ext())
	assert.Equal(t, "", Upload{Filename: "noext"}.Ext())
}
