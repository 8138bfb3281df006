package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T, secret string) *Issuer {
	iss, err := NewIssuer(secret, "Masomo", 7*24*time.Hour)
	require.NoError(t, err)
	return iss
}

func TestNewIssuer_emptySecret(t *testing.T) {
	_, err := NewIssuer("", "Masomo", time.Hour)
	assert.Equal(t, errEmptySecret, err)
}

func TestIssuer_roundTrip(t *testing.T) {
	iss := newIssuer(t, "secret")

	tok, err := iss.Issue("acc-1", "a@x.com", "teacher")
	require.NoError(t, err)

	claims, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "teacher", claims.Role)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "Masomo", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestIssuer_Verify(t *testing.T) {
	iss := newIssuer(t, "secret")
	valid, err := iss.Issue("acc-1", "a@x.com", "student")
	require.NoError(t, err)

	// issued 8 days ago: expired a day ago
	iss.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	expired, err := iss.Issue("acc-1", "a@x.com", "student")
	require.NoError(t, err)
	iss.now = time.Now // reset

	forged, err := newIssuer(t, "other-secret").Issue("acc-1", "a@x.com", "admin")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{AccountID: "acc-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{AccountID: "acc-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noAccount, err := iss.Issue("", "a@x.com", "student")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", wantErr: ErrInvalidToken},
		{name: "malformed", token: "lol.lol.lol", wantErr: ErrInvalidToken},
		{name: "bad signature", token: forged, wantErr: ErrInvalidToken},
		{name: "alg none", token: none, wantErr: ErrInvalidToken},
		{name: "unexpected alg", token: hs512, wantErr: ErrInvalidToken},
		{name: "missing account", token: noAccount, wantErr: ErrInvalidToken},
		{name: "expired", token: expired, wantErr: ErrTokenExpired},
		{name: "valid", token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Verify(tt.token)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}
