package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
	"github.com/trezcool/lms/core/token"
	"github.com/trezcool/lms/services/email"
	"github.com/trezcool/lms/storage/database/inmem"
	"github.com/trezcool/lms/storage/files"
	"github.com/trezcool/lms/tests"
)

type testEnv struct {
	app      *Server
	conf     *core.Config
	accounts account.Store
	classes  classroom.Store
	tokens   *token.Issuer
}

func setup(t *testing.T) testEnv {
	t.Helper()
	conf := testutil.Config(t)
	db := inmemdb.New()
	accounts, classes := inmemdb.NewAccountStore(db), inmemdb.NewClassStore(db)

	tokens, err := token.NewIssuer(conf.SecretKey, conf.AppName, conf.JWTExpirationDelta)
	require.NoError(t, err)
	files, err := filestore.NewLocalStore(conf.Storage.LocalDir)
	require.NoError(t, err)
	logger := testutil.Logger()
	validate, translator := testutil.Validation()

	accSvc, err := account.NewService(conf, accounts, tokens, files, emailsvc.NewConsoleServiceMock(conf, logger), validate, logger)
	require.NoError(t, err)
	emailsvc.ResetSentMessages()

	app := NewServer(conf, &Deps{
		AccountSvc: accSvc,
		ClassSvc:   classroom.NewService(classes, validate),
		Translator: translator,
		Logger:     logger,
	})
	return testEnv{app: app, conf: conf, accounts: accounts, classes: classes, tokens: tokens}
}

func (env testEnv) getToken(t *testing.T, idt account.Identity) string {
	t.Helper()
	tok, err := env.tokens.Issue(idt.Account.ID, idt.Account.Email, string(idt.Account.Role))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return tok
}

func (env testEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte // not compared when nil
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	if method == "" {
		method = http.MethodGet
	}
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func errBody(t *testing.T, msg string) []byte {
	return marchallObj(t, httpErr{Error: msg})
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestServer_home(t *testing.T) {
	env := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo API!", rec.Body.String())

	// trailing slashes are ignored
	req, rec = newRequest(http.MethodGet, "/api/auth/me/")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req, rec = newRequest(http.MethodGet, "/api/nowhere")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "Not Found"}`, rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	env := setup(t)
	testutil.CreateAccount(t, env.accounts, account.RoleStudent, "jane@x.com", "jane", "secret12", true)

	req, rec := newRequest(http.MethodPost, "/api/auth/login", []byte(`{"username": "jane", "password": "nope-nope"}`))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req, rec = newRequest(http.MethodGet, "/metrics")
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `lms_logins_total{outcome="invalid_credentials"} 1`), body)
	assert.True(t, strings.Contains(body, `lms_http_requests_total{code="401",method="POST",route="/api/auth/login"} 1`), body)
}
