package emailsvc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/mail"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lms/core"
)

type recLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recLogger) Debug(string, ...interface{}) {}
func (l *recLogger) Info(string, ...interface{})  {}
func (l *recLogger) Warn(string, ...interface{})  {}
func (l *recLogger) Fatal(string, ...interface{}) {}
func (l *recLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func testConf() *core.Config {
	return &core.Config{
		AppName:          "Masomo",
		DefaultFromEmail: mail.Address{Name: "Masomo", Address: "noreply@masomo.test"},
		FrontendBaseURL:  "http://masomo.test",
		SendgridApiKey:   "sg-key",
	}
}

func welcome() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Ada L", Address: "ada@test.cd"}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: struct{ Name, Role string }{Name: "Ada L", Role: "student"},
	}
}

func TestConsoleServiceMock(t *testing.T) {
	ResetSentMessages()
	logger := new(recLogger)
	svc := NewConsoleServiceMock(testConf(), logger)

	svc.SendMessages(welcome(), &core.EmailMessage{Subject: "no recipient", BodyStr: "lol"}, &core.EmailMessage{
		To: []mail.Address{{Address: "x@test.cd"}}, TemplateName: "unknown",
	})

	sent := GetSentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Hi Ada L")
	assert.Contains(t, sent[0].HTMLContent, "Ada L")
	assert.Len(t, logger.errors, 1)
}

func TestConsoleService_send(t *testing.T) {
	var out bytes.Buffer
	svc := consoleService{
		defaultFromEmail: testConf().DefaultFromEmail,
		subjPrefix:       "[Masomo] ",
		out:              &out,
	}
	msg := welcome()
	require.NoError(t, msg.Render("http://masomo.test"))
	require.NoError(t, svc.send(*msg))

	assert.Contains(t, out.String(), "Subject: [Masomo] Welcome")
	assert.Contains(t, out.String(), `To: "Ada L" <ada@test.cd>`)
	assert.Contains(t, out.String(), "text/html")
}

func TestSendgridService_send(t *testing.T) {
	logger := new(recLogger)
	svc := NewSendgridService(testConf(), logger).(*sendgridService)

	var gotReq rest.Request
	defer func() { sendgridAPIFunc = sendgrid.API }()
	sendgridAPIFunc = func(req rest.Request) (*rest.Response, error) {
		gotReq = req
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	msg := welcome()
	require.NoError(t, msg.Render(svc.frontendBaseURL))
	svc.send(*msg)

	assert.Equal(t, rest.Post, gotReq.Method)
	assert.Equal(t, host+endpoint, gotReq.BaseURL)
	assert.Equal(t, "Bearer sg-key", gotReq.Headers["Authorization"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(gotReq.Body, &body))
	pers := body["personalizations"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "[Masomo] Welcome", pers["subject"])
	assert.Len(t, body["content"], 2)
	assert.Empty(t, logger.errors)

	sendgridAPIFunc = func(rest.Request) (*rest.Response, error) { return nil, errors.New("network down") }
	svc.send(*msg)
	sendgridAPIFunc = func(rest.Request) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusBadRequest, Body: "bad"}, nil
	}
	svc.send(*msg)
	assert.Len(t, logger.errors, 2)
}
