package emailsvc

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/tests"
)

func setup(t *testing.T) (*core.Config, *testutil.Logger) {
	t.Helper()
	conf := core.NewTestConfig()
	logger := &testutil.Logger{}
	core.ParseEmailTemplates(conf, logger)
	ClearSentMessages()
	return conf, logger
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf, logger := setup(t)
	svc := NewConsoleServiceMock(conf, logger)
	to := []mail.Address{{Name: "Ann", Address: "ann@test.local"}}

	reset := &core.EmailMessage{
		To:           to,
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "Ann", "UID": "abc", "Token": "tok"},
	}
	report := &core.EmailMessage{
		To:           to,
		Subject:      "Grade report",
		TemplateName: "grade_report",
		TemplateData: map[string]interface{}{
			"Name":           "Ann",
			"OverallAverage": 7.5,
			"Passed":         1,
			"Failed":         0,
			"Subjects": []map[string]interface{}{
				{"Name": "Mathematics", "HasAverage": true, "Average": 7.5},
			},
		},
	}
	require.NoError(t, report.Attach(bytes.NewBufferString("xlsx"), "grades-ann.xlsx", "application/octet-stream"))
	noRecipient := &core.EmailMessage{Subject: "Lost", BodyStr: "nobody"}

	svc.SendMessages(reset, report, noRecipient)

	require.Len(t, SentMessages, 2)
	assert.Contains(t, SentMessages[0].TextContent, conf.FrontendBaseURL+"/password-reset/abc/tok")
	assert.Contains(t, SentMessages[1].TextContent, "Overall average: 7.50")
	assert.Contains(t, SentMessages[1].TextContent, "- Mathematics: 7.50")
	assert.Contains(t, SentMessages[1].HTMLContent, "<strong>7.50</strong>")
	assert.Zero(t, logger.Count())
}

func TestConsoleServiceMock_renderError(t *testing.T) {
	conf, logger := setup(t)
	svc := NewConsoleServiceMock(conf, logger)

	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "ann@test.local"}},
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "Ann"}, // missing UID and Token
	})

	assert.Empty(t, SentMessages)
	assert.Equal(t, 1, logger.Count())
}

func TestSendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, &testutil.Logger{}).(*sendgridService)

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Ann", Address: "ann@test.local"}},
		Cc:          []mail.Address{{Address: "tess@test.local"}},
		Subject:     "Grade report",
		TextContent: "hello",
	}
	require.NoError(t, msg.Attach(bytes.NewBufferString("xlsx"), "grades.xlsx", "application/octet-stream"))

	m := svc.prepare(msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Escolar] Grade report", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "ann@test.local", p.To[0].Address)
	require.Len(t, p.CC, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "grades.xlsx", m.Attachments[0].Filename)
	assert.Equal(t, conf.DefaultFromEmail.Address, m.From.Address)
}
