package emailsvc

import (
	"io"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorias/core"
	logsvc "github.com/trezcool/tutorias/services/logger"
)

func TestSendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	tests := []struct {
		name           string
		testMode       bool
		msg            core.EmailMessage
		wantCategories []string
	}{
		{
			name:     "enrollment notice",
			testMode: true,
			msg: core.EmailMessage{
				To:           []mail.Address{{Name: "Ana", Address: "ana@example.com"}},
				Subject:      "MAT101: enrollment approved",
				TemplateName: "enrollment_approved",
				TextContent:  "approved",
				HTMLContent:  "<p>approved</p>",
			},
			wantCategories: []string{"tutorias", "enrollment_approved"},
		},
		{
			name: "plain message",
			msg: core.EmailMessage{
				To:          []mail.Address{{Address: "beto@example.com"}},
				Subject:     "hello",
				TextContent: "hello",
			},
			wantCategories: []string{"tutorias"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := *conf
			c.TestMode = tt.testMode
			svc := NewSendgridService(&c, logger).(*sendgridService)

			m := svc.prepare(tt.msg)
			require.Len(t, m.Personalizations, 1)
			assert.Equal(t, "[Tutorias] "+tt.msg.Subject, m.Personalizations[0].Subject)
			assert.Equal(t, tt.msg.To[0].Address, m.Personalizations[0].To[0].Address)
			assert.Equal(t, tt.wantCategories, m.Categories)

			wantContents := 1
			if tt.msg.HTMLContent != "" {
				wantContents = 2
			}
			assert.Len(t, m.Content, wantContents)

			if tt.testMode {
				require.NotNil(t, m.MailSettings)
				require.NotNil(t, m.MailSettings.SandboxMode)
				assert.True(t, *m.MailSettings.SandboxMode.Enable)
			} else {
				assert.Nil(t, m.MailSettings)
			}
		})
	}
}
