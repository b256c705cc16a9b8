package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/internal/models"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestEmailNotifier(t *testing.T, cfg SMTPConfig, failuresOnly bool, sendErr error) (*EmailNotifier, *[]sentMail) {
	t.Helper()
	n, err := NewEmailNotifier(cfg, failuresOnly, zap.NewNop())
	require.NoError(t, err)
	var sent []sentMail
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return sendErr
	}
	return n, &sent
}

var testSMTP = SMTPConfig{Host: "smtp.example.com", Port: "587", From: "breedpipe@example.com", To: "data@example.com; oncall@example.com,"}

func TestParseRecipientList(t *testing.T) {
	assert.Equal(t, []string{"a@x.io", "b@x.io", "c@x.io"}, parseRecipientList(" a@x.io; b@x.io ,c@x.io,, "))
	assert.Empty(t, parseRecipientList(""))
	assert.Empty(t, parseRecipientList(" ; , "))
}

func TestNewEmailNotifier_Validation(t *testing.T) {
	_, err := NewEmailNotifier(SMTPConfig{Host: "smtp.example.com", Port: "25"}, true, zap.NewNop())
	assert.ErrorContains(t, err, "no alert email recipients")

	_, err = NewEmailNotifier(SMTPConfig{To: "a@x.io"}, true, zap.NewNop())
	assert.ErrorContains(t, err, "SMTP host and port are required")
}

func TestEmailNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Failure email", func(t *testing.T) {
		n, sent := newTestEmailNotifier(t, testSMTP, true, nil)
		require.NoError(t, n.Notify(ctx, EventFromRun(sampleRun(models.RunStatusFailed))))
		require.Len(t, *sent, 1)

		mail := (*sent)[0]
		assert.Equal(t, "smtp.example.com:587", mail.addr)
		assert.Nil(t, mail.auth, "no credentials means no auth")
		assert.Equal(t, "breedpipe@example.com", mail.from)
		assert.Equal(t, []string{"data@example.com", "oncall@example.com"}, mail.to)
		assert.Contains(t, mail.msg, "Subject: [breedpipe] all failed\r\n")
		assert.Contains(t, mail.msg, "To: data@example.com, oncall@example.com\r\n")
		assert.Contains(t, mail.msg, "Load:     load-1 (172 rows)\r\n")
		assert.Contains(t, mail.msg, "Error: 1 test failed\r\n")
		assert.Contains(t, mail.msg, " - assert_dim_dog_breeds_null_rate\r\n")
	})

	t.Run("Failures only skips successful runs", func(t *testing.T) {
		n, sent := newTestEmailNotifier(t, testSMTP, true, nil)
		require.NoError(t, n.Notify(ctx, EventFromRun(sampleRun(models.RunStatusSuccess))))
		assert.Empty(t, *sent)
	})

	t.Run("Credentials enable auth", func(t *testing.T) {
		cfg := testSMTP
		cfg.Username, cfg.Password = "user", "secret"
		n, sent := newTestEmailNotifier(t, cfg, false, nil)
		require.NoError(t, n.Notify(ctx, EventFromRun(sampleRun(models.RunStatusSuccess))))
		require.Len(t, *sent, 1)
		assert.NotNil(t, (*sent)[0].auth)
	})

	t.Run("Send error is wrapped", func(t *testing.T) {
		n, _ := newTestEmailNotifier(t, testSMTP, false, errors.New("connection refused"))
		err := n.Notify(ctx, EventFromRun(sampleRun(models.RunStatusFailed)))
		assert.ErrorContains(t, err, "failed to send alert email via smtp.example.com:587: connection refused")
	})

	t.Run("Cancelled context", func(t *testing.T) {
		n, sent := newTestEmailNotifier(t, testSMTP, false, nil)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, n.Notify(cancelled, EventFromRun(sampleRun(models.RunStatusFailed))), context.Canceled)
		assert.Empty(t, *sent)
	})
}
