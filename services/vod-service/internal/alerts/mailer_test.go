package alerts

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

type mockSender struct {
	messages []*mail.Message
	err      error
}

func (m *mockSender) DialAndSend(msgs ...*mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func TestMailer_SendAlert(t *testing.T) {
	logger := zap.NewNop()

	t.Run("sends to operator", func(t *testing.T) {
		sender := &mockSender{}
		m := NewMailerWithSender(sender, "noreply@learnhub.dev", "ops@learnhub.dev", logger)

		require.NoError(t, m.SendAlert(context.Background(), "transcode failed", "media abc gave up after 3 attempts"))
		require.Len(t, sender.messages, 1)

		msg := sender.messages[0]
		assert.Equal(t, []string{"ops@learnhub.dev"}, msg.GetHeader("To"))
		assert.Equal(t, []string{"transcode failed"}, msg.GetHeader("Subject"))

		var buf bytes.Buffer
		_, err := msg.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "media abc gave up after 3 attempts")
	})

	t.Run("no recipient only logs", func(t *testing.T) {
		sender := &mockSender{}
		m := NewMailerWithSender(sender, "noreply@learnhub.dev", " ", logger)

		require.NoError(t, m.SendAlert(context.Background(), "s", "b"))
		assert.Empty(t, sender.messages)
	})

	t.Run("smtp failure", func(t *testing.T) {
		m := NewMailerWithSender(&mockSender{err: errors.New("connection refused")}, "a@b.c", "ops@learnhub.dev", logger)

		err := m.SendAlert(context.Background(), "s", "b")
		assert.ErrorContains(t, err, "failed to send alert")
	})
}
