package mailer

import (
	"context"
	"testing"

	"selfcare-backend/config"
	"selfcare-backend/internal/util"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	m := New(config.EmailConfig{
		Host: "localhost",
		Port: "25",
		From: "noreply@selfcare.local",
	})

	msg, err := m.buildMessage(
		"New order",
		"<p>Order 100000042 completed</p>",
		[]string{"orders@selfcare.local"},
		[]Attachment{
			{Filename: "signature.png", ContentType: "image/png", Data: []byte{0x89, 0x50, 0x4e, 0x47}},
		},
	)
	require.NoError(t, err)

	text := string(msg)
	assert.Contains(t, text, "From: noreply@selfcare.local")
	assert.Contains(t, text, "To: orders@selfcare.local")
	assert.Contains(t, text, "multipart/mixed")
	assert.Contains(t, text, "text/html; charset=utf-8")
	assert.Contains(t, text, `attachment; filename="signature.png"`)
	assert.Contains(t, text, "Order 100000042 completed")
}

func TestBuildMessageNoAttachments(t *testing.T) {
	m := New(config.EmailConfig{From: "noreply@selfcare.local"})

	msg, err := m.buildMessage("Feedback", "<p>question</p>", []string{"orders@selfcare.local"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(msg), "Content-Disposition: attachment")
}

func TestSendFailureCountsFailedOutcome(t *testing.T) {
	m := New(config.EmailConfig{Host: "localhost", Port: "25", From: "noreply@selfcare.local"})
	failedBefore := testutil.ToFloat64(util.NotificationsSentTotal.WithLabelValues("failed"))
	sentBefore := testutil.ToFloat64(util.NotificationsSentTotal.WithLabelValues("sent"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, "Order completed", "<p>done</p>", []string{"orders@selfcare.local"}, nil)
	require.Error(t, err)

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(util.NotificationsSentTotal.WithLabelValues("failed")))
	assert.Equal(t, sentBefore, testutil.ToFloat64(util.NotificationsSentTotal.WithLabelValues("sent")))
}
