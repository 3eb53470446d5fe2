package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"selfcare-backend/config"
	"selfcare-backend/internal/util"

	"go.uber.org/zap"
)

// Attachment is a file shipped with a notification email, typically
// subscriber photos or a signature image pulled from an order.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mailer sends notification emails over SMTP.
type Mailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
	logger   *zap.Logger
}

func New(cfg config.EmailConfig) *Mailer {
	return &Mailer{
		addr:     cfg.Host + ":" + cfg.Port,
		host:     cfg.Host,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		logger:   util.GetLogger(),
	}
}

// Send delivers one HTML email. The context bounds the whole SMTP
// exchange; callers treat a failure as recoverable and alarm instead
// of failing their flow.
func (m *Mailer) Send(ctx context.Context, subject, htmlBody string, recipients []string, attachments []Attachment) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg, err := m.buildMessage(subject, htmlBody, recipients, attachments)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, auth, m.from, recipients, msg)
	}()

	select {
	case <-ctx.Done():
		util.NotificationsSentTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("email send cancelled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			util.NotificationsSentTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("failed to send email: %w", err)
		}
	}

	util.NotificationsSentTotal.WithLabelValues("sent").Inc()
	m.logger.Info("Notification email sent",
		zap.String("subject", subject),
		zap.Int("recipients", len(recipients)),
		zap.Int("attachments", len(attachments)))
	return nil
}

func (m *Mailer) buildMessage(subject, htmlBody string, recipients []string, attachments []Attachment) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/html; charset=utf-8")
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to build email body: %w", err)
	}
	if _, err := bodyPart.Write([]byte(htmlBody)); err != nil {
		return nil, fmt.Errorf("failed to build email body: %w", err)
	}

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		header := textproto.MIMEHeader{}
		header.Set("Content-Type", contentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", att.Filename, err)
		}

		encoded := base64.StdEncoding.EncodeToString(att.Data)
		// 76-char lines per RFC 2045.
		for len(encoded) > 76 {
			if _, err := fmt.Fprintf(part, "%s\r\n", encoded[:76]); err != nil {
				return nil, fmt.Errorf("failed to attach %s: %w", att.Filename, err)
			}
			encoded = encoded[76:]
		}
		if _, err := fmt.Fprintf(part, "%s\r\n", encoded); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", att.Filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish email message: %w", err)
	}
	return buf.Bytes(), nil
}
