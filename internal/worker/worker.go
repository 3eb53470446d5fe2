package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"

	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/broker"
	"selfcare-backend/internal/mailer"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/store"
	"selfcare-backend/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker delivers back-office emails for completed orders.
// Delivery is best-effort: a failure alarms and the message is retried
// on the next consumer poll because the offset is not committed.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	mailer       *mailer.Mailer
	recipients   []string
	notifier     alert.Notifier
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	st *store.Store,
	m *mailer.Mailer,
	recipients []string,
	notifier alert.Notifier,
) *NotificationWorker {
	w := &NotificationWorker{
		consumer:   consumer,
		store:      st,
		mailer:     m,
		recipients: recipients,
		notifier:   notifier,
		logger:     util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCompleted(w.handleOrderCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	order, err := w.store.GetOrderByID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order %d: %w", event.OrderID, err)
	}
	if order == nil {
		w.logger.Warn("Completed order vanished before notification",
			zap.Int64("order_id", event.OrderID))
		return nil
	}
	if order.Data["order_sent"] != nil {
		return nil
	}

	subject := fmt.Sprintf("Order %d (%s) completed", order.UID, order.Kind)
	body := w.renderBody(order, event)
	attachments := w.collectAttachments(order)

	if err := w.mailer.Send(ctx, subject, body, w.recipients, attachments); err != nil {
		w.notifier.Alarm("Order notification email failed",
			zap.Int64("order_id", order.ID),
			zap.String("kind", order.Kind),
			zap.Error(err))
		return err
	}

	if err := w.store.MarkOrderNotified(ctx, order.ID); err != nil {
		// The email went out; the flag only suppresses duplicates.
		w.logger.Error("Failed to mark order notified",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
	return nil
}

func (w *NotificationWorker) renderBody(order *models.Order, event *models.OrderCompletedEvent) string {
	body := fmt.Sprintf(
		"<h3>Order %d</h3><p>Kind: %s<br>Client: %s<br>Phone: %s</p>",
		order.UID,
		html.EscapeString(order.Kind),
		html.EscapeString(order.ClientID),
		html.EscapeString(models.FormatNumber(order.ContactPhone())),
	)
	if event.Summary != "" {
		body += fmt.Sprintf("<p>%s</p>", html.EscapeString(event.Summary))
	}
	return body
}

// collectAttachments pulls subscriber photos and the signature image
// out of the protected payload.
func (w *NotificationWorker) collectAttachments(order *models.Order) []mailer.Attachment {
	var attachments []mailer.Attachment
	for _, key := range []string{"photo1", "photo2", "photo3", "signature"} {
		blob := order.Secret(key)
		if blob == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(blob)
		if err != nil {
			w.logger.Warn("Skipping undecodable attachment",
				zap.Int64("order_id", order.ID),
				zap.String("field", key))
			continue
		}
		attachments = append(attachments, mailer.Attachment{
			Filename:    key + ".png",
			ContentType: "image/png",
			Data:        data,
		})
	}
	return attachments
}
