package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/texts"
	"selfcare-backend/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfirmItemGeneric is the binding kind of standalone phone
// confirmations that are not attached to an order.
const ConfirmItemGeneric = "Confirm"

// ConfirmationStore is the persistence surface the confirmer needs.
type ConfirmationStore interface {
	CreateConfirmation(ctx context.Context, confirm *models.Confirmation) error
	LatestLiveConfirmation(ctx context.Context, item string, itemID, confirmID int64) (*models.Confirmation, error)
	UpdateConfirmationPayload(ctx context.Context, confirm *models.Confirmation) error
	SoftDeleteConfirmation(ctx context.Context, id int64) error
	SupersedeConfirmations(ctx context.Context, item string, itemID int64) error
	SupersedeClientConfirmations(ctx context.Context, item, clientID string) error
}

// SMSSender delivers a text to a phone. The operator hint lets the
// gateway pick a route; ok=false with a log line is a soft failure.
type SMSSender interface {
	Send(ctx context.Context, phone, operator, text string) (ok bool, logText string, err error)
}

// NumberResolver maps a number to its home region and operator.
type NumberResolver interface {
	ResolveNumber(ctx context.Context, number string) (region, operator string, err error)
}

// IssueResult is what the caller renders: whether the code went out and
// the human-readable status line. Delivery failure is not an error —
// the confirmation exists and retry is the remedy.
type IssueResult struct {
	Confirmation *models.Confirmation
	Delivered    bool
	Message      string
}

// Confirmer issues and verifies one-time SMS confirmation codes bound
// to an order and a contact phone.
type Confirmer struct {
	store      ConfirmationStore
	sms        SMSSender
	resolver   NumberResolver
	notifier   alert.Notifier
	publisher  EventPublisher
	logger     *zap.Logger
	codeLength int
	ttl        time.Duration
}

func NewConfirmer(store ConfirmationStore, sms SMSSender, resolver NumberResolver, notifier alert.Notifier, publisher EventPublisher, codeLength int, ttl time.Duration) *Confirmer {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	return &Confirmer{
		store:      store,
		sms:        sms,
		resolver:   resolver,
		notifier:   notifier,
		publisher:  publisher,
		logger:     util.GetLogger(),
		codeLength: codeLength,
		ttl:        ttl,
	}
}

// Issue invalidates any live confirmation for the binding, generates a
// fresh code, persists it and delivers it by SMS. smsTemplate must
// contain one %s verb for the code.
func (c *Confirmer) Issue(ctx context.Context, item string, itemID int64, clientID, contactPhone, smsTemplate string) (*IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "workflow.Issue")
	defer span.End()

	// Only the most recently issued code may verify.
	if itemID != 0 {
		if err := c.store.SupersedeConfirmations(ctx, item, itemID); err != nil {
			return nil, err
		}
	} else {
		if err := c.store.SupersedeClientConfirmations(ctx, item, clientID); err != nil {
			return nil, err
		}
	}

	code, err := GenerateCode(c.codeLength)
	if err != nil {
		return nil, err
	}

	confirm := &models.Confirmation{
		ClientID:      clientID,
		ConfirmItem:   item,
		ConfirmItemID: itemID,
		ContactPhone:  contactPhone,
		Data:          map[string]any{"sent": time.Now().UTC().Format(time.RFC3339Nano)},
		SData:         map[string]any{},
	}
	confirm.SetSecretCode(code)

	if err := c.store.CreateConfirmation(ctx, confirm); err != nil {
		return nil, err
	}
	util.ConfirmationsIssuedTotal.Inc()

	operator := ""
	if c.resolver != nil {
		if _, op, err := c.resolver.ResolveNumber(ctx, contactPhone); err == nil {
			operator = op
		}
	}

	ok, logText, err := c.sms.Send(ctx, contactPhone, operator, fmt.Sprintf(smsTemplate, code))
	if err != nil {
		ok = false
		logText = fmt.Sprintf("can't send confirm SMS: %v", err)
	}

	result := &IssueResult{Confirmation: confirm, Delivered: ok}
	if ok {
		confirm.Data["log"] = logText
		result.Message = fmt.Sprintf(texts.CodeSentSMS, confirm.FormattedContactPhone())
	} else {
		confirm.Data["error"] = logText
		result.Message = fmt.Sprintf(texts.CodeSentTryLater, confirm.FormattedContactPhone())
		c.notifier.Alarm(fmt.Sprintf("Confirmation %d code delivery failed", confirm.ID),
			zap.String("confirm_item", item),
			zap.Int64("confirm_item_id", itemID),
			zap.String("log", logText))
	}

	// The delivery log is auxiliary; losing it must not fail the issue.
	if err := c.store.UpdateConfirmationPayload(ctx, confirm); err != nil {
		c.logger.Warn("Failed to record confirmation delivery log",
			zap.Int64("confirmation_id", confirm.ID), zap.Error(err))
	}

	if c.publisher != nil {
		event := &models.ConfirmationIssuedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeConfirmationIssued,
				Timestamp: time.Now(),
			},
			ConfirmationID: confirm.ID,
			ConfirmItem:    item,
			ConfirmItemID:  itemID,
			Delivered:      ok,
		}
		if err := c.publisher.PublishConfirmationIssued(ctx, event); err != nil {
			c.logger.Warn("Failed to publish confirmation issued event",
				zap.Int64("confirmation_id", confirm.ID), zap.Error(err))
		}
	}

	return result, nil
}

// Verify checks a user-submitted code against the latest live
// confirmation for the binding. On match the confirmation is consumed
// (one-time use) and returned. Wrong code, absent binding and expired
// code all come back as ErrCodeMismatch so the response cannot leak
// whether an order exists. An unmatched attempt leaves the code valid
// for retry.
func (c *Confirmer) Verify(ctx context.Context, item string, itemID, confirmID int64, submittedCode string) (*models.Confirmation, error) {
	ctx, span := util.StartSpan(ctx, "workflow.Verify")
	defer span.End()

	confirm, err := c.store.LatestLiveConfirmation(ctx, item, itemID, confirmID)
	if err != nil {
		return nil, err
	}
	if confirm == nil {
		util.ConfirmationsFailedTotal.WithLabelValues("absent").Inc()
		return nil, ErrCodeMismatch
	}

	// The attempt counter moves on every fetch, matched or not.
	confirm.SetReadCount(confirm.ReadCount() + 1)
	confirm.SetCodeValue(strings.TrimSpace(submittedCode))
	confirm.Data["received"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := c.store.UpdateConfirmationPayload(ctx, confirm); err != nil {
		return nil, err
	}

	if c.ttl > 0 && time.Since(confirm.Created) > c.ttl {
		util.ConfirmationsFailedTotal.WithLabelValues("expired").Inc()
		return nil, ErrCodeMismatch
	}

	if confirm.SecretCode() == "" || confirm.SecretCode() != strings.TrimSpace(submittedCode) {
		util.ConfirmationsFailedTotal.WithLabelValues("mismatch").Inc()
		return nil, ErrCodeMismatch
	}

	if err := c.store.SoftDeleteConfirmation(ctx, confirm.ID); err != nil {
		return nil, err
	}

	util.ConfirmationsVerifiedTotal.Inc()
	c.logger.Info("Confirmation verified",
		zap.String("confirm_item", item),
		zap.Int64("confirm_item_id", itemID),
		zap.Int64("confirmation_id", confirm.ID))
	return confirm, nil
}
