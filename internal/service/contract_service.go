package service

import (
	"context"
	"errors"
	"fmt"

	"selfcare-backend/internal/billing"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/texts"
	"selfcare-backend/internal/util"
	"selfcare-backend/internal/workflow"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ProfileSource resolves subscriber identity data for the passport
// check. *billing.Client satisfies it.
type ProfileSource interface {
	GetSubscriberProfile(ctx context.Context, number string) (*billing.Profile, error)
}

// ContractService drives the contract edit and contract cancel flows.
// Both share the same staged shape: details, files, signature, contact
// phone confirmation, finalize.
type ContractService struct {
	engine    *workflow.Engine
	confirmer *workflow.Confirmer
	billing   ProfileSource
	jwtSecret []byte
	logger    *zap.Logger
}

// NewContractService creates a new contract service
func NewContractService(
	engine *workflow.Engine,
	confirmer *workflow.Confirmer,
	billingClient ProfileSource,
	jwtSecret []byte,
) *ContractService {
	return &ContractService{
		engine:    engine,
		confirmer: confirmer,
		billing:   billingClient,
		jwtSecret: jwtSecret,
		logger:    util.GetLogger(),
	}
}

func smsBodyForKind(kind string) string {
	switch kind {
	case models.KindContractCancel:
		return texts.ContractCancelSMSBody
	case models.KindMNP:
		return texts.MNPSMSBody
	case models.KindFixPayMove, models.KindFixPayRefund:
		return texts.FixPaySMSBody
	default:
		return texts.ContractEditSMSBody
	}
}

// Details creates a new order of the given kind or merges fields into
// an existing in-progress one.
func (s *ContractService) Details(ctx context.Context, kind, clientID string, orderID int64, fields map[string]any) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "ContractService.Details")
	defer span.End()

	if orderID != 0 {
		order, err := s.engine.Get(ctx, kind, orderID, clientID)
		if err != nil {
			return nil, err
		}
		order.MergeOrderData(fields)
		if err := s.engine.Update(ctx, order, nil, nil); err != nil {
			return nil, err
		}
		return order, nil
	}

	order := &models.Order{Kind: kind, ClientID: clientID}
	order.MergeOrderData(fields)
	return s.engine.Create(ctx, kind, clientID, order.Data, order.SData)
}

// Files stores uploaded document photos into the protected payload.
func (s *ContractService) Files(ctx context.Context, kind string, orderID int64, clientID string, photos map[string]string) error {
	order, err := s.engine.Get(ctx, kind, orderID, clientID)
	if err != nil {
		return err
	}

	secrets := make(map[string]any, len(photos))
	for name, blob := range photos {
		secrets[name] = blob
	}
	return s.engine.Update(ctx, order, nil, secrets)
}

// Sign stores the subscriber's signature image.
func (s *ContractService) Sign(ctx context.Context, kind string, orderID int64, clientID, signature string) error {
	order, err := s.engine.Get(ctx, kind, orderID, clientID)
	if err != nil {
		return err
	}
	return s.engine.Update(ctx, order, nil, map[string]any{"signature": signature})
}

// Confirm binds the contact phone and sends a confirmation code to it.
func (s *ContractService) Confirm(ctx context.Context, kind string, orderID int64, clientID, contactPhone string) (*workflow.IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "ContractService.Confirm")
	defer span.End()

	order, err := s.engine.Get(ctx, kind, orderID, clientID)
	if err != nil {
		return nil, err
	}
	if order.IsCompleted() {
		return nil, workflow.ErrOrderCompleted
	}

	if err := s.engine.Update(ctx, order, map[string]any{"contact_phone": contactPhone}, nil); err != nil {
		return nil, err
	}

	return s.confirmer.Issue(ctx, kind, order.ID, order.ClientID, contactPhone, smsBodyForKind(kind))
}

// Finalize verifies the code and completes the order, recording the
// contact email for the documents copy.
func (s *ContractService) Finalize(ctx context.Context, kind string, orderID int64, clientID, code, contactEmail string) (string, error) {
	ctx, span := util.StartSpan(ctx, "ContractService.Finalize")
	defer span.End()

	order, err := s.engine.Get(ctx, kind, orderID, clientID)
	if err != nil {
		return "", err
	}
	if order.IsCompleted() {
		// Late retry of an already processed request.
		return texts.ContractDone, nil
	}

	if _, err := s.confirmer.Verify(ctx, kind, order.ID, 0, code); err != nil {
		return "", err
	}

	fields := map[string]any{}
	if contactEmail != "" {
		fields["contact_email"] = contactEmail
	}
	if err := s.engine.Finalize(ctx, order, fields, nil); err != nil {
		if errors.Is(err, workflow.ErrOrderCompleted) {
			return texts.ContractDone, nil
		}
		return "", err
	}
	return texts.ContractDone, nil
}

// CancelFullRequest is the out-of-app cancellation entry: the
// subscriber follows a deep link whose token authorises the operation.
type CancelFullRequest struct {
	Token        string         `json:"token"`
	Number       string         `json:"number"`
	ContactPhone string         `json:"contact_phone"`
	Signature    string         `json:"signature"`
	DocID        string         `json:"docid"`
	Serial       string         `json:"serial"`
	Fields       map[string]any `json:"fields"`
}

// CancelFullResult carries the created order and the code delivery
// outcome.
type CancelFullResult struct {
	Order *models.Order
	Issue *workflow.IssueResult
}

// CancelFull validates the deep-link token and the subscriber's
// passport data against billing, then opens a cancel order and sends
// the confirmation code.
func (s *ContractService) CancelFull(ctx context.Context, req *CancelFullRequest) (*CancelFullResult, error) {
	ctx, span := util.StartSpan(ctx, "ContractService.CancelFull")
	defer span.End()

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(req.Token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, userErr(texts.CancelLinkExpired)
		}
		return nil, userErr(texts.CancelLinkInvalid)
	}

	omsisdn, _ := claims["omsisdn"].(string)
	if omsisdn != "7"+req.Number {
		return nil, userErr(texts.CancelLinkWrongNumber)
	}

	profile, err := s.billing.GetSubscriberProfile(ctx, req.Number)
	if err != nil {
		s.logger.Error("Failed to load subscriber profile for cancel",
			zap.String("number", req.Number),
			zap.Error(err))
		return nil, userErr(texts.SomethingWrong)
	}
	if req.DocID != profile.DocID || req.Serial != profile.Serial {
		return nil, userErr(texts.DataCheckFailed)
	}

	fields := map[string]any{
		"contact_phone": req.ContactPhone,
		"fio":           profile.FIO,
	}
	secrets := map[string]any{
		"signature": req.Signature,
	}

	order, err := s.engine.Create(ctx, models.KindContractCancel, req.Number, fields, secrets)
	if err != nil {
		return nil, err
	}
	order.MergeOrderData(req.Fields)
	if err := s.engine.Update(ctx, order, nil, nil); err != nil {
		return nil, err
	}

	issue, err := s.confirmer.Issue(ctx, models.KindContractCancel, order.ID,
		order.ClientID, req.ContactPhone, texts.ContractCancelSMSBody)
	if err != nil {
		return nil, err
	}

	return &CancelFullResult{Order: order, Issue: issue}, nil
}

// CancelByConfirmation completes a cancel order addressed through the
// confirmation id instead of the order id: the out-of-app flow only
// holds the confirmation handle.
func (s *ContractService) CancelByConfirmation(ctx context.Context, confirmationID int64, code, contactEmail string) (string, error) {
	ctx, span := util.StartSpan(ctx, "ContractService.CancelByConfirmation")
	defer span.End()

	confirm, err := s.confirmer.Verify(ctx, models.KindContractCancel, 0, confirmationID, code)
	if err != nil {
		return "", err
	}

	order, err := s.engine.Get(ctx, models.KindContractCancel, confirm.ConfirmItemID, "")
	if err != nil {
		return "", err
	}
	if order.IsCompleted() {
		return texts.ContractDone, nil
	}

	fields := map[string]any{}
	if contactEmail != "" {
		fields["contact_email"] = contactEmail
	}
	if err := s.engine.Finalize(ctx, order, fields, nil); err != nil {
		if errors.Is(err, workflow.ErrOrderCompleted) {
			return texts.ContractDone, nil
		}
		return "", err
	}
	return texts.ContractDone, nil
}
