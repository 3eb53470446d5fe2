package service

import (
	"context"
	"fmt"

	"selfcare-backend/internal/models"
	"selfcare-backend/internal/texts"
	"selfcare-backend/internal/util"
	"selfcare-backend/internal/workflow"

	"go.uber.org/zap"
)

// OperatorInfo is the support contact card shown when a misdirected
// payment landed on another operator's number.
type OperatorInfo struct {
	Message      string `json:"message,omitempty"`
	Phone        string `json:"phone,omitempty"`
	PhoneCaption string `json:"phone_caption,omitempty"`
	Info         string `json:"info,omitempty"`
	Error        string `json:"error,omitempty"`
}

// homeOperators are the networks served by this backend; a payment to
// one of them is corrected here instead of via another operator's
// support line.
var homeOperators = map[string]bool{
	"sbt":       true,
	"com:unity": true,
}

var operatorsInfo = map[string]OperatorInfo{
	"mts": {
		Message:      `Contact the "MTS" support service`,
		Phone:        "8 800 250 0890",
		PhoneCaption: "Toll-free within the country",
		Info:         `The number %s belongs to "MTS"`,
	},
	"megafon": {
		Message:      `Contact the "MegaFon" support service`,
		Phone:        "8 800 550 05 00",
		PhoneCaption: "Toll-free within the country",
		Info:         `The number %s belongs to "MegaFon"`,
	},
	"beeline": {
		Message:      `Contact the "Beeline" support service`,
		Phone:        "8 800 700 0611",
		PhoneCaption: "Toll-free within the country",
		Info:         `The number %s belongs to "Beeline"`,
	},
	"tele2": {
		Message:      `Contact the "Tele2" support service`,
		Phone:        "8 800 555 0611",
		PhoneCaption: "Toll-free within the country",
		Info:         `The number %s belongs to "Tele2"`,
	},
	"yota": {
		Message: `Contact the "Yota" support service`,
		Info:    `The number %s belongs to "Yota"`,
	},
	"city": {
		Message: "Contact your operator's support service",
	},
}

// FixPayService drives misdirected-payment corrections: moving a
// payment to the right number or refunding it to a card.
type FixPayService struct {
	engine    *workflow.Engine
	confirmer *workflow.Confirmer
	resolver  workflow.NumberResolver
	logger    *zap.Logger
}

// NewFixPayService creates a new fixpay service
func NewFixPayService(
	engine *workflow.Engine,
	confirmer *workflow.Confirmer,
	resolver workflow.NumberResolver,
) *FixPayService {
	return &FixPayService{
		engine:    engine,
		confirmer: confirmer,
		resolver:  resolver,
		logger:    util.GetLogger(),
	}
}

// Info resolves a misdialed number's operator and returns the support
// contact card for it.
func (s *FixPayService) Info(ctx context.Context, number string) (*OperatorInfo, error) {
	_, operator, err := s.resolver.ResolveNumber(ctx, number)
	if err != nil {
		s.logger.Error("Failed to resolve number for fixpay info",
			zap.String("number", number),
			zap.Error(err))
		return nil, userErr(texts.SomethingWrong)
	}
	return s.operatorInfo(operator, number), nil
}

func (s *FixPayService) operatorInfo(operator, number string) *OperatorInfo {
	formatted := models.FormatNumber(number)
	if homeOperators[operator] {
		return &OperatorInfo{Error: fmt.Sprintf("The number %s is served by our network", formatted)}
	}
	info, ok := operatorsInfo[operator]
	if !ok {
		info = operatorsInfo["city"]
	}
	if info.Info != "" {
		info.Info = fmt.Sprintf(info.Info, formatted)
	}
	return &info
}

// Move opens a payment-move order for the misdialed number.
func (s *FixPayService) Move(ctx context.Context, clientID, number string, fields map[string]any) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "FixPayService.Move")
	defer span.End()

	region, operator, err := s.resolver.ResolveNumber(ctx, number)
	if err != nil {
		s.logger.Warn("Failed to resolve fixpay number",
			zap.String("number", number),
			zap.Error(err))
	}

	order := &models.Order{Kind: models.KindFixPayMove, ClientID: clientID}
	order.SetField("number", number)
	order.SetField("region", region)
	order.SetField("operator", operator)
	order.MergeOrderData(fields)

	return s.engine.Create(ctx, models.KindFixPayMove, clientID, order.Data, order.SData)
}

// MovePayResult pairs the created order with the off-net operator
// contact card, nil when the target number is on-net.
type MovePayResult struct {
	Order *models.Order
	Info  *OperatorInfo
}

// MovePay opens a move order and tells the subscriber where to go when
// the money landed on another operator.
func (s *FixPayService) MovePay(ctx context.Context, clientID, number string) (*MovePayResult, error) {
	ctx, span := util.StartSpan(ctx, "FixPayService.MovePay")
	defer span.End()

	region, operator, err := s.resolver.ResolveNumber(ctx, number)
	if err != nil {
		s.logger.Warn("Failed to resolve fixpay number",
			zap.String("number", number),
			zap.Error(err))
	}

	order := &models.Order{Kind: models.KindFixPayMove, ClientID: clientID}
	order.SetField("number", number)
	order.SetField("region", region)
	order.SetField("operator", operator)

	order, err = s.engine.Create(ctx, models.KindFixPayMove, clientID, order.Data, order.SData)
	if err != nil {
		return nil, err
	}

	result := &MovePayResult{Order: order}
	if !homeOperators[operator] {
		result.Info = s.operatorInfo(operator, number)
	}
	return result, nil
}

// Refund opens a refund-to-card order.
func (s *FixPayService) Refund(ctx context.Context, clientID, contactEmail string, fields map[string]any) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "FixPayService.Refund")
	defer span.End()

	order := &models.Order{Kind: models.KindFixPayRefund, ClientID: clientID}
	if contactEmail != "" {
		order.SetField("contact_email", contactEmail)
	}
	order.MergeOrderData(fields)

	return s.engine.Create(ctx, models.KindFixPayRefund, clientID, order.Data, order.SData)
}

// RefundDetails stores the card data into the protected payload.
func (s *FixPayService) RefundDetails(ctx context.Context, orderID int64, clientID string, cardData map[string]any) error {
	order, err := s.engine.Get(ctx, models.KindFixPayRefund, orderID, clientID)
	if err != nil {
		return err
	}
	if order.IsCompleted() {
		return workflow.ErrOrderCompleted
	}
	return s.engine.Update(ctx, order, nil, map[string]any{"card_data": cardData})
}

// MoveDetails fills in the move order: amounts, the correct
// destination number and its operator.
func (s *FixPayService) MoveDetails(ctx context.Context, orderID int64, clientID string, fields map[string]any, contactEmail string) error {
	order, err := s.engine.Get(ctx, models.KindFixPayMove, orderID, clientID)
	if err != nil {
		return err
	}
	if order.IsCompleted() {
		return workflow.ErrOrderCompleted
	}

	order.MergeOrderData(fields)

	updates := map[string]any{}
	if contactEmail != "" {
		updates["contact_email"] = contactEmail
	}
	if dst, _ := fields["dst_number"].(string); dst != "" {
		region, operator, err := s.resolver.ResolveNumber(ctx, dst)
		if err == nil {
			updates["dst_number_region"] = region
			updates["dst_number_operator"] = operator
		}
	}
	return s.engine.Update(ctx, order, updates, nil)
}

// Sign stores the signature image on a move or refund order.
func (s *FixPayService) Sign(ctx context.Context, kind string, orderID int64, clientID, signature string) error {
	order, err := s.engine.Get(ctx, kind, orderID, clientID)
	if err != nil {
		return err
	}
	if order.IsCompleted() {
		return workflow.ErrOrderCompleted
	}
	return s.engine.Update(ctx, order, nil, map[string]any{"signature": signature})
}

// Confirm binds the contact phone and sends the confirmation code.
func (s *FixPayService) Confirm(ctx context.Context, kind string, orderID int64, clientID, contactPhone string) (*workflow.IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "FixPayService.Confirm")
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
	return s.confirmer.Issue(ctx, kind, order.ID, order.ClientID, contactPhone, texts.FixPaySMSBody)
}

// Finalize verifies the code and completes the order. On a wrong code
// a fresh code is sent right away and the combined message is returned
// so the subscriber does not have to ask for a resend.
func (s *FixPayService) Finalize(ctx context.Context, kind string, orderID int64, clientID, code string) (string, error) {
	ctx, span := util.StartSpan(ctx, "FixPayService.Finalize")
	defer span.End()

	order, err := s.engine.Get(ctx, kind, orderID, clientID)
	if err != nil {
		return "", err
	}
	if order.IsCompleted() {
		return "", workflow.ErrOrderCompleted
	}

	if _, err := s.confirmer.Verify(ctx, kind, order.ID, 0, code); err != nil {
		issue, issueErr := s.confirmer.Issue(ctx, kind, order.ID,
			order.ClientID, order.ContactPhone(), texts.FixPaySMSBody)
		if issueErr != nil {
			s.logger.Error("Failed to re-issue fixpay code",
				zap.Int64("order_id", order.ID),
				zap.Error(issueErr))
			return "", userErr(texts.WrongCode)
		}
		return "", userErr(texts.FixPayWrongCode + issue.Message)
	}

	if err := s.engine.Finalize(ctx, order, nil, nil); err != nil {
		return "", err
	}
	return texts.FixPayCompleted, nil
}
