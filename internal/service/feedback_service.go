package service

import (
	"context"

	"selfcare-backend/internal/models"
	"selfcare-backend/internal/texts"
	"selfcare-backend/internal/util"
	"selfcare-backend/internal/workflow"

	"go.uber.org/zap"
)

// FeedbackService accepts support questions. A feedback order has no
// confirmation stage, it completes on submission and the notification
// email goes to the back office.
type FeedbackService struct {
	engine *workflow.Engine
	logger *zap.Logger
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(engine *workflow.Engine) *FeedbackService {
	return &FeedbackService{
		engine: engine,
		logger: util.GetLogger(),
	}
}

// SubmitRequest is one support question with contact details.
type SubmitRequest struct {
	ClientID   string
	Name       string
	Phone      string
	Email      string
	Question   string
	OS         string
	AppVersion string
}

// Submit validates and records a feedback request. Each required field
// gets its own message so the client can point at the missing input.
func (s *FeedbackService) Submit(ctx context.Context, req *SubmitRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "FeedbackService.Submit")
	defer span.End()

	switch {
	case req.Name == "":
		return "", userErr(texts.FeedbackEnterName)
	case req.Phone == "":
		return "", userErr(texts.FeedbackEnterPhone)
	case req.Email == "":
		return "", userErr(texts.FeedbackEnterEmail)
	case req.Question == "":
		return "", userErr(texts.FeedbackEnterQuestion)
	}

	os := req.OS
	if os == "" {
		os = "-"
	}
	appVersion := req.AppVersion
	if appVersion == "" {
		appVersion = "-"
	}

	order := &models.Order{Kind: models.KindFeedback, ClientID: req.ClientID}
	order.SetField("contact_phone", req.Phone)
	order.SetField("contact_email", req.Email)
	order.SetField("os", os)
	order.SetField("app_version", appVersion)
	order.MergeOrderData(map[string]any{
		"name":     req.Name,
		"question": req.Question,
	})

	order, err := s.engine.Create(ctx, models.KindFeedback, req.ClientID, order.Data, order.SData)
	if err != nil {
		return "", err
	}
	if err := s.engine.Finalize(ctx, order, nil, nil); err != nil {
		s.logger.Error("Failed to finalize feedback order",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return "", err
	}
	return texts.FeedbackSuccess, nil
}
