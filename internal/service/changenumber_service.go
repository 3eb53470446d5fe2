package service

import (
	"context"
	"time"

	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/billing"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/redisclient"
	"selfcare-backend/internal/texts"
	"selfcare-backend/internal/util"
	"selfcare-backend/internal/workflow"

	"go.uber.org/zap"
)

const (
	numberPoolCacheTTL  = 10 * time.Minute
	changeNumberLockTTL = 30 * time.Second
)

// ChangeNumberService lets a subscriber pick a new MSISDN from the
// free pool and swaps it in billing synchronously.
type ChangeNumberService struct {
	engine   *workflow.Engine
	billing  *billing.Client
	redis    *redisclient.Client
	notifier alert.Notifier
	logger   *zap.Logger
}

// NewChangeNumberService creates a new change-number service
func NewChangeNumberService(
	engine *workflow.Engine,
	billingClient *billing.Client,
	redis *redisclient.Client,
	notifier alert.Notifier,
) *ChangeNumberService {
	return &ChangeNumberService{
		engine:   engine,
		billing:  billingClient,
		redis:    redis,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// AvailableNumbers lists free MSISDNs, preferring the Redis pool cache
// and falling back to the billing pool API. Searches always go to
// billing, the cache holds only the unfiltered pool.
func (s *ChangeNumberService) AvailableNumbers(ctx context.Context, region, search string, count int) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "ChangeNumberService.AvailableNumbers")
	defer span.End()

	if search == "" {
		cached, err := s.redis.CachedNumbers(ctx, region)
		if err != nil {
			s.logger.Warn("Number pool cache read failed",
				zap.String("region", region),
				zap.Error(err))
		} else if len(cached) > 0 {
			if count > 0 && len(cached) > count {
				cached = cached[:count]
			}
			return cached, nil
		}
	}

	numbers, err := s.billing.AvailableNumbers(ctx, region, search, count)
	if err != nil {
		s.logger.Error("Failed to list available numbers",
			zap.String("region", region),
			zap.Error(err))
		return nil, userErr(texts.SomethingWrong)
	}

	if search == "" && len(numbers) > 0 {
		if err := s.redis.CacheNumbers(ctx, region, numbers, numberPoolCacheTTL); err != nil {
			s.logger.Warn("Number pool cache write failed",
				zap.String("region", region),
				zap.Error(err))
		}
	}
	return numbers, nil
}

// ChangeNumber swaps the subscriber's MSISDN. The full billing
// exchange is kept in the order payload whatever the outcome; the
// order only completes when billing accepted the swap.
func (s *ChangeNumberService) ChangeNumber(ctx context.Context, clientID, region, newNumber string) (string, error) {
	ctx, span := util.StartSpan(ctx, "ChangeNumberService.ChangeNumber")
	defer span.End()

	// One swap in flight per subscriber; a double tap must not reach
	// billing twice.
	locked, err := s.redis.AcquireLock(ctx, "change_number:"+clientID, changeNumberLockTTL)
	if err != nil {
		s.logger.Warn("Change-number lock unavailable, proceeding without it",
			zap.String("client_id", clientID),
			zap.Error(err))
	} else if !locked {
		return "", userErr(texts.SomethingWrong)
	} else {
		defer func() {
			if err := s.redis.ReleaseLock(ctx, "change_number:"+clientID); err != nil {
				s.logger.Warn("Failed to release change-number lock",
					zap.String("client_id", clientID),
					zap.Error(err))
			}
		}()
	}

	order, err := s.engine.Create(ctx, models.KindChangeNumber, clientID,
		map[string]any{"new_number": newNumber}, nil)
	if err != nil {
		return "", err
	}

	callLog, replaceErr := s.billing.ReplaceMsisdn(ctx, clientID, newNumber)

	logFields := map[string]any{}
	if callLog != nil {
		logFields["log"] = map[string]any{
			"url":  callLog.URL,
			"req":  callLog.Request,
			"resp": callLog.Response,
			"dt":   callLog.Sent,
		}
	}

	if replaceErr != nil {
		logFields["error"] = replaceErr.Error()
		if err := s.engine.Update(ctx, order, logFields, nil); err != nil {
			s.logger.Error("Failed to record change-number failure",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
		s.notifier.Alarm("Number change failed in billing",
			zap.Int64("order_id", order.ID),
			zap.String("client_id", clientID),
			zap.String("new_number", newNumber),
			zap.Error(replaceErr))
		return "", userErr(texts.ChangeNumberUnavail)
	}

	if err := s.engine.Finalize(ctx, order, logFields, nil); err != nil {
		// Billing already swapped the number; the stale order record
		// is an operational problem, not the subscriber's.
		s.logger.Error("Failed to finalize change-number order",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	if err := s.redis.RemoveCachedNumber(ctx, region, newNumber); err != nil {
		s.logger.Warn("Failed to evict assigned number from pool cache",
			zap.String("number", newNumber),
			zap.Error(err))
	}

	return texts.ChangeNumberCompleted, nil
}
