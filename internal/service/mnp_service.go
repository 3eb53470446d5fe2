package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"selfcare-backend/config"
	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/billing"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/texts"
	"selfcare-backend/internal/util"
	"selfcare-backend/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// testICCID substitutes the real SIM identifier for test accounts.
const testICCID = "00000000000000000000"

// BillingDirectory is the slice of the billing API the porting flow
// needs. *billing.Client satisfies it.
type BillingDirectory interface {
	ResolveNumber(ctx context.Context, number string) (region, operator string, err error)
	GetICCID(ctx context.Context, number string) (string, error)
	GetSubscriberProfile(ctx context.Context, number string) (*billing.Profile, error)
}

// PortStore looks up completed portings for the cool-off gate.
// *store.Store satisfies it.
type PortStore interface {
	LastPort(ctx context.Context, number string) (*models.Port, error)
}

// MNPService drives number porting requests: eligibility gates,
// contract data collection, confirmation and the final port request.
type MNPService struct {
	engine    *workflow.Engine
	confirmer *workflow.Confirmer
	store     PortStore
	billing   BillingDirectory
	sms       workflow.SMSSender
	notifier  alert.Notifier
	cfg       config.MNPConfig
	logger    *zap.Logger
}

// NewMNPService creates a new MNP service
func NewMNPService(
	engine *workflow.Engine,
	confirmer *workflow.Confirmer,
	st PortStore,
	billingClient BillingDirectory,
	sms workflow.SMSSender,
	notifier alert.Notifier,
	cfg config.MNPConfig,
) *MNPService {
	return &MNPService{
		engine:    engine,
		confirmer: confirmer,
		store:     st,
		billing:   billingClient,
		sms:       sms,
		notifier:  notifier,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// InfoRequest starts or updates a porting request.
type InfoRequest struct {
	ClientID   string
	Number     string
	MNPDate    string
	MNPTime    string
	OrderID    int64
	APIVersion int
}

// InfoResult returns the order id and, for v2 clients, the pre-filled
// contract details.
type InfoResult struct {
	OrderID int64
	Details map[string]any
}

func (s *MNPService) isTestUser(clientID string) bool {
	for _, u := range s.cfg.TestUsers {
		if u == clientID {
			return true
		}
	}
	return false
}

func (s *MNPService) isTestNumber(number string) bool {
	for _, n := range s.cfg.TestNumbers {
		if n == number {
			return true
		}
	}
	return false
}

// Info runs the eligibility gates and persists the porting request.
// Every gate rejects before any confirmation is issued.
func (s *MNPService) Info(ctx context.Context, req *InfoRequest) (*InfoResult, error) {
	ctx, span := util.StartSpan(ctx, "MNPService.Info")
	defer span.End()

	if req.Number == "" {
		return nil, userErr(texts.MNPNumberRequired)
	}

	var order *models.Order
	var err error
	if req.OrderID != 0 {
		order, err = s.engine.Get(ctx, models.KindMNP, req.OrderID, "")
		if err != nil {
			return nil, err
		}
	}
	clientID := req.ClientID
	if order != nil && order.ClientID != "" {
		clientID = order.ClientID
	}

	clientRegion, clientOperator, err := s.billing.ResolveNumber(ctx, clientID)
	if err != nil {
		s.logger.Error("Failed to resolve recipient number",
			zap.String("client_id", clientID),
			zap.Error(err))
		return nil, userErr(texts.SomethingWrong)
	}

	mnpRegion, mnpOperator, err := s.billing.ResolveNumber(ctx, req.Number)
	if err != nil {
		s.logger.Error("Failed to resolve ported number",
			zap.String("number", req.Number),
			zap.Error(err))
		return nil, userErr(texts.SomethingWrong)
	}

	if mnpOperator == clientOperator {
		return nil, userErr(texts.MNPEqualOperators)
	}
	if mnpRegion != clientRegion && !s.isTestUser(clientID) && !s.isTestNumber(req.Number) {
		return nil, userErr(texts.MNPDiffRegions)
	}

	if err := s.checkPortCooloff(ctx, req.Number); err != nil {
		return nil, err
	}

	iccid := testICCID
	if !s.isTestUser(clientID) {
		iccid, err = s.billing.GetICCID(ctx, clientID)
		if err != nil {
			s.logger.Error("Failed to fetch ICCID",
				zap.String("client_id", clientID),
				zap.Error(err))
			return nil, userErr(texts.SomethingWrong)
		}
	}

	details, err := s.contractData(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if doctype, _ := details["doctype"].(string); doctype == "" || doctype == "Other document" {
		return nil, userErr(texts.NoDocumentData)
	}

	orderData := map[string]any{
		"number":       req.Number,
		"iccid":        iccid,
		"mnp_date":     req.MNPDate,
		"mnp_time":     req.MNPTime,
		"mnp_operator": mnpOperator,
		"mnp_region":   mnpRegion,
	}
	for k, v := range details {
		orderData[k] = v
	}

	if order == nil {
		// A fresh start replaces whatever porting draft the subscriber
		// abandoned earlier.
		if err := s.engine.Supersede(ctx, models.KindMNP, clientID); err != nil {
			return nil, err
		}
		order = &models.Order{Kind: models.KindMNP, ClientID: clientID}
		order.MergeOrderData(orderData)
		order.SetMNPAPIVersion(req.APIVersion)
		order, err = s.engine.Create(ctx, models.KindMNP, clientID, order.Data, order.SData)
		if err != nil {
			return nil, err
		}
	} else {
		order.MergeOrderData(orderData)
		if err := s.engine.Update(ctx, order, nil, nil); err != nil {
			return nil, err
		}
	}

	result := &InfoResult{OrderID: order.ID}
	if order.MNPAPIVersion() == models.MNPAPIVersionV2 {
		result.Details = details
	}
	return result, nil
}

func (s *MNPService) checkPortCooloff(ctx context.Context, number string) error {
	lastPort, err := s.store.LastPort(ctx, number)
	if err != nil {
		return err
	}
	if lastPort == nil {
		return nil
	}
	cooloff := time.Duration(s.cfg.PortCooloff) * 24 * time.Hour
	if time.Since(lastPort.PortDate) < cooloff {
		return userErr(texts.MNP60Days)
	}
	return nil
}

func (s *MNPService) contractData(ctx context.Context, clientID string) (map[string]any, error) {
	if s.isTestUser(clientID) {
		return map[string]any{
			"fio":         "Test Test",
			"sex":         "M",
			"birthdate":   "12.12.2000",
			"citizenship": "RF",
			"doctype":     "Passport",
			"serial":      "1234",
			"docid":       "123456",
			"ufmscode":    "123-456",
			"issuer":      "Test",
			"issued":      "21.12.2018",
			"address":     "Test",
		}, nil
	}

	profile, err := s.billing.GetSubscriberProfile(ctx, clientID)
	if err != nil {
		s.logger.Error("Failed to load contract data",
			zap.String("client_id", clientID),
			zap.Error(err))
		return nil, userErr(texts.SomethingWrong)
	}
	return map[string]any{
		"fio":         profile.FIO,
		"sex":         profile.Sex,
		"birthdate":   profile.Birthdate,
		"birthplace":  profile.Birthplace,
		"citizenship": profile.Citizenship,
		"doctype":     profile.DocType,
		"serial":      profile.Serial,
		"docid":       profile.DocID,
		"ufmscode":    profile.UFMSCode,
		"issuer":      profile.Issuer,
		"issued":      profile.Issued,
		"address":     profile.Address,
	}, nil
}

// Details merges user-entered contract data. v2 clients get the data
// from billing, so their submissions are ignored.
func (s *MNPService) Details(ctx context.Context, orderID int64, fields map[string]any) error {
	order, err := s.engine.Get(ctx, models.KindMNP, orderID, "")
	if err != nil {
		return err
	}
	if order.IsCompleted() {
		return workflow.ErrOrderCompleted
	}
	if order.MNPAPIVersion() == models.MNPAPIVersionV2 {
		return nil
	}
	order.MergeOrderData(fields)
	return s.engine.Update(ctx, order, nil, nil)
}

// Sign stores the signature image.
func (s *MNPService) Sign(ctx context.Context, orderID int64, signature string) error {
	order, err := s.engine.Get(ctx, models.KindMNP, orderID, "")
	if err != nil {
		return err
	}
	if order.IsCompleted() {
		return workflow.ErrOrderCompleted
	}
	return s.engine.Update(ctx, order, nil, map[string]any{"signature": signature})
}

// Confirmation sends the confirmation code. v2 validates the ported-in
// contact number and issues the code against it.
func (s *MNPService) Confirmation(ctx context.Context, orderID int64, contactPhone string) (*workflow.IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "MNPService.Confirmation")
	defer span.End()

	order, err := s.engine.Get(ctx, models.KindMNP, orderID, "")
	if err != nil {
		return nil, err
	}
	if order.IsCompleted() {
		return nil, workflow.ErrOrderCompleted
	}

	fields := map[string]any{"contact_phone": contactPhone}
	codePhone := contactPhone

	if order.MNPAPIVersion() == models.MNPAPIVersionV2 {
		if contactPhone == "" {
			return nil, userErr(texts.MNPNumberRequired)
		}

		_, operator, err := s.billing.ResolveNumber(ctx, contactPhone)
		if err != nil {
			s.logger.Error("Failed to resolve MNP contact number",
				zap.String("number", contactPhone),
				zap.Error(err))
			return nil, userErr(texts.SomethingWrong)
		}
		_, clientOperator, err := s.billing.ResolveNumber(ctx, order.ClientID)
		if err == nil && operator == clientOperator {
			return nil, userErr(texts.MNPEqualOperators)
		}

		fields["mnp_number"] = contactPhone
		fields["mnp_operator"] = operator
	}

	if err := s.engine.Update(ctx, order, fields, nil); err != nil {
		return nil, err
	}

	return s.confirmer.Issue(ctx, models.KindMNP, order.ID, order.ClientID, codePhone, texts.MNPSMSBody)
}

// Confirm validates the code for v2 clients and records the fact on
// the order; the final Request call checks the flag.
func (s *MNPService) Confirm(ctx context.Context, orderID int64, code string) error {
	order, err := s.engine.Get(ctx, models.KindMNP, orderID, "")
	if err != nil {
		return err
	}
	if _, err := s.confirmer.Verify(ctx, models.KindMNP, order.ID, 0, code); err != nil {
		return err
	}
	order.SetMNPConfirmed()
	return s.engine.Update(ctx, order, nil, nil)
}

// RequestArgs is the finalize call of the porting flow.
type RequestArgs struct {
	OrderID      int64
	Code         string
	ContactEmail string
	ContactPhone string
	DeviceID     string
}

// RequestResult carries the completion message and, for capable
// devices, a token to track the order status after the SIM goes dark.
type RequestResult struct {
	Message          string
	OrderStatusToken string
}

// Request finalizes the porting order. v1 clients verify the code
// inline; v2 clients must have passed Confirm first.
func (s *MNPService) Request(ctx context.Context, args *RequestArgs) (*RequestResult, error) {
	ctx, span := util.StartSpan(ctx, "MNPService.Request")
	defer span.End()

	order, err := s.engine.Get(ctx, models.KindMNP, args.OrderID, "")
	if err != nil {
		return nil, err
	}
	if order.IsCompleted() {
		return nil, workflow.ErrOrderCompleted
	}

	if order.MNPAPIVersion() == models.MNPAPIVersionV2 {
		if !order.MNPConfirmed() {
			return nil, workflow.ErrCodeMismatch
		}
	} else {
		if _, err := s.confirmer.Verify(ctx, models.KindMNP, order.ID, 0, args.Code); err != nil {
			return nil, err
		}
	}

	fields := map[string]any{}
	if args.ContactEmail != "" {
		fields["contact_email"] = args.ContactEmail
	}
	if args.ContactPhone != "" {
		fields["contact_phone"] = args.ContactPhone
	}

	// The tracking password must land in the same write as the
	// completion; the order is immutable afterwards.
	var secrets map[string]any
	password, credErr := workflow.GenerateCode(6)
	if credErr != nil {
		s.notifier.Alarm("Failed to generate MNP tracking password",
			zap.Int64("order_id", order.ID), zap.Error(credErr))
	} else {
		secrets = map[string]any{"mnp_auth_password": password}
	}

	if err := s.engine.Finalize(ctx, order, fields, secrets); err != nil {
		return nil, err
	}

	orderData := order.OrderData()
	mnpDate, _ := orderData["mnp_date"].(string)
	mnpTime, _ := orderData["mnp_time"].(string)

	result := &RequestResult{
		Message: fmt.Sprintf(texts.MNPCompletedIn, mnpDate, mnpTime),
	}
	if args.DeviceID != "" {
		result.OrderStatusToken = fmt.Sprintf("order:%d:mnp:%s", order.ID, uuid.New().String())
	}

	if password != "" {
		s.sendTrackingCredentials(ctx, order, password)
	}
	return result, nil
}

// sendTrackingCredentials issues a login/password pair by SMS so the
// subscriber can follow the port after their old SIM stops working.
// Best-effort: a failure alarms but never fails the port request.
func (s *MNPService) sendTrackingCredentials(ctx context.Context, order *models.Order, password string) {
	mnpNumber := order.Field("mnp_number")
	if mnpNumber == "" {
		orderData := order.OrderData()
		mnpNumber, _ = orderData["number"].(string)
	}
	if mnpNumber == "" {
		return
	}

	operator := order.Field("mnp_operator")
	text := fmt.Sprintf(texts.MNPCredentialsSMSBody,
		models.FormatNumber(mnpNumber), order.ClientID, password)
	ok, logText, err := s.sms.Send(ctx, mnpNumber, operator, text)
	if err != nil || !ok {
		s.notifier.Alarm("Failed to send MNP tracking credentials",
			zap.Int64("order_id", order.ID),
			zap.String("log", logText),
			zap.Error(err))
	}
}

// DataResult is the date/time picker payload for the porting UI.
type DataResult struct {
	MNPDates  map[string][]string
	MNPTimes  map[string][]string
	ICCPrefix string
	Details   map[string]any
}

var mnpTimeSlots = []string{
	"10:00-11:00", "11:00-12:00", "12:00-13:00", "13:00-14:00",
	"14:00-15:00", "15:00-16:00", "16:00-17:00", "17:00-18:00",
	"18:00-19:00", "19:00-20:00", "20:00-21:00", "21:00-22:00",
	"22:00-23:00", "23:00-00:00",
}

// Data returns the available porting dates and time slots together
// with pre-filled contract details. Ports are scheduled no earlier
// than 8 days out and at most ~6 months ahead.
func (s *MNPService) Data(ctx context.Context, clientID string, localTime time.Time) (*DataResult, error) {
	ctx, span := util.StartSpan(ctx, "MNPService.Data")
	defer span.End()

	if localTime.IsZero() {
		localTime = time.Now().UTC().Add(3 * time.Hour)
	}
	localTime = localTime.Add(time.Hour).Truncate(time.Hour)

	dates := make([]string, 0, 172)
	for shift := 8; shift < 180; shift++ {
		dates = append(dates, localTime.AddDate(0, 0, shift).Format("02.01.2006"))
	}

	hour := localTime.Format("15")
	defaultTimes := make([]string, 0, len(mnpTimeSlots))
	for _, slot := range mnpTimeSlots {
		if strings.Compare(slot[:2], hour) >= 0 {
			defaultTimes = append(defaultTimes, slot)
		}
	}

	times := map[string][]string{
		"default": defaultTimes,
		dates[0]:  defaultTimes,
	}
	for _, date := range dates[1:] {
		times[date] = mnpTimeSlots
	}

	details, err := s.contractData(ctx, clientID)
	if err != nil {
		return nil, err
	}

	return &DataResult{
		MNPDates:  map[string][]string{"default": dates},
		MNPTimes:  times,
		ICCPrefix: "",
		Details:   details,
	}, nil
}
