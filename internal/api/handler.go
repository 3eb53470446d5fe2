package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/courier"
	"selfcare-backend/internal/models"
	"selfcare-backend/internal/redisclient"
	"selfcare-backend/internal/service"
	"selfcare-backend/internal/store"
	"selfcare-backend/internal/texts"
	"selfcare-backend/internal/util"
	"selfcare-backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	contract     *service.ContractService
	mnp          *service.MNPService
	fixpay       *service.FixPayService
	changeNumber *service.ChangeNumberService
	feedback     *service.FeedbackService
	cashback     *service.CashbackService
	courier      *courier.Client
	store        *store.Store
	redis        *redisclient.Client
	notifier     alert.Notifier
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	contract *service.ContractService,
	mnp *service.MNPService,
	fixpay *service.FixPayService,
	changeNumber *service.ChangeNumberService,
	feedback *service.FeedbackService,
	cashback *service.CashbackService,
	courierClient *courier.Client,
	st *store.Store,
	redis *redisclient.Client,
	notifier alert.Notifier,
) *Handler {
	return &Handler{
		contract:     contract,
		mnp:          mnp,
		fixpay:       fixpay,
		changeNumber: changeNumber,
		feedback:     feedback,
		cashback:     cashback,
		courier:      courierClient,
		store:        st,
		redis:        redis,
		notifier:     notifier,
		logger:       util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/ping", h.ping)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		contract := v1.Group("/contract/:kind")
		{
			contract.POST("/details", h.contractDetails)
			contract.POST("/files", h.contractFiles)
			contract.POST("/sign", h.contractSign)
			contract.POST("/confirm", h.contractConfirm)
			contract.POST("/request", h.contractRequest)
		}
		v1.POST("/contract_cancel/full", h.contractCancelFull)
		v1.POST("/contract_cancel/request", h.contractCancelRequest)

		mnp := v1.Group("/mnp")
		{
			mnp.GET("/data", h.mnpData)
			mnp.POST("/info", h.mnpInfo(1))
			mnp.POST("/details", h.mnpDetails)
			mnp.POST("/sign", h.mnpSign)
			mnp.POST("/confirmation", h.mnpConfirmation)
			mnp.POST("/request", h.mnpRequest)
		}

		fixpay := v1.Group("/fixpay")
		{
			fixpay.GET("/info", h.fixpayInfo)
			fixpay.POST("/move", h.fixpayMove)
			fixpay.POST("/movepay", h.fixpayMovePay)
			fixpay.POST("/refund", h.fixpayRefund)
			fixpay.POST("/move/details", h.fixpayMoveDetails)
			fixpay.POST("/refund/details", h.fixpayRefundDetails)
			fixpay.POST("/sign", h.fixpaySign)
			fixpay.POST("/confirm", h.fixpayConfirm)
			fixpay.POST("/request", h.fixpayRequest)
		}

		v1.GET("/orders", h.ordersHistory)
		v1.GET("/numbers", h.availableNumbers)
		v1.POST("/change_number", h.changeNumberRequest)
		v1.POST("/feedback", h.feedbackSubmit)
		v1.GET("/courier/:uid", h.courierStatus)

		cashback := v1.Group("/cashback")
		{
			cashback.GET("", h.cashbackList)
			cashback.POST("/track", h.cashbackTrack)
			cashback.POST("/:id/status", h.cashbackUpdateStatus)
			cashback.GET("/offers", h.cashbackOffers)
			cashback.GET("/offers/success", h.cashbackSuccessOffers)
			cashback.GET("/offers/history", h.cashbackOfferHistory)
			cashback.GET("/offers/:offer_id", h.cashbackOfferDetails)
		}
	}

	v2 := router.Group("/api/v2/mnp")
	{
		v2.POST("/info", h.mnpInfo(models.MNPAPIVersionV2))
		v2.POST("/confirmation", h.mnpConfirmation)
		v2.POST("/confirm", h.mnpConfirm)
		v2.POST("/request", h.mnpRequest)
	}
}

// clientID returns the subscriber number the gateway authenticated.
// Session handling lives in front of this service.
func clientID(c *gin.Context) string {
	return c.GetHeader("X-Client-Id")
}

func ok(c *gin.Context, extra gin.H) {
	body := gin.H{"result": 1}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"result": 0, "error": message})
}

// renderErr maps domain errors onto the always-200 result envelope.
// Transport-level breakage is the only thing that gets a non-200.
func (h *Handler) renderErr(c *gin.Context, err error) {
	var userError *service.UserError
	switch {
	case errors.As(err, &userError):
		fail(c, userError.Message)
	case errors.Is(err, workflow.ErrOrderNotFound):
		fail(c, texts.OrderNotFound)
	case errors.Is(err, workflow.ErrOrderCompleted):
		fail(c, texts.OrderCompleted)
	case errors.Is(err, workflow.ErrCodeMismatch):
		fail(c, texts.WrongCode)
	default:
		h.logger.Error("Unhandled request error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		fail(c, texts.SomethingWrong)
	}
}

func (h *Handler) renderIssue(c *gin.Context, issue *workflow.IssueResult) {
	if !issue.Delivered {
		fail(c, issue.Message)
		return
	}
	ok(c, gin.H{
		"message":         issue.Message,
		"confirmation_id": issue.Confirmation.ID,
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// ping verifies the database and Redis are reachable and alarms when
// they are not, so a broken backend is noticed before subscribers do.
func (h *Handler) ping(c *gin.Context) {
	if err := h.store.Ping(); err != nil {
		h.notifier.Alarm("Database ping failed", zap.Error(err))
		fail(c, texts.SomethingWrong)
		return
	}
	if err := h.redis.Ping(c.Request.Context()); err != nil {
		h.notifier.Alarm("Redis ping failed", zap.Error(err))
		fail(c, texts.SomethingWrong)
		return
	}
	ok(c, nil)
}

func contractKind(c *gin.Context) (string, bool) {
	switch c.Param("kind") {
	case "edit":
		return models.KindContractEdit, true
	case "cancel":
		return models.KindContractCancel, true
	}
	return "", false
}

type contractDetailsRequest struct {
	OrderID int64          `json:"order_id"`
	Fields  map[string]any `json:"fields"`
}

// contractDetails creates or updates a contract order payload.
func (h *Handler) contractDetails(c *gin.Context) {
	kind, found := contractKind(c)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown contract operation"})
		return
	}
	var req contractDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	order, err := h.contract.Details(c.Request.Context(), kind, clientID(c), req.OrderID, req.Fields)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"order_id": order.ID})
}

type contractFilesRequest struct {
	OrderID int64             `json:"order_id"`
	Photos  map[string]string `json:"photos"`
}

func (h *Handler) contractFiles(c *gin.Context) {
	kind, found := contractKind(c)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown contract operation"})
		return
	}
	var req contractFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	if err := h.contract.Files(c.Request.Context(), kind, req.OrderID, clientID(c), req.Photos); err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, nil)
}

type signRequest struct {
	OrderID   int64  `json:"order_id"`
	Signature string `json:"signature"`
}

func (h *Handler) contractSign(c *gin.Context) {
	kind, found := contractKind(c)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown contract operation"})
		return
	}
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	if err := h.contract.Sign(c.Request.Context(), kind, req.OrderID, clientID(c), req.Signature); err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, nil)
}

type confirmRequest struct {
	OrderID      int64  `json:"order_id"`
	ContactPhone string `json:"contact_phone"`
}

func (h *Handler) contractConfirm(c *gin.Context) {
	kind, found := contractKind(c)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown contract operation"})
		return
	}
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	issue, err := h.contract.Confirm(c.Request.Context(), kind, req.OrderID, clientID(c), req.ContactPhone)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	h.renderIssue(c, issue)
}

type finalizeRequest struct {
	OrderID      int64  `json:"order_id"`
	Code         string `json:"code"`
	ContactEmail string `json:"contact_email"`
}

func (h *Handler) contractRequest(c *gin.Context) {
	kind, found := contractKind(c)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown contract operation"})
		return
	}
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	message, err := h.contract.Finalize(c.Request.Context(), kind, req.OrderID, clientID(c), req.Code, req.ContactEmail)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"message": message})
}

// contractCancelFull serves the out-of-app cancellation deep link.
func (h *Handler) contractCancelFull(c *gin.Context) {
	var req service.CancelFullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	result, err := h.contract.CancelFull(c.Request.Context(), &req)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	if !result.Issue.Delivered {
		fail(c, result.Issue.Message)
		return
	}
	ok(c, gin.H{
		"message":         result.Issue.Message,
		"order_id":        result.Order.ID,
		"confirmation_id": result.Issue.Confirmation.ID,
	})
}

type cancelConfirmRequest struct {
	ConfirmationID int64  `json:"confirmation_id"`
	Code           string `json:"code"`
	ContactEmail   string `json:"contact_email"`
}

func (h *Handler) contractCancelRequest(c *gin.Context) {
	var req cancelConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	message, err := h.contract.CancelByConfirmation(c.Request.Context(), req.ConfirmationID, req.Code, req.ContactEmail)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"message": message})
}

// mnpData returns the porting date/time picker payload.
func (h *Handler) mnpData(c *gin.Context) {
	localTime, _ := time.Parse(time.RFC3339, c.Query("local_time"))

	data, err := h.mnp.Data(c.Request.Context(), clientID(c), localTime)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{
		"mnp_dates":  data.MNPDates,
		"mnp_times":  data.MNPTimes,
		"icc_prefix": data.ICCPrefix,
		"details":    data.Details,
	})
}

type mnpInfoRequest struct {
	Number  string `json:"number"`
	MNPDate string `json:"mnp_date"`
	MNPTime string `json:"mnp_time"`
	OrderID int64  `json:"order_id"`
}

func (h *Handler) mnpInfo(apiVersion int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mnpInfoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, texts.SomethingWrong)
			return
		}

		result, err := h.mnp.Info(c.Request.Context(), &service.InfoRequest{
			ClientID:   clientID(c),
			Number:     req.Number,
			MNPDate:    req.MNPDate,
			MNPTime:    req.MNPTime,
			OrderID:    req.OrderID,
			APIVersion: apiVersion,
		})
		if err != nil {
			h.renderErr(c, err)
			return
		}
		extra := gin.H{"order_id": result.OrderID}
		if result.Details != nil {
			extra["details"] = result.Details
		}
		ok(c, extra)
	}
}

type mnpDetailsRequest struct {
	OrderID int64          `json:"order_id"`
	Fields  map[string]any `json:"fields"`
}

func (h *Handler) mnpDetails(c *gin.Context) {
	var req mnpDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	if err := h.mnp.Details(c.Request.Context(), req.OrderID, req.Fields); err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) mnpSign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	if err := h.mnp.Sign(c.Request.Context(), req.OrderID, req.Signature); err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) mnpConfirmation(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	issue, err := h.mnp.Confirmation(c.Request.Context(), req.OrderID, req.ContactPhone)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	h.renderIssue(c, issue)
}

type mnpConfirmCodeRequest struct {
	OrderID int64  `json:"order_id"`
	Code    string `json:"code"`
}

func (h *Handler) mnpConfirm(c *gin.Context) {
	var req mnpConfirmCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	if err := h.mnp.Confirm(c.Request.Context(), req.OrderID, req.Code); err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"message": texts.Confirmed})
}

type mnpFinalizeRequest struct {
	OrderID      int64  `json:"order_id"`
	Code         string `json:"code"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	DeviceID     string `json:"device_id"`
}

func (h *Handler) mnpRequest(c *gin.Context) {
	var req mnpFinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	result, err := h.mnp.Request(c.Request.Context(), &service.RequestArgs{
		OrderID:      req.OrderID,
		Code:         req.Code,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		DeviceID:     req.DeviceID,
	})
	if err != nil {
		h.renderErr(c, err)
		return
	}
	extra := gin.H{"message": result.Message}
	if result.OrderStatusToken != "" {
		extra["order_status_token"] = result.OrderStatusToken
	}
	ok(c, extra)
}

func (h *Handler) fixpayInfo(c *gin.Context) {
	info, err := h.fixpay.Info(c.Request.Context(), c.Query("number"))
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"info": info})
}

type fixpayCreateRequest struct {
	Number       string         `json:"number"`
	ContactEmail string         `json:"contact_email"`
	Fields       map[string]any `json:"fields"`
}

func (h *Handler) fixpayMove(c *gin.Context) {
	var req fixpayCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	order, err := h.fixpay.Move(c.Request.Context(), clientID(c), req.Number, req.Fields)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"order_id": order.ID})
}

func (h *Handler) fixpayMovePay(c *gin.Context) {
	var req fixpayCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	result, err := h.fixpay.MovePay(c.Request.Context(), clientID(c), req.Number)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	extra := gin.H{"order_id": result.Order.ID}
	if result.Info != nil {
		extra["info"] = result.Info
	}
	ok(c, extra)
}

func (h *Handler) fixpayRefund(c *gin.Context) {
	var req fixpayCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	order, err := h.fixpay.Refund(c.Request.Context(), clientID(c), req.ContactEmail, req.Fields)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"order_id": order.ID})
}

type fixpayMoveDetailsRequest struct {
	OrderID      int64          `json:"order_id"`
	ContactEmail string         `json:"contact_email"`
	Fields       map[string]any `json:"fields"`
}

func (h *Handler) fixpayMoveDetails(c *gin.Context) {
	var req fixpayMoveDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	err := h.fixpay.MoveDetails(c.Request.Context(), req.OrderID, clientID(c), req.Fields, req.ContactEmail)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, nil)
}

type fixpayRefundDetailsRequest struct {
	OrderID  int64          `json:"order_id"`
	CardData map[string]any `json:"card_data"`
}

func (h *Handler) fixpayRefundDetails(c *gin.Context) {
	var req fixpayRefundDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	if err := h.fixpay.RefundDetails(c.Request.Context(), req.OrderID, clientID(c), req.CardData); err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, nil)
}

type fixpayKindRequest struct {
	Kind         string `json:"kind"`
	OrderID      int64  `json:"order_id"`
	Signature    string `json:"signature"`
	ContactPhone string `json:"contact_phone"`
	Code         string `json:"code"`
}

func fixpayKind(name string) (string, bool) {
	switch name {
	case "move":
		return models.KindFixPayMove, true
	case "refund":
		return models.KindFixPayRefund, true
	}
	return "", false
}

func (h *Handler) fixpaySign(c *gin.Context) {
	var req fixpayKindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}
	kind, found := fixpayKind(req.Kind)
	if !found {
		fail(c, texts.OrderNotFound)
		return
	}

	if err := h.fixpay.Sign(c.Request.Context(), kind, req.OrderID, clientID(c), req.Signature); err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) fixpayConfirm(c *gin.Context) {
	var req fixpayKindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}
	kind, found := fixpayKind(req.Kind)
	if !found {
		fail(c, texts.OrderNotFound)
		return
	}

	issue, err := h.fixpay.Confirm(c.Request.Context(), kind, req.OrderID, clientID(c), req.ContactPhone)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	h.renderIssue(c, issue)
}

func (h *Handler) fixpayRequest(c *gin.Context) {
	var req fixpayKindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}
	kind, found := fixpayKind(req.Kind)
	if !found {
		fail(c, texts.OrderNotFound)
		return
	}

	message, err := h.fixpay.Finalize(c.Request.Context(), kind, req.OrderID, clientID(c), req.Code)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"message": message})
}

// ordersHistory lists the subscriber's requests of one kind, newest
// first, without the protected payload.
func (h *Handler) ordersHistory(c *gin.Context) {
	orders, err := h.store.GetOrdersByClientID(c.Request.Context(), c.Query("kind"), clientID(c))
	if err != nil {
		h.renderErr(c, err)
		return
	}

	items := make([]gin.H, 0, len(orders))
	for _, order := range orders {
		item := gin.H{
			"id":      order.ID,
			"uid":     order.UID,
			"kind":    order.Kind,
			"created": order.Created,
		}
		if order.Completed != nil {
			item["completed"] = order.Completed
		}
		items = append(items, item)
	}
	ok(c, gin.H{"orders": items})
}

// availableNumbers lists free MSISDNs for the change-number flow.
func (h *Handler) availableNumbers(c *gin.Context) {
	count, _ := strconv.Atoi(c.Query("count"))

	numbers, err := h.changeNumber.AvailableNumbers(c.Request.Context(),
		c.Query("region"), c.Query("search"), count)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"numbers": numbers})
}

type changeNumberRequest struct {
	Region    string `json:"region"`
	NewNumber string `json:"new_number"`
}

func (h *Handler) changeNumberRequest(c *gin.Context) {
	var req changeNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	message, err := h.changeNumber.ChangeNumber(c.Request.Context(), clientID(c), req.Region, req.NewNumber)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"message": message})
}

type feedbackRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Question   string `json:"question"`
	OS         string `json:"os"`
	AppVersion string `json:"app_version"`
}

func (h *Handler) feedbackSubmit(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	message, err := h.feedback.Submit(c.Request.Context(), &service.SubmitRequest{
		ClientID:   clientID(c),
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Question:   req.Question,
		OS:         req.OS,
		AppVersion: req.AppVersion,
	})
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"message": message})
}

// courierStatus reports SIM delivery progress for an order uid.
func (h *Handler) courierStatus(c *gin.Context) {
	uid, err := strconv.ParseInt(c.Param("uid"), 10, 64)
	if err != nil {
		fail(c, texts.OrderNotFound)
		return
	}

	status, err := h.courier.OrderStatus(c.Request.Context(), uid)
	if err != nil {
		h.logger.Error("Courier status lookup failed",
			zap.Int64("order_uid", uid),
			zap.Error(err))
		fail(c, texts.CourierStatusUnavail)
		return
	}
	ok(c, gin.H{"status": status})
}

func (h *Handler) cashbackList(c *gin.Context) {
	offers, err := h.cashback.List(c.Request.Context(), clientID(c))
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"offers": offers})
}

type cashbackTrackRequest struct {
	OfferID int64          `json:"offer_id"`
	Data    map[string]any `json:"data"`
}

func (h *Handler) cashbackTrack(c *gin.Context) {
	var req cashbackTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	record, err := h.cashback.Track(c.Request.Context(), clientID(c), req.OfferID, req.Data)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"id": record.ID})
}

type cashbackStatusRequest struct {
	StatusID int `json:"status_id"`
}

// cashbackUpdateStatus is the back-office callback that moves a tracked
// offer between open, approved and rejected.
func (h *Handler) cashbackUpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, texts.OrderNotFound)
		return
	}
	var req cashbackStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, texts.SomethingWrong)
		return
	}

	if err := h.cashback.UpdateStatus(c.Request.Context(), id, req.StatusID); err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) cashbackOffers(c *gin.Context) {
	offers, err := h.cashback.AvailableOffers(c.Request.Context(),
		c.Query("device_uid"), clientID(c))
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"offers": offers})
}

func (h *Handler) cashbackSuccessOffers(c *gin.Context) {
	offers, err := h.cashback.SuccessOffers(c.Request.Context(),
		c.Query("device_uid"), clientID(c))
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"offers": offers})
}

func (h *Handler) cashbackOfferHistory(c *gin.Context) {
	var start, stop *time.Time
	if t, err := time.Parse(time.RFC3339, c.Query("start")); err == nil {
		start = &t
	}
	if t, err := time.Parse(time.RFC3339, c.Query("stop")); err == nil {
		stop = &t
	}

	offers, err := h.cashback.OfferHistory(c.Request.Context(), clientID(c), start, stop)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	ok(c, gin.H{"offers": offers})
}

func (h *Handler) cashbackOfferDetails(c *gin.Context) {
	offerID, err := strconv.ParseInt(c.Param("offer_id"), 10, 64)
	if err != nil {
		fail(c, texts.OrderNotFound)
		return
	}

	offer, err := h.cashback.OfferDetails(c.Request.Context(),
		c.Query("device_uid"), clientID(c), offerID)
	if err != nil {
		h.renderErr(c, err)
		return
	}
	if offer == nil {
		fail(c, texts.OrderNotFound)
		return
	}
	ok(c, gin.H{"offer": offer})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
