package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type PaymentHandler struct {
	log      *logger.Logger
	payments services.PaymentService
}

func NewPaymentHandler(log *logger.Logger, payments services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		log:      log.With("handler", "PaymentHandler"),
		payments: payments,
	}
}

type createPaymentRequest struct {
	CourseID *uuid.UUID      `json:"course_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"omitempty,len=3,alpha"`
	Method   string          `json:"method" binding:"required,max=32"`
}

type processPaymentRequest struct {
	Token string `json:"token" binding:"max=512"`
}

type refundPaymentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	var req createPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Create(c.Request.Context(), rd.UserID, services.CreatePaymentRequest{
		CourseID: req.CourseID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   req.Method,
	})
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"payment": p})
}

func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	paymentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req processPaymentRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Process(c.Request.Context(), rd.UserID, paymentID, services.ProcessPaymentRequest{Token: req.Token})
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"payment": p})
}

func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	paymentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req refundPaymentRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Refund(c.Request.Context(), rd.UserID, paymentID, req.Reason)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"payment": p})
}

func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	paymentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.Cancel(c.Request.Context(), rd.UserID, paymentID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"payment": p})
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	paymentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.Get(c.Request.Context(), rd.UserID, paymentID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"payment": p})
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	rows, err := h.payments.ListForUser(c.Request.Context(), rd.UserID, limit, offset)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"payments": rows})
}
