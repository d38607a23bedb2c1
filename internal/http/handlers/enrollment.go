package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type EnrollmentHandler struct {
	log         *logger.Logger
	enrollments services.EnrollmentService
}

func NewEnrollmentHandler(log *logger.Logger, enrollments services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		log:         log.With("handler", "EnrollmentHandler"),
		enrollments: enrollments,
	}
}

type enrollRequest struct {
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req enrollRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	e, err := h.enrollments.Enroll(c.Request.Context(), rd.UserID, courseID, req.AmountPaid)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"enrollment": e})
}

type grantRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	CourseID uuid.UUID `json:"course_id" binding:"required"`
}

// GrantEnrollment enrolls another user for free. Routed behind the admin role.
func (h *EnrollmentHandler) GrantEnrollment(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	var req grantRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.enrollments.Grant(c.Request.Context(), rd.UserID, req.UserID, req.CourseID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"enrollment": e})
}

func (h *EnrollmentHandler) EnrollWithPayment(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	paymentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	e, err := h.enrollments.EnrollWithPayment(c.Request.Context(), rd.UserID, paymentID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"enrollment": e})
}

func (h *EnrollmentHandler) Complete(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	e, err := h.enrollments.Complete(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": e})
}

func (h *EnrollmentHandler) Drop(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	e, err := h.enrollments.Drop(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": e})
}

func (h *EnrollmentHandler) GetEnrollment(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	e, err := h.enrollments.Get(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": e})
}

func (h *EnrollmentHandler) ListEnrollments(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	rows, err := h.enrollments.ListForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollments": rows})
}
