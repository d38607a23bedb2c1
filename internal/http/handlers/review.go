package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type ReviewHandler struct {
	log     *logger.Logger
	reviews services.ReviewService
}

func NewReviewHandler(log *logger.Logger, reviews services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		log:     log.With("handler", "ReviewHandler"),
		reviews: reviews,
	}
}

type createReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=5000"`
}

type updateReviewRequest struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" binding:"omitempty,max=5000"`
}

func (h *ReviewHandler) CreateReview(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req createReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.reviews.Create(c.Request.Context(), rd.UserID, courseID, req.Rating, req.Comment)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"review": r})
}

func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	reviewID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.reviews.Update(c.Request.Context(), rd.UserID, reviewID, req.Rating, req.Comment)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"review": r})
}

func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	reviewID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), rd.UserID, reviewID); err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReviewHandler) ListReviews(c *gin.Context) {
	if _, ok := requestUser(c); !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	rows, err := h.reviews.ListForCourse(c.Request.Context(), courseID, limit, offset)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"reviews": rows})
}
