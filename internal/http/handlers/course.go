package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type CourseHandler struct {
	log     *logger.Logger
	catalog services.CatalogService
}

func NewCourseHandler(log *logger.Logger, catalog services.CatalogService) *CourseHandler {
	return &CourseHandler{
		log:     log.With("handler", "CourseHandler"),
		catalog: catalog,
	}
}

type createCourseRequest struct {
	Title       string          `json:"title" binding:"required,max=200"`
	Description string          `json:"description" binding:"max=20000"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency" binding:"omitempty,len=3,alpha"`
	IsFree      bool            `json:"is_free"`
	AccessDays  int             `json:"access_days" binding:"gte=0"`
}

type updateCourseRequest struct {
	Title       *string          `json:"title" binding:"omitempty,max=200"`
	Description *string          `json:"description" binding:"omitempty,max=20000"`
	Price       *decimal.Decimal `json:"price"`
	Currency    *string          `json:"currency" binding:"omitempty,len=3,alpha"`
	IsFree      *bool            `json:"is_free"`
	AccessDays  *int             `json:"access_days" binding:"omitempty,gte=0"`
}

type addLectureRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	DurationSeconds int64  `json:"duration_seconds" binding:"gte=0"`
	IsPreview       bool   `json:"is_preview"`
}

func (h *CourseHandler) CreateCourse(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	var req createCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.catalog.CreateCourse(c.Request.Context(), actorFrom(rd), services.CreateCourseRequest{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		IsFree:      req.IsFree,
		AccessDays:  req.AccessDays,
	})
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"course": course})
}

func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.catalog.UpdateCourse(c.Request.Context(), actorFrom(rd), courseID, services.UpdateCourseRequest{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		IsFree:      req.IsFree,
		AccessDays:  req.AccessDays,
	})
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

func (h *CourseHandler) AddLecture(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req addLectureRequest
	if !bindJSON(c, &req) {
		return
	}
	lecture, err := h.catalog.AddLecture(c.Request.Context(), actorFrom(rd), courseID, services.AddLectureRequest{
		Title:           req.Title,
		DurationSeconds: req.DurationSeconds,
		IsPreview:       req.IsPreview,
	})
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"lecture": lecture})
}

func (h *CourseHandler) Publish(c *gin.Context) {
	h.setPublished(c, true)
}

func (h *CourseHandler) Unpublish(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *CourseHandler) setPublished(c *gin.Context, published bool) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	fn := h.catalog.Unpublish
	if published {
		fn = h.catalog.Publish
	}
	course, err := fn(c.Request.Context(), actorFrom(rd), courseID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	course, err := h.catalog.GetCourse(c.Request.Context(), actorFrom(rd), courseID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

func (h *CourseHandler) ListCourses(c *gin.Context) {
	if _, ok := requestUser(c); !ok {
		return
	}
	limit, offset := pageParams(c)
	courses, err := h.catalog.ListPublished(c.Request.Context(), limit, offset)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": courses})
}

func (h *CourseHandler) ListMyCourses(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courses, err := h.catalog.ListMine(c.Request.Context(), actorFrom(rd))
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": courses})
}
