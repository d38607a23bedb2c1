package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type ProgressHandler struct {
	log      *logger.Logger
	progress services.ProgressService
}

func NewProgressHandler(log *logger.Logger, progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		log:      log.With("handler", "ProgressHandler"),
		progress: progress,
	}
}

type recordWatchRequest struct {
	WatchSeconds *int64 `json:"watch_seconds" binding:"required,gte=0"`
}

func (h *ProgressHandler) RecordWatch(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	lectureID, ok := uuidParam(c, "lectureId")
	if !ok {
		return
	}
	var req recordWatchRequest
	if !bindJSON(c, &req) {
		return
	}
	up, err := h.progress.RecordWatch(c.Request.Context(), rd.UserID, courseID, lectureID, *req.WatchSeconds)
	if err != nil {
		// on partial_update the lecture row is stored; a retry refreshes the summary
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": up.Lecture, "enrollment": up.Enrollment})
}

func (h *ProgressHandler) GetCourseProgress(c *gin.Context) {
	rd, ok := requestUser(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.progress.GetCourseProgress(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		response.RespondAggregateError(c, h.log, err)
		return
	}
	response.RespondOK(c, p)
}
