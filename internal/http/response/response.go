package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/platform/apierr"
)

type APIError struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondAPIError writes an edge error raised before any service ran.
func RespondAPIError(c *gin.Context, e *apierr.Error) {
	c.AbortWithStatusJSON(e.Status, ErrorEnvelope{
		Error: APIError{Code: e.Code, Reason: e.Reason, Message: e.Error()},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
