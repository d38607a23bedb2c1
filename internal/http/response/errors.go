package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// publicMessages replaces messages that could carry internal detail.
var publicMessages = map[domainagg.ErrorCode]string{
	domainagg.CodeRetryable:          "temporarily unavailable, retry the request",
	domainagg.CodeInternal:           "internal error",
	domainagg.CodeInvariantViolation: "internal error",
}

// StatusFor maps an aggregate error onto its HTTP status.
func StatusFor(err error) int {
	switch domainagg.CodeOf(err) {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeForbidden:
		return http.StatusForbidden
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodePreconditionFailed:
		switch domainagg.ReasonOf(err) {
		case domainagg.ReasonUnderpaidAmount, domainagg.ReasonInsufficientPayment:
			return http.StatusUnprocessableEntity
		}
		return http.StatusPreconditionFailed
	case domainagg.CodeExternalServiceFailure:
		return http.StatusBadGateway
	case domainagg.CodeTimeout:
		return http.StatusGatewayTimeout
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondAggregateError writes the error envelope for a service failure. Server-side
// failures are logged with their cause and answered with a fixed message.
func RespondAggregateError(c *gin.Context, log *logger.Logger, err error) {
	status := StatusFor(err)
	code := domainagg.CodeOf(err)
	if code == "" {
		code = domainagg.CodeInternal
	}

	msg := publicMessages[code]
	if msg == "" {
		var aggErr *domainagg.Error
		// unreasoned errors come from storage and may carry driver text
		if errors.As(err, &aggErr) && aggErr.Reason != "" && aggErr.Message != "" {
			msg = aggErr.Message
		} else {
			msg = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			"path", c.FullPath(),
			"code", string(code),
			"reason", string(domainagg.ReasonOf(err)),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Code:    string(code),
			Reason:  string(domainagg.ReasonOf(err)),
			Message: msg,
		},
	})
}
