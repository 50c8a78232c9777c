package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chartmotion-backend/internal/platform/apierr"
)

// ErrorCodeKey holds the code of the last error response, for the request logger.
const ErrorCodeKey = "error_code"

var errInternal = errors.New("internal error")

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if code != "" {
		c.Set(ErrorCodeKey, code)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// RespondServiceError unwraps an apierr.Error into its status and code. Anything
// else is a 500 with fallbackCode; the cause is logged, never returned.
func RespondServiceError(c *gin.Context, err error, fallbackCode string) {
	ae := apierr.As(err, fallbackCode)
	if ae.Status < http.StatusInternalServerError {
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	_ = c.Error(err)
	RespondError(c, ae.Status, ae.Code, errInternal)
}

func RespondOK(c *gin.Context, payload any) { c.JSON(http.StatusOK, payload) }

func RespondCreated(c *gin.Context, payload any) { c.JSON(http.StatusCreated, payload) }
