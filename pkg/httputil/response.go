package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type detailer interface {
	Details() map[string]interface{}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithError maps err to its HTTP status. Messages of unclassified
// errors are not exposed.
func RespondWithError(c *gin.Context, err error) {
	status := errors.StatusCode(err)

	apiErr := &Error{Code: status, Message: "internal server error"}
	var appErr *errors.AppError
	switch {
	case stderrors.As(err, &appErr):
		apiErr.Message = appErr.Message
	case status != http.StatusInternalServerError:
		apiErr.Message = err.Error()
	}
	var d detailer
	if stderrors.As(err, &d) {
		apiErr.Details = d.Details()
	}

	c.AbortWithStatusJSON(status, Response{
		Status: StatusError,
		Error:  apiErr,
	})
}
