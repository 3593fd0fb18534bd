package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error,
// unless the handler already wrote a response.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		if last.IsType(gin.ErrorTypeBind) {
			respondBindError(c, last.Err)
			return
		}

		status := apperrors.StatusCode(last.Err)
		if status >= http.StatusInternalServerError {
			log.Error(last.Err, "Request error",
				"request_id", RequestIDFrom(c),
				"method", c.Request.Method,
				"path", c.Request.URL.Path)
		}
		httputil.RespondWithError(c, last.Err)
	}
}

func respondBindError(c *gin.Context, err error) {
	apiErr := &httputil.Error{Code: http.StatusBadRequest, Message: "invalid request"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]interface{}, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		apiErr.Message = "validation failed"
		apiErr.Details = map[string]interface{}{"fields": fields}
	} else {
		apiErr.Details = map[string]interface{}{"reason": err.Error()}
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, httputil.Response{
		Status: httputil.StatusError,
		Error:  apiErr,
	})
}
