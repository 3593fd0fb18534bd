package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

type slotTaken struct{}

func (slotTaken) Error() string   { return "slot 09:00-09:30 is booked" }
func (slotTaken) StatusCode() int { return http.StatusConflict }
func (slotTaken) Details() map[string]interface{} {
	return map[string]interface{}{"reason": "booked"}
}

func respond(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		details bool
	}{
		{"app error", errors.NotFound("appointment", nil), http.StatusNotFound, "appointment not found", false},
		{"wrapped app error", fmt.Errorf("handler: %w", errors.BadRequest("bad date", nil)), http.StatusBadRequest, "bad date", false},
		{"typed error", slotTaken{}, http.StatusConflict, "slot 09:00-09:30 is booked", true},
		{"unknown error", fmt.Errorf("pq: connection refused"), http.StatusInternalServerError, "internal server error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := respond(t, func(c *gin.Context) { RespondWithError(c, tt.err) })
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, StatusError, body.Status)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.status, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
			if tt.details {
				assert.Equal(t, "booked", body.Error.Details["reason"])
			} else {
				assert.Empty(t, body.Error.Details)
			}
		})
	}
}

func TestRespondWithStatus(t *testing.T) {
	w, body := respond(t, func(c *gin.Context) { RespondWithStatus(c, http.StatusCreated, gin.H{"id": "a"}) })
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, StatusSuccess, body.Status)
	assert.Equal(t, map[string]interface{}{"id": "a"}, body.Data)
}
