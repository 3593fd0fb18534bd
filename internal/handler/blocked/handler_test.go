package blocked

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/notification"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/internal/scheduling"
)

func setup(t *testing.T) (*gin.Engine, *memory.Store, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidators()

	store := memory.NewStore()
	providerID := uuid.New()
	store.PutProfile(model.ProviderAvailabilityProfile{
		ProviderID: providerID, WorkDayFrom: time.Monday, WorkDayTo: time.Friday,
		WorkTimeFrom: model.NewTimeOfDay(9, 0), WorkTimeTo: model.NewTimeOfDay(12, 0), SlotMinutes: 30,
	})
	svc := scheduling.NewService(scheduling.Options{
		Appointments:     store.Appointments(),
		BlockedIntervals: store.BlockedIntervals(),
		Providers:        store.Providers(),
		Contacts:         store.Contacts(),
		Dispatcher:       &notification.Recorder{},
		Clock:            scheduling.FixedClock(time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC)),
	})

	r := gin.New()
	r.Use(middleware.ErrorHandler(nil))
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, store, providerID
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBlockedIntervalLifecycle(t *testing.T) {
	r, _, providerID := setup(t)
	base := "/api/v1/providers/" + providerID.String() + "/blocked-intervals"

	w := do(t, r, http.MethodPost, base, gin.H{
		"date": "2024-03-04", "time_from": "10:00", "time_to": "11:00", "reason": "staff meeting",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data model.BlockedInterval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEqual(t, uuid.Nil, created.Data.ID)
	assert.Equal(t, "staff meeting", created.Data.Reason)

	w = do(t, r, http.MethodGet, base+"?date=2024-03-04", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Data []model.BlockedInterval `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)

	w = do(t, r, http.MethodDelete, "/api/v1/blocked-intervals/"+created.Data.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/blocked-intervals/"+created.Data.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, base+"?date=2024-03-04", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed.Data)
}

func TestCreateBlockedInterval_OverBookedSlot(t *testing.T) {
	r, store, providerID := setup(t)
	apt := &model.Appointment{
		Patient: model.RegularPatient(uuid.New()), ProviderID: providerID,
		Date: model.NewDate(2024, time.March, 4), TimeFrom: model.NewTimeOfDay(10, 0), TimeTo: model.NewTimeOfDay(10, 30),
		Status: model.AppointmentStatusConfirmed,
	}
	require.NoError(t, store.Appointments().Create(context.Background(), apt))

	w := do(t, r, http.MethodPost, "/api/v1/providers/"+providerID.String()+"/blocked-intervals",
		gin.H{"date": "2024-03-04", "time_from": "09:30", "time_to": "10:30"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateBlockedInterval_Validation(t *testing.T) {
	r, _, providerID := setup(t)
	path := "/api/v1/providers/" + providerID.String() + "/blocked-intervals"

	for name, body := range map[string]gin.H{
		"missing date":    {"time_from": "10:00", "time_to": "11:00"},
		"bad time":        {"date": "2024-03-04", "time_from": "25:00", "time_to": "11:00"},
		"reversed window": {"date": "2024-03-04", "time_from": "11:00", "time_to": "10:00"},
	} {
		t.Run(name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := do(t, r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "date query is required")
}
