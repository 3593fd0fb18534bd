package appointment

import (
	"bytes"
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

type testAPI struct {
	engine     *gin.Engine
	store      *memory.Store
	recorder   *notification.Recorder
	providerID uuid.UUID
	patientID  uuid.UUID
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidators()

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	api := &testAPI{
		store:      memory.NewStore(),
		recorder:   &notification.Recorder{},
		providerID: uuid.New(),
		patientID:  uuid.New(),
	}
	api.store.PutProfile(model.ProviderAvailabilityProfile{
		ProviderID:   api.providerID,
		WorkDayFrom:  time.Monday,
		WorkDayTo:    time.Friday,
		WorkTimeFrom: model.NewTimeOfDay(9, 0),
		WorkTimeTo:   model.NewTimeOfDay(12, 0),
		SlotMinutes:  30,
	})
	api.store.PutPatient(api.patientID, model.Contact{Name: "Asha", Email: "asha@example.com"})

	svc := scheduling.NewService(scheduling.Options{
		Appointments:     api.store.Appointments(),
		BlockedIntervals: api.store.BlockedIntervals(),
		Providers:        api.store.Providers(),
		Contacts:         api.store.Contacts(),
		Dispatcher:       api.recorder,
		Clock:            scheduling.FixedClock(time.Date(2024, time.March, 3, 20, 0, 0, 0, loc)),
		Location:         loc,
	})

	api.engine = gin.New()
	api.engine.Use(middleware.ErrorHandler(nil))
	NewHandler(svc).RegisterRoutes(api.engine.Group("/api/v1"))
	return api
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func (api *testAPI) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (api *testAPI) bookBody(from, to string) gin.H {
	return gin.H{
		"provider_id": api.providerID.String(),
		"patient_id":  api.patientID.String(),
		"date":        "2024-03-04",
		"time_from":   from,
		"time_to":     to,
		"fee":         500,
	}
}

func (api *testAPI) book(t *testing.T, from, to string) model.Appointment {
	t.Helper()
	code, env := api.do(t, http.MethodPost, "/api/v1/appointments", api.bookBody(from, to))
	require.Equal(t, http.StatusCreated, code)
	var apt model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	return apt
}

func (api *testAPI) slotsPath(date string) string {
	return "/api/v1/providers/" + api.providerID.String() + "/slots?date=" + date
}

func TestListSlots(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodGet, api.slotsPath("2024-03-04"), nil)
	require.Equal(t, http.StatusOK, code)
	var listing scheduling.SlotListing
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Len(t, listing.Slots, 6)
	assert.False(t, listing.NonWorkingDay)
	assert.Empty(t, listing.Details)

	api.book(t, "09:00", "09:30")
	_, env = api.do(t, http.MethodGet, api.slotsPath("2024-03-04")+"&detail=true", nil)
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Len(t, listing.Slots, 5)
	require.Len(t, listing.Details, 6)
	assert.Equal(t, scheduling.ReasonBooked, listing.Details[0].Reason)

	_, env = api.do(t, http.MethodGet, api.slotsPath("2024-03-09"), nil)
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.True(t, listing.NonWorkingDay)
	assert.Empty(t, listing.Slots)
}

func TestListSlots_BadInput(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodGet, api.slotsPath("04/03/2024"), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details["fields"], "date")

	code, _ = api.do(t, http.MethodGet, "/api/v1/providers/nope/slots?date=2024-03-04", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodGet, "/api/v1/providers/"+uuid.NewString()+"/slots?date=2024-03-04", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateAppointment(t *testing.T) {
	api := newTestAPI(t)

	apt := api.book(t, "09:00", "09:30")
	assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)
	assert.Equal(t, model.NewTimeOfDay(9, 0), apt.TimeFrom)
	assert.Equal(t, api.patientID, apt.Patient.ID())
	assert.Len(t, api.recorder.OfKind(model.IntentConfirmation), 1)

	code, env := api.do(t, http.MethodPost, "/api/v1/appointments", api.bookBody("09:00", "09:30"))
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, scheduling.ReasonBooked, env.Error.Details["reason"])
}

func TestCreateAppointment_Validation(t *testing.T) {
	api := newTestAPI(t)

	both := api.bookBody("09:00", "09:30")
	both["temp_patient_id"] = uuid.NewString()
	neither := api.bookBody("09:00", "09:30")
	delete(neither, "patient_id")
	badTime := api.bookBody("9am", "09:30")
	reversed := api.bookBody("09:30", "09:00")
	badStatus := api.bookBody("09:00", "09:30")
	badStatus["status"] = "completed"
	offGrid := api.bookBody("09:10", "09:40")

	tests := []struct {
		name   string
		body   gin.H
		status int
		field  string
	}{
		{"both patient kinds", both, http.StatusBadRequest, ""},
		{"no patient", neither, http.StatusBadRequest, ""},
		{"bad time", badTime, http.StatusBadRequest, "time_from"},
		{"reversed window", reversed, http.StatusBadRequest, ""},
		{"status outside booking set", badStatus, http.StatusBadRequest, "status"},
		{"slot not offered", offGrid, http.StatusConflict, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := api.do(t, http.MethodPost, "/api/v1/appointments", tt.body)
			assert.Equal(t, tt.status, code)
			require.NotNil(t, env.Error)
			if tt.field != "" {
				assert.Contains(t, env.Error.Details["fields"], tt.field)
			}
		})
	}
}

func TestGetAppointment(t *testing.T) {
	api := newTestAPI(t)
	apt := api.book(t, "10:00", "10:30")

	code, env := api.do(t, http.MethodGet, "/api/v1/appointments/"+apt.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var got model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, apt.ID, got.ID)

	code, _ = api.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(t, http.MethodGet, "/api/v1/appointments/42", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRescheduleAppointment(t *testing.T) {
	api := newTestAPI(t)
	apt := api.book(t, "09:00", "09:30")
	api.book(t, "11:00", "11:30")
	path := "/api/v1/appointments/" + apt.ID.String() + "/reschedule"

	code, env := api.do(t, http.MethodPut, path, gin.H{"date": "2024-03-05", "time_from": "10:00", "time_to": "10:30"})
	require.Equal(t, http.StatusOK, code)
	var moved model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &moved))
	assert.Equal(t, model.NewDate(2024, time.March, 5), moved.Date)
	assert.Equal(t, model.NewTimeOfDay(10, 0), moved.TimeFrom)

	code, env = api.do(t, http.MethodPut, "/api/v1/appointments/"+moved.ID.String()+"/reschedule",
		gin.H{"date": "2024-03-04", "time_from": "11:00", "time_to": "11:30"})
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, scheduling.ReasonBooked, env.Error.Details["reason"])
}

func TestTransitionAppointment(t *testing.T) {
	api := newTestAPI(t)
	apt := api.book(t, "09:00", "09:30")
	path := "/api/v1/appointments/" + apt.ID.String() + "/transitions"

	for _, trigger := range []string{"checkin", "complete"} {
		code, _ := api.do(t, http.MethodPost, path, gin.H{"trigger": trigger})
		require.Equal(t, http.StatusOK, code, trigger)
	}

	code, env := api.do(t, http.MethodPost, path, gin.H{"trigger": "cancel", "cancel_reason": "changed mind"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "completed", env.Error.Details["from"])
	assert.Equal(t, []interface{}{"noshow"}, env.Error.Details["allowed"])

	code, _ = api.do(t, http.MethodPost, path, gin.H{"trigger": "teleport"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodPost, path, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTransitionAppointment_CancelAndRescheduleTrigger(t *testing.T) {
	api := newTestAPI(t)
	apt := api.book(t, "09:00", "09:30")
	path := "/api/v1/appointments/" + apt.ID.String() + "/transitions"

	code, _ := api.do(t, http.MethodPost, path, gin.H{"trigger": "reschedule", "date": "2024-03-04"})
	assert.Equal(t, http.StatusBadRequest, code, "partial slot payload")

	code, env := api.do(t, http.MethodPost, path,
		gin.H{"trigger": "reschedule", "date": "2024-03-04", "time_from": "09:30", "time_to": "10:00"})
	require.Equal(t, http.StatusOK, code)
	var moved model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &moved))
	assert.Equal(t, model.NewTimeOfDay(9, 30), moved.TimeFrom)

	code, env = api.do(t, http.MethodPost, path, gin.H{"trigger": "cancel", "cancel_reason": "travelling"})
	require.Equal(t, http.StatusOK, code)
	var cancelled model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "travelling", *cancelled.CancelReason)
}

func TestConfirmTempPatientAppointments(t *testing.T) {
	api := newTestAPI(t)
	tempID := uuid.New()
	api.store.PutTempPatient(tempID, model.Contact{Name: "Walk-in", Phone: "+910000000002"})

	body := api.bookBody("09:00", "09:30")
	delete(body, "patient_id")
	body["temp_patient_id"] = tempID.String()
	code, env := api.do(t, http.MethodPost, "/api/v1/appointments", body)
	require.Equal(t, http.StatusCreated, code)
	var apt model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)

	code, env = api.do(t, http.MethodPost, "/api/v1/temp-patients/"+tempID.String()+"/confirm-appointments", nil)
	require.Equal(t, http.StatusOK, code)
	var res struct {
		Confirmed int64 `json:"confirmed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(1), res.Confirmed)
}
