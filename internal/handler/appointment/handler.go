package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/handler"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/scheduling"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type Handler struct {
	service *scheduling.Service
}

func NewHandler(service *scheduling.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/providers/:id/slots", h.ListSlots)

	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id/reschedule", h.RescheduleAppointment)
		appointments.POST("/:id/transitions", h.TransitionAppointment)
	}

	r.POST("/temp-patients/:id/confirm-appointments", h.ConfirmTempPatientAppointments)
}

type slotsQuery struct {
	Date   string `form:"date" binding:"required,isodate"`
	Detail bool   `form:"detail"`
}

// ListSlots answers GET /providers/:id/slots?date=YYYY-MM-DD. A day off is
// a 200 with non_working_day set and no slots.
func (h *Handler) ListSlots(c *gin.Context) {
	providerID, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var q slotsQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	date, err := model.ParseDate(q.Date)
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid date", err))
		return
	}

	listing, err := h.service.ListAvailableSlots(c.Request.Context(), providerID, date)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if !q.Detail {
		listing.Details = nil
	}
	httputil.RespondWithSuccess(c, listing)
}

type createAppointmentRequest struct {
	ProviderID    string  `json:"provider_id" binding:"required,uuid"`
	PatientID     *string `json:"patient_id" binding:"omitempty,uuid"`
	TempPatientID *string `json:"temp_patient_id" binding:"omitempty,uuid"`
	handler.SlotFields
	Fee           float64 `json:"fee" binding:"gte=0"`
	ServiceID     *string `json:"service_id" binding:"omitempty,uuid"`
	Note          string  `json:"note" binding:"max=2000"`
	Status        string  `json:"status" binding:"omitempty,oneof=pending confirmed checkedin"`
	PaymentStatus string  `json:"payment_status" binding:"omitempty,oneof=not-paid paid"`
}

func (r createAppointmentRequest) patient() (model.PatientRef, error) {
	patientID, err := handler.ParseOptionalUUID(r.PatientID, "patient_id")
	if err != nil {
		return model.PatientRef{}, err
	}
	tempID, err := handler.ParseOptionalUUID(r.TempPatientID, "temp_patient_id")
	if err != nil {
		return model.PatientRef{}, err
	}
	ref, err := model.PatientRefFromColumns(patientID, tempID)
	if err != nil {
		return model.PatientRef{}, apperrors.BadRequest("exactly one of patient_id or temp_patient_id is required", err)
	}
	return ref, nil
}

func (r createAppointmentRequest) toBooking() (scheduling.BookingRequest, error) {
	var req scheduling.BookingRequest
	providerID, err := uuid.Parse(r.ProviderID)
	if err != nil {
		return req, apperrors.BadRequest("invalid provider_id", err)
	}
	patient, err := r.patient()
	if err != nil {
		return req, err
	}
	date, slot, err := r.Parse()
	if err != nil {
		return req, err
	}
	serviceID, err := handler.ParseOptionalUUID(r.ServiceID, "service_id")
	if err != nil {
		return req, err
	}
	return scheduling.BookingRequest{
		ProviderID:    providerID,
		Date:          date,
		Slot:          slot,
		Patient:       patient,
		Fee:           r.Fee,
		ServiceID:     serviceID,
		Note:          r.Note,
		Status:        model.AppointmentStatus(r.Status),
		PaymentStatus: model.PaymentStatus(r.PaymentStatus),
	}, nil
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	booking, err := req.toBooking()
	if err != nil {
		handler.Fail(c, err)
		return
	}

	apt, err := h.service.Book(c.Request.Context(), booking)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	apt, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

type rescheduleRequest struct {
	handler.SlotFields
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req rescheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	date, slot, err := req.Parse()
	if err != nil {
		handler.Fail(c, err)
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), id, date, slot)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

type transitionRequest struct {
	Trigger      string  `json:"trigger" binding:"required"`
	CancelReason *string `json:"cancel_reason" binding:"omitempty,max=500"`
	Date         string  `json:"date" binding:"omitempty,isodate"`
	TimeFrom     string  `json:"time_from" binding:"omitempty,hhmm"`
	TimeTo       string  `json:"time_to" binding:"omitempty,hhmm"`
}

func (r transitionRequest) payload() (scheduling.TransitionPayload, error) {
	p := scheduling.TransitionPayload{CancelReason: r.CancelReason}
	if r.Date == "" && r.TimeFrom == "" && r.TimeTo == "" {
		return p, nil
	}
	fields := handler.SlotFields{Date: r.Date, TimeFrom: r.TimeFrom, TimeTo: r.TimeTo}
	if r.Date == "" || r.TimeFrom == "" || r.TimeTo == "" {
		return p, apperrors.BadRequest("date, time_from and time_to must be given together", nil)
	}
	date, slot, err := fields.Parse()
	if err != nil {
		return p, err
	}
	p.Date, p.Slot = &date, &slot
	return p, nil
}

// TransitionAppointment applies one lifecycle trigger. Rejected triggers
// come back as 422 with the allowed triggers in the error details.
func (h *Handler) TransitionAppointment(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	payload, err := req.payload()
	if err != nil {
		handler.Fail(c, err)
		return
	}

	apt, err := h.service.Transition(c.Request.Context(), id, scheduling.Trigger(req.Trigger), payload)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ConfirmTempPatientAppointments(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	n, err := h.service.ConfirmTempPatientAppointments(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"temp_patient_id": id, "confirmed": n})
}
