package blocked

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/internal/handler"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
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
	r.GET("/providers/:id/blocked-intervals", h.ListBlockedIntervals)
	r.POST("/providers/:id/blocked-intervals", h.CreateBlockedInterval)
	r.DELETE("/blocked-intervals/:id", h.DeleteBlockedInterval)
}

type listQuery struct {
	Date string `form:"date" binding:"required,isodate"`
}

func (h *Handler) ListBlockedIntervals(c *gin.Context) {
	providerID, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var q listQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	date, err := model.ParseDate(q.Date)
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid date", err))
		return
	}

	blocked, err := h.service.ListBlockedIntervals(c.Request.Context(), providerID, date)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, blocked)
}

type createRequest struct {
	handler.SlotFields
	Reason string `json:"reason" binding:"max=500"`
}

func (h *Handler) CreateBlockedInterval(c *gin.Context) {
	providerID, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req createRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	date, slot, err := req.Parse()
	if err != nil {
		handler.Fail(c, err)
		return
	}

	b := &model.BlockedInterval{
		ProviderID: providerID,
		Date:       date,
		TimeFrom:   slot.Start,
		TimeTo:     slot.End,
		Reason:     req.Reason,
	}
	if staffID, ok := middleware.StaffID(c); ok {
		b.CreatedBy = &staffID
	}
	if err := h.service.CreateBlockedInterval(c.Request.Context(), b); err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, b)
}

func (h *Handler) DeleteBlockedInterval(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	if _, err := h.service.DeleteBlockedInterval(c.Request.Context(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
