// Package handler holds the helpers shared by the gin handlers in its
// subpackages. Handlers report failures with c.Error and leave rendering to
// middleware.ErrorHandler.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

// ParamUUID parses a path parameter. On failure it records a bad request
// and returns false.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Fail(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON binds and validates the body, recording a bind error on failure.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	return true
}

func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// SlotFields is the date plus window every scheduling request carries.
// The binding tags guarantee the parse calls below succeed.
type SlotFields struct {
	Date     string `json:"date" form:"date" binding:"required,isodate"`
	TimeFrom string `json:"time_from" binding:"required,hhmm"`
	TimeTo   string `json:"time_to" binding:"required,hhmm"`
}

func (f SlotFields) Parse() (model.Date, model.TimeSlot, error) {
	date, err := model.ParseDate(f.Date)
	if err != nil {
		return model.Date{}, model.TimeSlot{}, apperrors.BadRequest("invalid date", err)
	}
	from, err := model.ParseTimeOfDay(f.TimeFrom)
	if err != nil {
		return model.Date{}, model.TimeSlot{}, apperrors.BadRequest("invalid time_from", err)
	}
	to, err := model.ParseTimeOfDay(f.TimeTo)
	if err != nil {
		return model.Date{}, model.TimeSlot{}, apperrors.BadRequest("invalid time_to", err)
	}
	if from >= to {
		return model.Date{}, model.TimeSlot{}, apperrors.BadRequest("time_from must be before time_to", nil)
	}
	return date, model.TimeSlot{Start: from, End: to}, nil
}

// ParseOptionalUUID parses s when present.
func ParseOptionalUUID(s *string, field string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, apperrors.BadRequest("invalid "+field, err)
	}
	return &id, nil
}
