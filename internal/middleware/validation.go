package middleware

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

var registerOnce sync.Once

// RegisterValidators installs the calendar tags on gin's validator and
// makes field errors report JSON names. Safe to call more than once.
//
//	isodate  "2024-03-04"
//	hhmm     "09:30"
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		for tag, fn := range map[string]validator.Func{
			"isodate": func(fl validator.FieldLevel) bool {
				_, err := model.ParseDate(fl.Field().String())
				return err == nil
			},
			"hhmm": func(fl validator.FieldLevel) bool {
				_, err := model.ParseTimeOfDay(fl.Field().String())
				return err == nil
			},
		} {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
	})
}

var validationMessages = map[string]string{
	"required": "field is required",
	"uuid":     "must be a UUID",
	"isodate":  "must be a date formatted YYYY-MM-DD",
	"hhmm":     "must be a time formatted HH:MM",
	"oneof":    "must be one of: ",
	"gte":      "must be at least ",
	"max":      "is too long, max ",
}

func validationMessage(fe validator.FieldError) string {
	msg, ok := validationMessages[fe.Tag()]
	if !ok {
		return fe.Error()
	}
	if strings.HasSuffix(msg, " ") {
		msg += fe.Param()
	}
	return msg
}
