package api

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/persistorai/auditlog/internal/models"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request models to
// gin's validator. It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("eventtype", validEventType)
	})
}

// validEventType accepts known event types in any case.
func validEventType(fl validator.FieldLevel) bool {
	return models.EventType(strings.ToUpper(fl.Field().String())).Valid()
}
