package handlers

import (
	"sync"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the "hhmm" and "iana_tz" tags to gin's
// validator. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, _, err := models.ParseClock(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("iana_tz", func(fl validator.FieldLevel) bool {
			name := fl.Field().String()
			if name == "" || name == "Local" {
				return false
			}
			_, err := time.LoadLocation(name)
			return err == nil
		})
	})
}
