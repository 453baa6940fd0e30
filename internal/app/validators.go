package app

import (
	"fmt"

	"classmate/internal/model"
	"classmate/internal/schedule"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// registerValidators adds the course binding tags to gin's validator.
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	if err := v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return schedule.Weekday(fl.Field().Int()).Valid()
	}); err != nil {
		return err
	}

	return v.RegisterValidation("coursecolor", func(fl validator.FieldLevel) bool {
		return model.CourseColor(fl.Field().String()).Valid()
	})
}
