package validation

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	v *validator.Validate
}

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

func New() *Validator {
	v := validator.New()

	registerString(v, "date", func(s string) bool {
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	})

	// Appointment times arrive the way the booking screens render them: "9:00 AM".
	registerString(v, "clock12", func(s string) bool {
		_, err := time.Parse("3:04 PM", s)
		return err == nil
	})

	registerString(v, "phone", phoneRegex.MatchString)

	return &Validator{v: v}
}

func registerString(v *validator.Validate, tag string, check func(string) bool) {
	v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		return ok && check(value)
	})
}

func (v *Validator) Struct(s interface{}) error {
	return v.v.Struct(s)
}

func (v *Validator) ValidationErrors(err error) validator.ValidationErrors {
	if err == nil {
		return nil
	}
	if ve, ok := err.(validator.ValidationErrors); ok {
		return ve
	}
	return nil
}
