package prediction

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// FireTypeRequest is a satellite fire detection to classify.
type FireTypeRequest struct {
	Latitude   *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude  *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	Brightness *float64 `json:"brightness" validate:"required"`
	BrightT31  *float64 `json:"bright_t31" validate:"required"`
	FRP        *float64 `json:"frp" validate:"required"`
	Satellite  string   `json:"satellite" validate:"required"`
	Confidence *float64 `json:"confidence" validate:"required,min=0,max=100"`
	DayNight   string   `json:"daynight" validate:"required,oneof=day night"`
}

// FireTypeFeatures is the model input; daynight is 1 for day, 0 for night.
type FireTypeFeatures struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Brightness float64 `json:"brightness"`
	BrightT31  float64 `json:"bright_t31"`
	FRP        float64 `json:"frp"`
	Satellite  string  `json:"satellite"`
	Confidence float64 `json:"confidence"`
	DayNight   int     `json:"daynight"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError lists every rejected field of a prediction request.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid prediction request: " + strings.Join(parts, "; ")
}

// Features validates r and shapes it for the model.
func (r FireTypeRequest) Features() (FireTypeFeatures, error) {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return FireTypeFeatures{}, err
		}
		out := &ValidationError{}
		for _, fe := range verrs {
			out.Errors = append(out.Errors, FieldError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Value:   fe.Value(),
			})
		}
		return FireTypeFeatures{}, out
	}

	dayNight := 0
	if r.DayNight == "day" {
		dayNight = 1
	}
	return FireTypeFeatures{
		Latitude:   *r.Latitude,
		Longitude:  *r.Longitude,
		Brightness: *r.Brightness,
		BrightT31:  *r.BrightT31,
		FRP:        *r.FRP,
		Satellite:  r.Satellite,
		Confidence: *r.Confidence,
		DayNight:   dayNight,
	}, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "max":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
