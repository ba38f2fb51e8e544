package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidCoordinate is matched by every coordinate validation failure.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LocationRequest is the raw body of a location report request. Values are
// left untyped until Validate parses them; both JSON numbers and numeric
// strings are accepted.
type LocationRequest struct {
	Lat any `json:"lat"`
	Lng any `json:"lng"`
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError carries all field-level failures of a request.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidCoordinate, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidCoordinate
}

// bounds holds parsed values so the range rules live in struct tags.
type bounds struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// Validate parses and range-checks a LocationRequest.
func Validate(req LocationRequest) (Coordinate, error) {
	return Parse(req.Lat, req.Lng)
}

// Parse converts untyped lat/lng values into a Coordinate. It never performs
// I/O and reports every failing field at once.
func Parse(rawLat, rawLng any) (Coordinate, error) {
	var fieldErrs []FieldError

	lat, err := toFloat(rawLat)
	if err != nil {
		fieldErrs = append(fieldErrs, FieldError{Field: "lat", Message: err.Error(), Value: rawLat})
	}
	lng, err := toFloat(rawLng)
	if err != nil {
		fieldErrs = append(fieldErrs, FieldError{Field: "lng", Message: err.Error(), Value: rawLng})
	}
	if len(fieldErrs) > 0 {
		return Coordinate{}, &ValidationError{Errors: fieldErrs}
	}

	b := bounds{Lat: lat, Lng: lng}
	if err := validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Coordinate{}, fmt.Errorf("%w: %v", ErrInvalidCoordinate, err)
		}
		for _, fe := range verrs {
			fieldErrs = append(fieldErrs, FieldError{
				Field:   fe.Field(),
				Message: rangeMessage(fe),
				Value:   fe.Value(),
			})
		}
		return Coordinate{}, &ValidationError{Errors: fieldErrs}
	}

	return Coordinate{lat: lat, lng: lng}, nil
}

func rangeMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "lat":
		return "must be a number between -90 and 90"
	case "lng":
		return "must be a number between -180 and 180"
	default:
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	}
}

func toFloat(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, errors.New("is required")
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, errors.New("must be numeric")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.New("must be numeric")
		}
		f = parsed
	default:
		return 0, errors.New("must be numeric")
	}
	// NaN passes min/max comparisons, so reject non-finite values here.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("must be a finite number")
	}
	return f, nil
}
