package weather

import "errors"

var (
	ErrInvalidDate    = errors.New("invalid date format")
	ErrFutureDate     = errors.New("future date provided")
	ErrIncompleteData = errors.New("missing critical weather data")
	ErrNotConfigured  = errors.New("weather provider not configured")
)
