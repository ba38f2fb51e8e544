package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/prediction"
	"github.com/i474232898/wildfire-risk-aggregation/internal/report"
)

const (
	msgReportFailed     = "Failed to process location data"
	msgPredictionFailed = "Failed to process fire prediction data"
	msgFireTypeFailed   = "Error making prediction"
)

// errInvalidBody reports an undecodable request body as a field error.
var errInvalidBody = &geo.ValidationError{Errors: []geo.FieldError{
	{Field: "body", Message: "must be a JSON object"},
}}

// routeFailure carries the client-facing message of a failed route along
// with its cause.
type routeFailure struct {
	message string
	err     error
}

func (f *routeFailure) Error() string { return f.message + ": " + f.err.Error() }
func (f *routeFailure) Unwrap() error { return f.err }

func fail(message string, err error) error {
	return &routeFailure{message: message, err: err}
}

// ErrorHandler maps route errors onto JSON responses. Validation failures
// become 400 with a field list; pipeline and upstream failures become 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			geoErr   *geo.ValidationError
			inputErr *prediction.ValidationError
			failure  *routeFailure
			fe       *fiber.Error
		)
		switch {
		case errors.As(err, &geoErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": geoErr.Errors})
		case errors.As(err, &inputErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": inputErr.Errors})
		case errors.As(err, &failure):
			logger.Error("request failed",
				"path", c.Path(),
				"stage", report.ErrorStage(failure.err),
				"error", failure.err,
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   failure.message,
				"details": failure.err.Error(),
			})
		case errors.As(err, &fe):
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		default:
			logger.Error("unhandled error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
	}
}
