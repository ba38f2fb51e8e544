package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/prediction"
	"github.com/i474232898/wildfire-risk-aggregation/internal/report"
)

const (
	serviceName = "wildfire-risk-aggregation"
	bodyLimit   = 10 * 1024
)

type ReportAssembler interface {
	Assemble(ctx context.Context, req geo.LocationRequest) (*report.Report, error)
}

type Predictor interface {
	FireRisk(ctx context.Context, coord geo.Coordinate) (prediction.RiskPrediction, error)
	FireType(ctx context.Context, req prediction.FireTypeRequest) (string, error)
}

// ReadinessProbe reports whether the geospatial engine can serve requests.
type ReadinessProbe interface {
	Ready() bool
}

// Options configures the app and its middleware.
type Options struct {
	CORSOrigin      string
	RateLimitMax    int
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration
	// Quiet disables the access log, mostly for tests.
	Quiet bool
}

// Deps are the services behind the routes.
type Deps struct {
	Reports   ReportAssembler
	Predictor Predictor
	Readiness ReadinessProbe
	Logger    *slog.Logger
}

// NewApp builds the fiber app with middleware, health endpoints and API
// routes.
func NewApp(opts Options, deps Deps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          ErrorHandler(deps.Logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if !opts.Quiet {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{AllowOrigins: opts.CORSOrigin}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	app.Get("/ready", func(c *fiber.Ctx) error {
		if deps.Readiness == nil || !deps.Readiness.Ready() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	RegisterRoutes(app, opts, deps)
	return app
}

// RegisterRoutes wires the API handlers under /api.
func RegisterRoutes(app *fiber.App, opts Options, deps Deps) {
	limit := opts.RateLimitMax
	if limit <= 0 {
		limit = 100
	}
	window := opts.RateLimitWindow
	if window <= 0 {
		window = 15 * time.Minute
	}
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	h := &handlers{deps: deps, timeout: opts.RequestTimeout}

	api.Post("/location-report", h.locationReport)
	api.Post("/getLocationData", h.locationReport)
	api.Post("/fire-prediction", h.firePrediction)
	api.Post("/getFirePredictionData", h.firePrediction)
	api.Post("/fire-type", h.fireType)
	api.Post("/predictFireType", h.fireType)
}

type handlers struct {
	deps    Deps
	timeout time.Duration
}

// requestContext detaches the pipeline from the client connection and bounds
// it with the configured deadline.
func (h *handlers) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.UserContext())
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		ctx = report.WithRequestID(ctx, id)
	}
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *handlers) locationReport(c *fiber.Ctx) error {
	var req geo.LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	rep, err := h.deps.Reports.Assemble(ctx, req)
	if err != nil {
		return fail(msgReportFailed, err)
	}
	return c.JSON(rep)
}

type locationDetails struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	prediction.Features
}

func (h *handlers) firePrediction(c *fiber.Ctx) error {
	var req geo.LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}
	coord, err := geo.Validate(req)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	pred, err := h.deps.Predictor.FireRisk(ctx, coord)
	if err != nil {
		return fail(msgPredictionFailed, err)
	}
	return c.JSON(fiber.Map{
		"locationDetails": locationDetails{
			Lat:      coord.Lat(),
			Lng:      coord.Lng(),
			Features: pred.Features,
		},
		"predictionConfidence": pred.Confidence,
	})
}

func (h *handlers) fireType(c *fiber.Ctx) error {
	var req prediction.FireTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	predicted, err := h.deps.Predictor.FireType(ctx, req)
	if err != nil {
		return fail(msgFireTypeFailed, err)
	}
	return c.JSON(fiber.Map{"predictedType": predicted})
}
