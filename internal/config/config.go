package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type AppConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`

	// RequestTimeout bounds a whole report pipeline run.
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`
	CORSOrigin      string        `envconfig:"CORS_ORIGIN" default:"http://localhost:5173"`
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"100" validate:"gt=0"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m" validate:"gt=0"`

	OpenWeatherAPIKey         string `envconfig:"OPENWEATHER_API_KEY"`
	WeatherAPIKey             string `envconfig:"WEATHERAPI_API_KEY" validate:"required_if=HistoricalWeatherProvider weatherapi"`
	HistoricalWeatherProvider string `envconfig:"HISTORICAL_WEATHER_PROVIDER" default:"weatherapi" validate:"oneof=weatherapi openmeteo"`

	GeocoderProvider      string `envconfig:"GEOCODER_PROVIDER" default:"nominatim" validate:"oneof=nominatim google"`
	GoogleGeocodingAPIKey string `envconfig:"GOOGLE_GEOCODING_API_KEY" validate:"required_if=GeocoderProvider google"`
	NominatimUserAgent    string `envconfig:"NOMINATIM_USER_AGENT" default:"WildfireMonitoringApp/1.0"`

	EngineBaseURL         string        `envconfig:"ENGINE_BASE_URL" validate:"required,url"`
	EngineCredentialsFile string        `envconfig:"ENGINE_CREDENTIALS_FILE" validate:"required"`
	EngineInitInterval    time.Duration `envconfig:"ENGINE_INIT_INTERVAL" default:"5s" validate:"gt=0"`

	MLServiceURL       string `envconfig:"ML_SERVICE_URL" default:"http://localhost:6000" validate:"url"`
	FireTypeServiceURL string `envconfig:"FIRE_TYPE_SERVICE_URL" default:"http://localhost:5000" validate:"url"`

	// Empty KafkaBrokers disables report publishing.
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	KafkaReportTopic string   `envconfig:"KAFKA_REPORT_TOPIC" default:"wildfire-location-reports" validate:"required_with=KafkaBrokers"`

	CacheSweepInterval time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"10m" validate:"gt=0"`
}

// Load reads configuration from the environment, after merging an optional
// .env file, and validates it.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Info("could not load .env file", "error", err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// PublishingEnabled reports whether a Kafka sink is configured.
func (c *AppConfig) PublishingEnabled() bool {
	for _, b := range c.KafkaBrokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}
