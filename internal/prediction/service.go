package prediction

import (
	"context"
	"log/slog"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
)

// RiskPrediction is the fire-risk model output with the features it saw.
type RiskPrediction struct {
	Coord      geo.Coordinate
	Features   Features
	Confidence float64
}

type Service struct {
	features *FeatureBuilder
	client   *Client
	logger   *slog.Logger
}

func NewService(features *FeatureBuilder, client *Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{features: features, client: client, logger: logger}
}

// FireRisk builds the feature vector for coord and scores it.
func (s *Service) FireRisk(ctx context.Context, coord geo.Coordinate) (RiskPrediction, error) {
	f, err := s.features.Build(ctx, coord)
	if err != nil {
		return RiskPrediction{}, err
	}
	confidence, err := s.client.PredictFireRisk(ctx, f)
	if err != nil {
		return RiskPrediction{}, err
	}
	s.logger.Info("fire risk predicted", "coord", coord.Key(), "confidence", confidence)
	return RiskPrediction{Coord: coord, Features: f, Confidence: confidence}, nil
}

// FireType validates req and classifies it.
func (s *Service) FireType(ctx context.Context, req FireTypeRequest) (string, error) {
	f, err := req.Features()
	if err != nil {
		return "", err
	}
	return s.client.PredictFireType(ctx, f)
}
