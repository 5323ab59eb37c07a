package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"platewatch-service/internal/domain/recognition"
	"platewatch-service/internal/domain/registry"
	"platewatch-service/internal/repository"
	"platewatch-service/internal/utils"
)

// Capture sources recorded on persisted events.
const (
	SourceUpload = "upload"
	SourceStream = "stream"
)

type RecognitionService struct {
	gateway  *Gateway
	registry registry.Lookup
	repo     *repository.EventRepository
	log      zerolog.Logger
}

func NewRecognitionService(gateway *Gateway, reg registry.Lookup, repo *repository.EventRepository, log zerolog.Logger) *RecognitionService {
	return &RecognitionService{
		gateway:  gateway,
		registry: reg,
		repo:     repo,
		log:      log,
	}
}

// ProcessFrame runs one frame through the gateway, evaluates compliance
// against the registry and records the outcome. A persistence failure
// is logged but does not fail the capture; the caller still gets the
// verdict.
func (s *RecognitionService) ProcessFrame(ctx context.Context, frame recognition.Frame, source string, captureID string) (*recognition.Result, recognition.Verdict, error) {
	if len(frame.Data) == 0 {
		return nil, recognition.Verdict{}, fmt.Errorf("%w: frame is empty", ErrInvalidInput)
	}

	result, err := s.gateway.Recognize(ctx, frame)
	if err != nil {
		s.log.Error().Err(err).Str("source", source).Msg("recognition failed")
		return nil, recognition.Verdict{}, err
	}

	verdict := EvaluateCompliance(result, s.registry)

	logEvent := s.log.Info().
		Str("source", source).
		Str("verdict", string(verdict.Kind)).
		Str("vision_status", string(result.VisionStatus)).
		Int("candidates", len(result.Plates))
	if verdict.Plate != "" {
		logEvent = logEvent.Str("plate", verdict.Plate)
	}
	if verdict.Wanted {
		logEvent = logEvent.Bool("wanted", true)
	}
	logEvent.Msg("frame processed")

	if s.repo != nil {
		if err := s.recordEvent(ctx, result, verdict, source, captureID); err != nil {
			s.log.Error().Err(err).Str("source", source).Msg("failed to persist recognition event")
		}
	}

	return result, verdict, nil
}

func (s *RecognitionService) recordEvent(ctx context.Context, result *recognition.Result, verdict recognition.Verdict, source, captureID string) error {
	event := &repository.RecognitionEvent{
		Source:       source,
		VerdictKind:  string(verdict.Kind),
		Wanted:       verdict.Wanted,
		VisionStatus: string(result.VisionStatus),
		EventTime:    time.Now(),
	}
	if captureID != "" {
		event.CaptureID = &captureID
	}
	if top := result.TopCandidate(); top != nil {
		raw := top.Plate
		event.RawPlate = &raw
		normalized := utils.NormalizePlate(top.Plate)
		if normalized != "" {
			event.NormalizedPlate = &normalized
		}
		score := top.Score
		event.Confidence = &score
	}
	if len(verdict.Reasons) > 0 {
		if data, err := json.Marshal(verdict.Reasons); err == nil {
			event.Reasons = data
		}
	}
	if result.Vision != nil {
		if len(result.Vision.Makes) > 0 {
			m := result.Vision.Makes[0].Label
			event.VehicleMake = &m
		}
		if len(result.Vision.Models) > 0 {
			m := result.Vision.Models[0].Label
			event.VehicleModel = &m
		}
		if result.Vision.Color != nil {
			c := result.Vision.Color.Name
			event.VehicleColor = &c
		}
	}
	if data, err := json.Marshal(result); err == nil {
		event.RawResult = data
	}
	return s.repo.CreateEvent(ctx, event)
}

func (s *RecognitionService) FindPlates(ctx context.Context, plateQuery string) ([]repository.PlateSummary, error) {
	normalized := utils.NormalizePlate(plateQuery)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate query cannot be empty", ErrInvalidInput)
	}
	summaries, err := s.repo.FindPlateSummaries(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find plates: %w", err)
	}
	return summaries, nil
}

func (s *RecognitionService) FindEvents(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]EventInfo, error) {
	var normalizedPlate *string
	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			normalizedPlate = &normalized
		}
	}

	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.repo.FindEvents(ctx, normalizedPlate, fromTime, toTime, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}

	result := make([]EventInfo, 0, len(events))
	for _, e := range events {
		info := EventInfo{
			ID:              e.ID,
			CaptureID:       e.CaptureID,
			Source:          e.Source,
			RawPlate:        e.RawPlate,
			NormalizedPlate: e.NormalizedPlate,
			Confidence:      e.Confidence,
			VerdictKind:     e.VerdictKind,
			Wanted:          e.Wanted,
			VisionStatus:    e.VisionStatus,
			VehicleMake:     e.VehicleMake,
			VehicleModel:    e.VehicleModel,
			VehicleColor:    e.VehicleColor,
			EventTime:       e.EventTime,
		}
		if len(e.Reasons) > 0 {
			_ = json.Unmarshal(e.Reasons, &info.Reasons)
		}
		result = append(result, info)
	}
	return result, nil
}

// CleanupOldEvents deletes events older than the given number of days.
func (s *RecognitionService) CleanupOldEvents(ctx context.Context, days int) (int64, error) {
	deleted, err := s.repo.DeleteOldEvents(ctx, days)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old events")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old events")
	}
	return deleted, nil
}

type EventInfo struct {
	ID              int64     `json:"id"`
	CaptureID       *string   `json:"capture_id,omitempty"`
	Source          string    `json:"source"`
	RawPlate        *string   `json:"raw_plate,omitempty"`
	NormalizedPlate *string   `json:"normalized_plate,omitempty"`
	Confidence      *float64  `json:"confidence,omitempty"`
	VerdictKind     string    `json:"verdict_kind"`
	Reasons         []string  `json:"reasons,omitempty"`
	Wanted          bool      `json:"wanted"`
	VisionStatus    string    `json:"vision_status"`
	VehicleMake     *string   `json:"vehicle_make,omitempty"`
	VehicleModel    *string   `json:"vehicle_model,omitempty"`
	VehicleColor    *string   `json:"vehicle_color,omitempty"`
	EventTime       time.Time `json:"event_time"`
}
