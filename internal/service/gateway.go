package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"platewatch-service/internal/config"
	"platewatch-service/internal/domain/recognition"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrRecognitionFailed = errors.New("recognition failed")
)

type OCRAnalyzer interface {
	Recognize(ctx context.Context, frame recognition.Frame) ([]recognition.PlateCandidate, error)
}

type VisionAnalyzer interface {
	Analyze(ctx context.Context, frame recognition.Frame) (*recognition.VisionResult, error)
}

// Gateway merges the plate reader and the attribute classifier into one
// unified result. A plate-reader failure is terminal for the capture; a
// classifier failure only degrades the result.
type Gateway struct {
	ocr      OCRAnalyzer
	vision   VisionAnalyzer
	strategy string
	log      zerolog.Logger
}

func NewGateway(ocr OCRAnalyzer, vision VisionAnalyzer, strategy string, log zerolog.Logger) *Gateway {
	return &Gateway{
		ocr:      ocr,
		vision:   vision,
		strategy: strategy,
		log:      log.With().Str("component", "gateway").Str("strategy", strategy).Logger(),
	}
}

func (g *Gateway) Recognize(ctx context.Context, frame recognition.Frame) (*recognition.Result, error) {
	if g.strategy == config.StrategyGated {
		return g.recognizeGated(ctx, frame)
	}
	return g.recognizeConcurrent(ctx, frame)
}

// recognizeConcurrent fires both upstreams in parallel and joins on
// both outcomes. The group context cancels the classifier call when the
// plate reader fails, since the whole capture fails with it.
func (g *Gateway) recognizeConcurrent(ctx context.Context, frame recognition.Frame) (*recognition.Result, error) {
	var (
		plates    []recognition.PlateCandidate
		visionRes *recognition.VisionResult
		visionErr error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		plates, err = g.ocr.Recognize(egCtx, frame)
		return err
	})
	eg.Go(func() error {
		visionRes, visionErr = g.vision.Analyze(egCtx, frame)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRecognitionFailed, err)
	}

	result := &recognition.Result{Plates: plates}
	result.ImageWidth, result.ImageHeight = frameDimensions(frame)
	if visionErr != nil {
		g.log.Warn().Err(visionErr).Msg("vision degraded, returning OCR-only result")
		result.VisionStatus = recognition.VisionError
		result.VisionReason = visionErr.Error()
	} else {
		result.VisionStatus = recognition.VisionOK
		result.Vision = visionRes
	}
	return result, nil
}

// recognizeGated calls vision first and spends OCR budget only on
// frames with a positive vehicle detection.
func (g *Gateway) recognizeGated(ctx context.Context, frame recognition.Frame) (*recognition.Result, error) {
	result := &recognition.Result{}
	result.ImageWidth, result.ImageHeight = frameDimensions(frame)

	visionRes, err := g.vision.Analyze(ctx, frame)
	if err != nil {
		g.log.Warn().Err(err).Msg("vision unavailable, skipping OCR")
		result.VisionStatus = recognition.VisionError
		result.VisionReason = err.Error()
		result.OCRSkipReason = "vision unavailable, plate reading not attempted"
		return result, nil
	}

	result.VisionStatus = recognition.VisionOK
	result.Vision = visionRes
	if visionRes.Detection.Status != recognition.DetectionFound {
		g.log.Debug().Str("status", visionRes.Detection.Status).Msg("no vehicle detected, skipping OCR")
		result.OCRSkipReason = "no vehicle detected in frame, plate reading skipped"
		return result, nil
	}

	plates, err := g.ocr.Recognize(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRecognitionFailed, err)
	}
	result.Plates = plates
	return result, nil
}

// frameDimensions reads the pixel size from the encoded image header so
// that box coordinates can be related to the frame they came from.
// Undecodable frames report zero dimensions rather than failing the
// capture.
func frameDimensions(frame recognition.Frame) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame.Data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
