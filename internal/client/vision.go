package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"platewatch-service/internal/domain/recognition"
)

// VisionClient talks to the vehicle-attribute classifier: multipart
// POST with the image under the "file" field, no auth. The response
// carries a vehicle detection, ranked make/model predictions and the
// dominant color.
type VisionClient struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewVisionClient(url string, timeout time.Duration, log zerolog.Logger) *VisionClient {
	return &VisionClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", "vision").Logger(),
	}
}

type visionBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

type visionDetection struct {
	Status     string     `json:"status"`
	Confidence float64    `json:"confidence"`
	Label      *string    `json:"label"`
	Box        *visionBox `json:"box"`
}

type visionColor struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type visionRanked struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type visionResponse struct {
	Detection visionDetection `json:"detection"`
	Color     *visionColor    `json:"color"`
	Makes     []visionRanked  `json:"makes"`
	Models    []visionRanked  `json:"models"`
}

// Analyze submits one frame for attribute classification. Errors here
// are always recoverable at the gateway level.
func (c *VisionClient) Analyze(ctx context.Context, frame recognition.Frame) (*recognition.VisionResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filename := frame.Filename
	if filename == "" {
		filename = "frame.jpg"
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, fmt.Errorf("write frame data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.url + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read vision response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := decodeDetail(respBody)
		c.log.Warn().Int("status", resp.StatusCode).Str("detail", detail).Msg("vision service returned error")
		return nil, fmt.Errorf("vision service returned status %d: %s", resp.StatusCode, detail)
	}

	var parsed visionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}

	result := normalizeVisionResponse(parsed)
	c.log.Debug().
		Str("detection_status", result.Detection.Status).
		Int("makes", len(result.Makes)).
		Int("models", len(result.Models)).
		Msg("vision response decoded")
	return result, nil
}

func normalizeVisionResponse(v visionResponse) *recognition.VisionResult {
	result := &recognition.VisionResult{
		Detection: recognition.Detection{
			Status:     v.Detection.Status,
			Confidence: v.Detection.Confidence,
			Label:      v.Detection.Label,
		},
	}
	if v.Detection.Box != nil {
		result.Detection.Box = &recognition.Box{
			XMin: v.Detection.Box.X1,
			YMin: v.Detection.Box.Y1,
			XMax: v.Detection.Box.X2,
			YMax: v.Detection.Box.Y2,
		}
	}
	if v.Color != nil && v.Color.Name != "" {
		result.Color = &recognition.ColorGuess{Name: v.Color.Name, Confidence: v.Color.Confidence}
	}
	for _, m := range v.Makes {
		result.Makes = append(result.Makes, recognition.RankedLabel{Label: m.Label, Confidence: m.Confidence})
	}
	for _, m := range v.Models {
		result.Models = append(result.Models, recognition.RankedLabel{Label: m.Label, Confidence: m.Confidence})
	}
	return result
}
