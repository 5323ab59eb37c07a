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

// OCRClient talks to the plate-reader service: multipart POST with the
// image under the "upload" field and a bearer token. Failures carry a
// "detail" string in the body.
type OCRClient struct {
	url        string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewOCRClient(url, token string, timeout time.Duration, log zerolog.Logger) *OCRClient {
	return &OCRClient{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", "ocr").Logger(),
	}
}

type ocrRegion struct {
	Code  string  `json:"code"`
	Score float64 `json:"score"`
}

type ocrBox struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

type ocrVehicle struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

type ocrCandidate struct {
	Plate string  `json:"plate"`
	Score float64 `json:"score"`
}

type ocrResult struct {
	Plate      string         `json:"plate"`
	Score      float64        `json:"score"`
	Region     *ocrRegion     `json:"region"`
	Box        *ocrBox        `json:"box"`
	Vehicle    *ocrVehicle    `json:"vehicle"`
	Candidates []ocrCandidate `json:"candidates"`
}

type ocrResponse struct {
	Results []ocrResult `json:"results"`
	Detail  string      `json:"detail"`
}

// Recognize submits one frame and returns the normalized plate
// candidate list. Any transport or non-2xx failure is returned as an
// error; the gateway decides how hard that failure is.
func (c *OCRClient) Recognize(ctx context.Context, frame recognition.Frame) ([]recognition.PlateCandidate, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filename := frame.Filename
	if filename == "" {
		filename = "frame.jpg"
	}
	part, err := writer.CreateFormFile("upload", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, fmt.Errorf("write frame data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read OCR response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := decodeDetail(respBody)
		c.log.Warn().Int("status", resp.StatusCode).Str("detail", detail).Msg("OCR service returned error")
		return nil, fmt.Errorf("OCR service returned status %d: %s", resp.StatusCode, detail)
	}

	var parsed ocrResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode OCR response: %w", err)
	}

	candidates := make([]recognition.PlateCandidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		candidates = append(candidates, normalizeOCRResult(r))
	}
	c.log.Debug().Int("candidates", len(candidates)).Msg("OCR response decoded")
	return candidates, nil
}

func normalizeOCRResult(r ocrResult) recognition.PlateCandidate {
	cand := recognition.PlateCandidate{
		Plate: r.Plate,
		Score: r.Score,
	}
	if r.Region != nil && r.Region.Code != "" {
		cand.Region = &recognition.RegionGuess{Code: r.Region.Code, Score: r.Region.Score}
	}
	if r.Box != nil {
		cand.Box = &recognition.Box{XMin: r.Box.XMin, YMin: r.Box.YMin, XMax: r.Box.XMax, YMax: r.Box.YMax}
	}
	if r.Vehicle != nil && r.Vehicle.Type != "" {
		t := r.Vehicle.Type
		cand.VehicleType = &t
	}
	for _, alt := range r.Candidates {
		cand.Alternates = append(cand.Alternates, recognition.AltCandidate{Plate: alt.Plate, Score: alt.Score})
	}
	return cand
}

func decodeDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return string(body)
}
