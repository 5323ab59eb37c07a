package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"platewatch-service/internal/capture"
	"platewatch-service/internal/config"
	"platewatch-service/internal/domain/recognition"
	"platewatch-service/internal/domain/registry"
	"platewatch-service/internal/service"
)

type stubOCR struct {
	plates []recognition.PlateCandidate
	err    error
}

func (s *stubOCR) Recognize(ctx context.Context, frame recognition.Frame) ([]recognition.PlateCandidate, error) {
	return s.plates, s.err
}

type stubVision struct {
	result *recognition.VisionResult
	err    error
}

func (s *stubVision) Analyze(ctx context.Context, frame recognition.Frame) (*recognition.VisionResult, error) {
	return s.result, s.err
}

type stubSource struct{}

func (s *stubSource) Open(ctx context.Context) error { return nil }
func (s *stubSource) Capture(ctx context.Context) (recognition.Frame, error) {
	return recognition.Frame{Data: []byte("frame"), MIMEType: "image/jpeg"}, nil
}
func (s *stubSource) Close() error { return nil }

func testService(ocr service.OCRAnalyzer, vision service.VisionAnalyzer) *service.RecognitionService {
	gateway := service.NewGateway(ocr, vision, config.StrategyConcurrent, zerolog.Nop())
	reg := registry.New([]registry.Record{
		{Plate: "ABC123", Make: "Toyota", Model: "Corolla", Color: "white"},
	})
	return service.NewRecognitionService(gateway, reg, nil, zerolog.Nop())
}

func newRouter(svc *service.RecognitionService, controller *capture.Controller, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(svc, controller, &config.Config{}, zerolog.Nop())
	h.Register(router, JWTAuthMiddleware(secret))
	return router
}

func uploadRequest(t *testing.T, field string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "car.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("jpegdata"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognitions", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestRecognize_Match(t *testing.T) {
	ocr := &stubOCR{plates: []recognition.PlateCandidate{{Plate: "abc123", Score: 0.9}}}
	vision := &stubVision{result: &recognition.VisionResult{
		Detection: recognition.Detection{Status: recognition.DetectionFound, Confidence: 0.9},
		Makes:     []recognition.RankedLabel{{Label: "Toyota", Confidence: 0.6}},
		Models:    []recognition.RankedLabel{{Label: "Corolla", Confidence: 0.4}},
		Color:     &recognition.ColorGuess{Name: "White", Confidence: 0.8},
	}}
	router := newRouter(testService(ocr, vision), nil, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "image"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Verdict recognition.Verdict `json:"verdict"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Verdict.Kind != recognition.VerdictMatch {
		t.Errorf("verdict = %s, want match", resp.Data.Verdict.Kind)
	}
}

func TestRecognize_MissingFile(t *testing.T) {
	router := newRouter(testService(&stubOCR{}, &stubVision{}), nil, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "wrong_field"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRecognize_OCRFailureIsBadGateway(t *testing.T) {
	ocr := &stubOCR{err: errors.New("upstream down")}
	vision := &stubVision{result: &recognition.VisionResult{
		Detection: recognition.Detection{Status: recognition.DetectionFound},
	}}
	router := newRouter(testService(ocr, vision), nil, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "image"))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Error("error responses must carry an error string")
	}
}

func TestStream_NotConfigured(t *testing.T) {
	router := newRouter(testService(&stubOCR{}, &stubVision{}), nil, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/stream/start", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestStream_Lifecycle(t *testing.T) {
	ocr := &stubOCR{plates: []recognition.PlateCandidate{{Plate: "abc123", Score: 0.9}}}
	vision := &stubVision{result: &recognition.VisionResult{
		Detection: recognition.Detection{Status: recognition.DetectionFound},
	}}
	svc := testService(ocr, vision)
	processor := capture.ProcessorFunc(func(ctx context.Context, frame recognition.Frame, captureID string) (*recognition.Result, recognition.Verdict, error) {
		return svc.ProcessFrame(ctx, frame, service.SourceStream, captureID)
	})
	controller := capture.NewController(&stubSource{}, processor, time.Hour, zerolog.Nop())
	defer controller.Close()

	router := newRouter(svc, controller, "")

	// Pause before streaming is a state conflict.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/stream/pause", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("pause from idle: status = %d, want 409", w.Code)
	}

	// No result before the stream starts.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream/latest", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("latest before start: status = %d, want 204", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/stream/start", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("start: status = %d, body = %s", w.Code, w.Body.String())
	}

	// The immediate capture lands shortly after start.
	deadline := time.Now().Add(2 * time.Second)
	for {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream/latest", nil))
		if w.Code == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no live result after start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/stream/stop", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stop: status = %d", w.Code)
	}

	// Stop clears the last result.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream/latest", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("latest after stop: status = %d, want 204", w.Code)
	}
}

func TestJWTAuth_ProtectsStreamRoutes(t *testing.T) {
	const secret = "test-secret"
	router := newRouter(testService(&stubOCR{}, &stubVision{}), nil, secret)

	// Missing token.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	// Garbage token.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/status", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}

	// Valid token passes auth (and hits the unconfigured-controller 503).
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/stream/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("valid token: status = %d, want 503 from missing controller", w.Code)
	}

	// Public routes stay public.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", w.Code)
	}
}
