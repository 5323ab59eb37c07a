package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"platewatch-service/internal/domain/recognition"
)

// FrameSource is the camera abstraction the controller owns. Open
// acquires the device, Capture samples one encoded frame, Close
// releases it. No other component touches the source directly.
type FrameSource interface {
	Open(ctx context.Context) error
	Capture(ctx context.Context) (recognition.Frame, error)
	Close() error
}

var errSourceClosed = errors.New("frame source is not open")

// HTTPSnapshotSource pulls single JPEG frames from a camera snapshot
// endpoint. Open probes the endpoint once so that an unreachable camera
// fails the start action instead of the first tick.
type HTTPSnapshotSource struct {
	url        string
	httpClient *http.Client

	mu     sync.Mutex
	opened bool
}

func NewHTTPSnapshotSource(url string, timeout time.Duration) *HTTPSnapshotSource {
	return &HTTPSnapshotSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSnapshotSource) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("build snapshot probe: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("camera unreachable: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	return nil
}

func (s *HTTPSnapshotSource) Capture(ctx context.Context) (recognition.Frame, error) {
	s.mu.Lock()
	opened := s.opened
	s.mu.Unlock()
	if !opened {
		return recognition.Frame{}, errSourceClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return recognition.Frame{}, fmt.Errorf("build snapshot request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return recognition.Frame{}, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return recognition.Frame{}, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return recognition.Frame{}, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return recognition.Frame{}, errors.New("camera returned an empty frame")
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return recognition.Frame{Data: data, MIMEType: mimeType, Filename: "snapshot.jpg"}, nil
}

func (s *HTTPSnapshotSource) Close() error {
	s.mu.Lock()
	s.opened = false
	s.mu.Unlock()
	return nil
}
