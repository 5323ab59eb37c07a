package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"platewatch-service/internal/domain/recognition"
)

type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateStreaming State = "streaming"
	StatePaused    State = "paused"
)

var ErrInvalidState = errors.New("invalid capture state")

// Processor turns one frame into a recognition result and verdict.
type Processor interface {
	Process(ctx context.Context, frame recognition.Frame, captureID string) (*recognition.Result, recognition.Verdict, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, frame recognition.Frame, captureID string) (*recognition.Result, recognition.Verdict, error)

func (f ProcessorFunc) Process(ctx context.Context, frame recognition.Frame, captureID string) (*recognition.Result, recognition.Verdict, error) {
	return f(ctx, frame, captureID)
}

// Snapshot is the most recent live outcome: either a result+verdict or
// an error message. One slot, overwritten per capture, cleared on stop.
type Snapshot struct {
	CaptureID string               `json:"capture_id"`
	Taken     time.Time            `json:"taken"`
	Result    *recognition.Result  `json:"result,omitempty"`
	Verdict   *recognition.Verdict `json:"verdict,omitempty"`
	Err       string               `json:"error,omitempty"`
}

type Status struct {
	State    State  `json:"state"`
	InFlight bool   `json:"in_flight"`
	Interval string `json:"interval"`
}

// Controller owns the frame source and runs the sampling loop. At most
// one capture is in flight at any time: a tick that arrives while a
// previous capture has not resolved is dropped, so upstream latency
// above the interval throttles the effective rate instead of stacking
// requests.
type Controller struct {
	source    FrameSource
	processor Processor
	interval  time.Duration
	log       zerolog.Logger

	mu         sync.Mutex
	state      State
	inFlight   bool
	gen        uint64
	last       *Snapshot
	loopCancel context.CancelFunc
}

func NewController(source FrameSource, processor Processor, interval time.Duration, log zerolog.Logger) *Controller {
	return &Controller{
		source:    source,
		processor: processor,
		interval:  interval,
		log:       log.With().Str("component", "capture").Logger(),
		state:     StateIdle,
	}
}

// Start begins or resumes streaming. No-op while already streaming or
// acquiring. From paused it re-arms the timer and triggers an immediate
// capture without reacquiring the source. From idle it acquires the
// source first; on failure the controller stays idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateStreaming, StateAcquiring:
		c.mu.Unlock()
		return nil
	case StatePaused:
		c.state = StateStreaming
		c.startLoopLocked()
		c.mu.Unlock()
		c.log.Info().Msg("capture resumed")
		return nil
	}
	c.state = StateAcquiring
	c.mu.Unlock()

	if err := c.source.Open(ctx); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return fmt.Errorf("acquire frame source: %w", err)
	}

	c.mu.Lock()
	if c.state != StateAcquiring {
		// stopped while acquiring; release what we just opened
		c.mu.Unlock()
		c.source.Close()
		return ErrInvalidState
	}
	c.state = StateStreaming
	c.startLoopLocked()
	c.mu.Unlock()

	c.log.Info().Dur("interval", c.interval).Msg("capture started")
	return nil
}

// Pause stops the timer but keeps the source open; only valid while
// streaming. An in-flight capture is not cancelled and its result is
// still applied.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStreaming {
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidState, c.state)
	}
	c.stopLoopLocked()
	c.state = StatePaused
	c.log.Info().Msg("capture paused")
	return nil
}

// Stop tears streaming down from any non-idle state: timer cancelled,
// source released, last result cleared. A capture still in flight has
// its eventual result discarded.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("%w: not streaming", ErrInvalidState)
	}
	c.stopLoopLocked()
	c.state = StateIdle
	c.gen++
	c.last = nil
	c.mu.Unlock()

	if err := c.source.Close(); err != nil {
		c.log.Warn().Err(err).Msg("failed to release frame source")
	}
	c.log.Info().Msg("capture stopped")
	return nil
}

// Close releases the timer and the source unconditionally. Safe to call
// in any state; a held source after teardown is a correctness bug.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopLoopLocked()
	wasIdle := c.state == StateIdle
	c.state = StateIdle
	c.gen++
	c.last = nil
	c.mu.Unlock()

	if !wasIdle {
		c.source.Close()
	}
}

// Latest returns the most recent live snapshot, or nil when none is
// available.
func (c *Controller) Latest() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:    c.state,
		InFlight: c.inFlight,
		Interval: c.interval.String(),
	}
}

func (c *Controller) startLoopLocked() {
	loopCtx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	go c.runLoop(loopCtx)
}

func (c *Controller) stopLoopLocked() {
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
}

// runLoop fires one immediate capture so the first result appears
// without waiting out the interval, then samples on the ticker until
// cancelled.
func (c *Controller) runLoop(ctx context.Context) {
	c.tick()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick performs one guarded capture. It is a no-op unless the
// controller is streaming and nothing is in flight. Processing runs
// against a background context: pause and stop never cancel an
// in-flight call, they only gate new ones; stale results are dropped by
// the generation check.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.state != StateStreaming || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	gen := c.gen
	c.mu.Unlock()

	ctx := context.Background()
	captureID := uuid.NewString()

	frame, err := c.source.Capture(ctx)
	if err != nil {
		// skip this tick only; the guard must still be released
		c.log.Warn().Err(err).Msg("frame capture failed, skipping tick")
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
		return
	}

	result, verdict, err := c.processor.Process(ctx, frame, captureID)
	snap := &Snapshot{CaptureID: captureID, Taken: time.Now()}
	if err != nil {
		snap.Err = err.Error()
	} else {
		snap.Result = result
		v := verdict
		snap.Verdict = &v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.gen != gen {
		return
	}
	c.last = snap
}
