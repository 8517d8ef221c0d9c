// Package session owns the operator's capture-and-result lifecycle: one
// explicit state machine, one pending input slot, one current result,
// and the HTTP surface the page talks to.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/rcanales/recibo-capture/internal/capture"
	"github.com/rcanales/recibo-capture/internal/extraction"
	"github.com/rcanales/recibo-capture/internal/input"
)

// State is the session's single lifecycle variant. Exactly one holds at
// any time; combinations like "submitting with camera live" cannot be
// expressed.
type State string

const (
	StateIdle         State = "idle"
	StateCameraActive State = "camera_active"
	StateInputReady   State = "input_ready"
	StateSubmitting   State = "submitting"
	StateResulted     State = "resulted"
	StateFailed       State = "failed"
)

var (
	// ErrBusy reports an overlapping trigger. Overlaps are ignored,
	// never queued.
	ErrBusy = errors.New("another operation is in progress")

	// ErrNoInput reports a submission with nothing pending.
	ErrNoInput = errors.New("no input to submit")

	// ErrNoCamera reports a capture or preview without a live camera.
	ErrNoCamera = errors.New("camera is not active")

	// ErrNoResult reports a result operation before any submission
	// succeeded.
	ErrNoResult = errors.New("no result available")
)

// Operator-facing messages. The page shows these verbatim.
const (
	msgCameraAccess = "No se pudo acceder a la cámara"
	msgERPAck       = "Enviado al ERP"
)

// Submitter sends a captured input to the extraction service.
type Submitter interface {
	Submit(in *input.CapturedInput) (*extraction.Result, error)
}

// Controller walks one operator session through capture, submission,
// and result. All mutation happens under one mutex; long operations
// release it for the slow part and reacquire to publish, with the busy
// flag keeping overlapping triggers out in between.
type Controller struct {
	camera    *capture.Adapter
	submitter Submitter

	mu     sync.Mutex
	state  State
	busy   bool
	live   *capture.Session
	input  *input.CapturedInput
	result *extraction.Result
	errMsg string
}

// NewController creates a Controller in the idle state.
func NewController(camera *capture.Adapter, submitter Submitter) *Controller {
	return &Controller{
		camera:    camera,
		submitter: submitter,
		state:     StateIdle,
	}
}

// ActivateCamera opens the camera and enters camera_active. On access
// failure the state is left untouched (no partial session) and the
// camera-access message is surfaced.
func (c *Controller) ActivateCamera() error {
	c.mu.Lock()
	if c.busy || c.state == StateCameraActive || c.state == StateSubmitting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	session, err := c.camera.Activate()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		slog.Error("camera activation failed", "error", err)
		c.errMsg = msgCameraAccess
		return err
	}
	c.live = session
	c.state = StateCameraActive
	c.errMsg = ""
	return nil
}

// CaptureFrame freezes the live frame and goes straight from
// camera_active to input_ready with every track stopped; there is no
// intermediate state. An encode failure is silent for the operator: the
// camera is torn down, no input appears, and the failure is only logged.
func (c *Controller) CaptureFrame() error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != StateCameraActive || c.live == nil {
		c.mu.Unlock()
		return ErrNoCamera
	}
	c.busy = true
	live := c.live
	c.mu.Unlock()

	frame, err := c.camera.Capture(live)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.live = nil
	if err != nil {
		slog.Error("frame capture failed", "error", err)
		c.state = StateIdle
		return err
	}

	in, err := input.FromCapturedFrame(frame)
	if err != nil {
		slog.Error("normalizing captured frame", "error", err)
		c.state = StateIdle
		return err
	}
	c.setInputLocked(in)
	return nil
}

// SetInput installs a freshly read input. Reads race freely: there is
// no cancellation, so whichever read completes last owns the slot. Only
// an in-flight submission blocks replacement.
func (c *Controller) SetInput(in *input.CapturedInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSubmitting {
		return ErrBusy
	}
	c.setInputLocked(in)
	return nil
}

// setInputLocked replaces the pending slot wholesale: prior input and
// stale result are discarded, a live camera is torn down.
func (c *Controller) setInputLocked(in *input.CapturedInput) {
	if c.live != nil {
		c.live.Stop()
		c.live = nil
	}
	c.input = in
	c.result = nil
	c.errMsg = ""
	c.state = StateInputReady
}

// Submit sends the pending input to the extraction service. A second
// trigger while submitting is a no-op: no second request leaves the
// machine. Failure surfaces the service's message and keeps the input
// so the operator can retry or replace it.
func (c *Controller) Submit() error {
	c.mu.Lock()
	if c.busy || c.state == StateSubmitting {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.input == nil || (c.state != StateInputReady && c.state != StateFailed) {
		c.mu.Unlock()
		return ErrNoInput
	}
	in := c.input
	c.busy = true
	c.state = StateSubmitting
	c.errMsg = ""
	c.mu.Unlock()

	result, err := c.submitter.Submit(in)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		slog.Error("submission failed", "input", in.Name, "error", err)
		c.state = StateFailed
		c.errMsg = extraction.FailureMessage(err)
		return err
	}
	c.result = result
	c.state = StateResulted
	c.errMsg = ""
	return nil
}

// SendToERP acknowledges the ERP handoff. The integration is a stub:
// the acknowledgment is canned and nothing leaves the machine.
func (c *Controller) SendToERP() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateResulted || c.result == nil {
		return "", ErrNoResult
	}
	return msgERPAck, nil
}

// Reset returns the session to idle: slot, result, and message cleared,
// camera released. Busy operations must settle first.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || c.state == StateSubmitting {
		return ErrBusy
	}
	if c.live != nil {
		c.live.Stop()
		c.live = nil
	}
	c.input = nil
	c.result = nil
	c.errMsg = ""
	c.state = StateIdle
	return nil
}

// Close releases the camera on shutdown.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != nil {
		c.live.Stop()
		c.live = nil
	}
	return nil
}

// PreviewFrame returns the current live frame for the viewfinder.
func (c *Controller) PreviewFrame() ([]byte, string, error) {
	c.mu.Lock()
	live := c.live
	active := c.state == StateCameraActive
	c.mu.Unlock()

	if !active || live == nil {
		return nil, "", ErrNoCamera
	}
	return live.Frame()
}

// Result returns the current extraction result, if any.
func (c *Controller) Result() (*extraction.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil, false
	}
	return c.result, true
}

// Snapshot is the page-facing view of the session.
type Snapshot struct {
	State     State         `json:"state"`
	Busy      bool          `json:"busy"`
	Input     *InputSummary `json:"input,omitempty"`
	HasResult bool          `json:"hasResult"`
	Error     string        `json:"error,omitempty"`
}

// InputSummary describes the pending artifact without its payload.
type InputSummary struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	SizeLabel string `json:"sizeLabel"`
	Preview   string `json:"preview,omitempty"`
}

// Snapshot returns an immutable view of the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:     c.state,
		Busy:      c.busy,
		HasResult: c.result != nil,
		Error:     c.errMsg,
	}
	if c.input != nil {
		snap.Input = &InputSummary{
			Name:      c.input.Name,
			MediaType: c.input.MediaType,
			SizeLabel: input.FormatSize(c.input.ByteSize),
			Preview:   c.input.Preview,
		}
	}
	return snap
}
