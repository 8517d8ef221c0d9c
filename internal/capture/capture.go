// Package capture owns camera access: opening a live stream, exposing
// its frames to a preview surface, and freezing one frame as the
// captured artifact.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"
)

// captureQuality matches the JPEG quality cameras and phone apps
// commonly use for stills.
const captureQuality = 92

// activateTimeout bounds the camera handshake.
const activateTimeout = 10 * time.Second

// ErrNoFrame reports a live stream that has not delivered a frame yet.
var ErrNoFrame = errors.New("no frame available yet")

// AccessError reports a camera that could not be opened: permission
// denied, device missing, or device unreachable.
type AccessError struct {
	Cause error
}

func (e *AccessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("camera access: %v", e.Cause)
	}
	return "camera access denied"
}

func (e *AccessError) Unwrap() error {
	return e.Cause
}

// EncodeError reports a frame that could not be frozen into a JPEG.
type EncodeError struct {
	Cause error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoding frame: %v", e.Cause)
}

func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// Source opens a live view of a camera device.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live camera feed delivering frames until stopped.
type Stream interface {
	// Frame returns the most recent frame and its media type.
	Frame() ([]byte, string, error)
	// Stop terminates every track of the feed. Safe to call twice.
	Stop() error
}

// Adapter owns camera access for one operator session. The controller
// above it guarantees at most one live Session at a time.
type Adapter struct {
	source Source
}

// NewAdapter creates an Adapter over source. A nil source means no
// camera is configured; activation then fails with an AccessError.
func NewAdapter(source Source) *Adapter {
	return &Adapter{source: source}
}

// Activate opens the camera and starts streaming. No partial session:
// either a live Session comes back or the device state is untouched.
func (a *Adapter) Activate() (*Session, error) {
	if a.source == nil {
		return nil, &AccessError{Cause: errors.New("no camera source configured")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), activateTimeout)
	defer cancel()

	stream, err := a.source.Open(ctx)
	if err != nil {
		return nil, &AccessError{Cause: err}
	}
	return &Session{stream: stream}, nil
}

// Capture freezes the current frame as a JPEG and ends the session in
// the same call. The stream is stopped on every path, so callers never
// observe a frame with the camera still live or a stopped camera
// without a capture outcome.
func (a *Adapter) Capture(session *Session) ([]byte, error) {
	defer session.Stop()

	data, mediaType, err := session.Frame()
	if err != nil {
		return nil, &EncodeError{Cause: err}
	}
	frozen, err := encodeJPEG(data, mediaType)
	if err != nil {
		return nil, &EncodeError{Cause: err}
	}
	return frozen, nil
}

// Session is a live camera stream awaiting a single capture.
type Session struct {
	stream Stream

	mu   sync.Mutex
	done bool
}

// Frame exposes the live feed for a preview surface.
func (s *Session) Frame() ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, "", errors.New("session already ended")
	}
	return s.stream.Frame()
}

// Stop tears the stream down. Idempotent; every abandonment path calls
// it.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	if err := s.stream.Stop(); err != nil {
		slog.Warn("stopping camera stream", "error", err)
	}
}

// Active reports whether the stream is still live.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.done
}

// encodeJPEG decodes the raw frame and re-encodes it as a JPEG at
// native resolution, validating the frame in the process.
func encodeJPEG(data []byte, mediaType string) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s frame: %w", mediaType, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: captureQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
