package capture

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"
)

// MJPEG streams frames from a network camera speaking
// multipart/x-mixed-replace, the protocol IP webcams and phone camera
// apps expose.
type MJPEG struct {
	url    string
	client *http.Client
}

// NewMJPEG creates a Source for the camera at url. The client has no
// overall timeout: the stream is long-lived and ends when stopped.
func NewMJPEG(url string) *MJPEG {
	return &MJPEG{
		url:    url,
		client: &http.Client{},
	}
}

// Open connects to the device and starts consuming frames. ctx bounds
// the handshake only; the stream owns its lifetime afterwards and ends
// on Stop.
func (m *MJPEG) Open(ctx context.Context) (Stream, error) {
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, m.url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating stream request: %w", err)
	}

	// Abort the connect if the caller gives up before headers arrive.
	handshake := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-handshake:
		}
	}()

	resp, err := m.client.Do(req)
	close(handshake)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to camera: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera refused stream (status %d)", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera is not an MJPEG source (content type %q)", resp.Header.Get("Content-Type"))
	}

	s := &mjpegStream{
		body:   resp.Body,
		cancel: cancel,
	}
	go s.consume(multipart.NewReader(resp.Body, params["boundary"]))
	return s, nil
}

// mjpegStream consumes the device feed and keeps only the most recent
// frame.
type mjpegStream struct {
	body   io.ReadCloser
	cancel context.CancelFunc

	mu      sync.Mutex
	frame   []byte
	readErr error
	stopped bool
}

func (s *mjpegStream) consume(parts *multipart.Reader) {
	for {
		part, err := parts.NextPart()
		if err != nil {
			s.fail(err)
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			s.fail(err)
			return
		}
		s.mu.Lock()
		s.frame = data
		s.mu.Unlock()
	}
}

func (s *mjpegStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr == nil && !s.stopped {
		s.readErr = err
	}
}

// Frame returns the most recent frame delivered by the device.
func (s *mjpegStream) Frame() ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		if s.readErr != nil {
			return nil, "", fmt.Errorf("reading stream: %w", s.readErr)
		}
		return nil, "", ErrNoFrame
	}
	return s.frame, "image/jpeg", nil
}

// Stop cancels the device request and closes the body, which unblocks
// the consume loop.
func (s *mjpegStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	return s.body.Close()
}
