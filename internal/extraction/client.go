package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcanales/recibo-capture/internal/input"
)

// uploadFieldName is the multipart field the service reads the document
// from. Fixed by the service contract.
const uploadFieldName = "file"

// genericFailureMessage is shown when the service gives no usable detail.
const genericFailureMessage = "Error al procesar el documento"

// submitTimeout bounds one round-trip. The service runs an OCR and LLM
// pass per document, which is slow on large scans.
const submitTimeout = 120 * time.Second

// TransportError reports a failed submission round-trip: a network-level
// failure, a non-2xx status, or an error envelope inside a 2xx body.
// Message is operator-facing; Cause keeps the technical detail for logs.
type TransportError struct {
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("submitting document: %v", e.Cause)
	}
	return fmt.Sprintf("extraction service rejected the document: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// FailureMessage returns the operator-facing message for a submission
// error.
func FailureMessage(err error) string {
	var te *TransportError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return genericFailureMessage
}

// envelope mirrors the service's response shape. Failure responses reuse
// it with status and message set, sometimes inside a 200.
type envelope struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Data    *Result `json:"data"`
}

// Client submits captured inputs to the extraction service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: submitTimeout,
		},
	}
}

// Submit uploads the input as a single-part multipart form and decodes
// the service's envelope. Failures come back as *TransportError:
// transport-level problems are checked first, then the embedded error
// marker some 2xx bodies carry.
func (c *Client) Submit(in *input.CapturedInput) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	blob, err := in.Bytes()
	if err != nil {
		return nil, fmt.Errorf("decoding input payload: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadFieldName, in.Name)
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(blob); err != nil {
		return nil, fmt.Errorf("writing upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing upload form: %w", err)
	}

	url := c.baseURL + "/documents/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	reqID := uuid.New().String()
	slog.Info("submitting document",
		"req_id", reqID,
		"name", in.Name,
		"media_type", in.MediaType,
		"bytes", len(blob),
	)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("submission transport failure", "req_id", reqID, "error", err)
		return nil, &TransportError{Message: genericFailureMessage, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Message: genericFailureMessage, Cause: fmt.Errorf("reading response: %w", err)}
	}

	slog.Info("submission answered",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Transport-level failure wins over anything in the body.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Message: serverMessage(raw),
			Cause:   fmt.Errorf("service returned status %d", resp.StatusCode),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &TransportError{Message: genericFailureMessage, Cause: fmt.Errorf("decoding response: %w", err)}
	}

	// Some failures arrive inside a 200 with an embedded marker.
	if env.Status == "error" {
		msg := env.Message
		if msg == "" {
			msg = genericFailureMessage
		}
		return nil, &TransportError{Message: msg}
	}
	if env.Data == nil {
		return nil, &TransportError{Message: genericFailureMessage, Cause: errors.New("response has no data")}
	}

	return env.Data, nil
}

// serverMessage pulls the service's message out of a failure body,
// falling back to the generic text for empty or non-JSON bodies.
func serverMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return genericFailureMessage
}
