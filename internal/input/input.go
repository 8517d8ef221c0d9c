// Package input normalizes every acquisition path (picked files, direct
// uploads, camera frames) into the single pending artifact shape the
// rest of the app works with.
package input

import (
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FrameName is the filename given to camera captures regardless of the
// device behind them.
const FrameName = "capture.jpg"

// CapturedInput is the one pending artifact awaiting submission. The
// payload travels as a base64 data URI so the page can display it
// directly and the submission client can rebuild the original bytes.
type CapturedInput struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	ByteSize  int64  `json:"byteSize"`
	Payload   string `json:"payload"`
	Preview   string `json:"preview,omitempty"`
}

// FromReader normalizes an incoming file stream. The read is all or
// nothing: an error yields no partial input.
func FromReader(r io.Reader, name, mediaType string) (*CapturedInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	mediaType = normalizeMediaType(name, mediaType)
	return &CapturedInput{
		Name:      name,
		MediaType: mediaType,
		ByteSize:  int64(len(data)),
		Payload:   dataURI(mediaType, data),
		Preview:   previewFor(data, mediaType),
	}, nil
}

// FromFile normalizes a file picked from disk. The media type comes from
// the extension, as a browser would report it.
func FromFile(path string) (*CapturedInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return FromReader(f, filepath.Base(path), "")
}

// FromCapturedFrame normalizes a frozen camera frame. Frames are always
// JPEG and always present as capture.jpg.
func FromCapturedFrame(frame []byte) (*CapturedInput, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	uri := dataURI("image/jpeg", frame)
	return &CapturedInput{
		Name:      FrameName,
		MediaType: "image/jpeg",
		ByteSize:  int64(len(frame)),
		Payload:   uri,
		Preview:   uri,
	}, nil
}

// Bytes rebuilds the original binary payload from the data URI.
func (ci *CapturedInput) Bytes() ([]byte, error) {
	marker := ";base64,"
	idx := strings.Index(ci.Payload, marker)
	if !strings.HasPrefix(ci.Payload, "data:") || idx < 0 {
		return nil, fmt.Errorf("payload is not a base64 data URI")
	}
	data, err := base64.StdEncoding.DecodeString(ci.Payload[idx+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return data, nil
}

// dataURI builds the inline representation of a payload.
func dataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// normalizeMediaType fills in a missing or generic media type from the
// filename extension, mirroring what browsers report for the same files.
func normalizeMediaType(name, mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// sizeUnits stop at MB; larger byte counts still render in MB.
var sizeUnits = []string{"Bytes", "KB", "MB"}

// FormatSize renders a byte count for the operator: at most two
// decimals, trailing zeros trimmed, 1024-based units.
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 KB"
	}
	exp := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if exp > len(sizeUnits)-1 {
		exp = len(sizeUnits) - 1
	}
	if exp < 0 {
		exp = 0
	}
	value := float64(bytes) / math.Pow(1024, float64(exp))
	s := strconv.FormatFloat(value, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s + " " + sizeUnits[exp]
}
