package input

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"golang.org/x/image/draw"
)

const (
	previewMaxDim  = 1024
	previewQuality = 80
)

// previewFor builds a browser-renderable preview of the payload. Best
// effort: any failure degrades to an empty preview and the page falls
// back to a plain file card.
func previewFor(data []byte, mediaType string) string {
	var img image.Image
	var err error
	switch {
	case mediaType == "application/pdf":
		img, err = renderPDFPage(data)
	case heicPayload(data, mediaType):
		img, err = heic.Decode(bytes.NewReader(data))
	case strings.HasPrefix(mediaType, "image/"):
		if cfg, _, cerr := image.DecodeConfig(bytes.NewReader(data)); cerr == nil &&
			cfg.Width <= previewMaxDim && cfg.Height <= previewMaxDim {
			// Small enough to show as-is.
			return dataURI(mediaType, data)
		}
		img, _, err = image.Decode(bytes.NewReader(data))
	default:
		return ""
	}
	if err != nil {
		slog.Debug("preview skipped", "media_type", mediaType, "error", err)
		return ""
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, shrinkToFit(img, previewMaxDim), &jpeg.Options{Quality: previewQuality}); err != nil {
		slog.Debug("preview encode failed", "error", err)
		return ""
	}
	return dataURI("image/jpeg", buf.Bytes())
}

// renderPDFPage rasterizes the first page of the document.
func renderPDFPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// heicPayload reports whether the payload is a HEIC/HEIF container,
// which the standard image package cannot decode. Checks the declared
// media type and the ftyp box brands.
func heicPayload(data []byte, mediaType string) bool {
	if strings.Contains(mediaType, "heic") || strings.Contains(mediaType, "heif") {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// shrinkToFit scales src down so neither side exceeds maxDim, keeping
// aspect ratio. Images already within bounds pass through untouched.
func shrinkToFit(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}
	ratio := float64(maxDim) / float64(w)
	if h > w {
		ratio = float64(maxDim) / float64(h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*ratio), int(float64(h)*ratio)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
