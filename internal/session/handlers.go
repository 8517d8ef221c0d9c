package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rcanales/recibo-capture/internal/input"
	"github.com/rcanales/recibo-capture/internal/render"
)

// corsError writes a plain error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes a JSON response with CORS headers set
func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeJSONError writes a JSON error payload
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleSession returns the current session snapshot
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleActivateCamera opens the camera and starts the live stream
func (s *Server) handleActivateCamera(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.ActivateCamera(); err != nil {
		if errors.Is(err, ErrBusy) {
			writeJSONError(w, http.StatusConflict, "Operación en curso")
			return
		}
		// Access failure: the snapshot already carries the surfaced
		// message and the state is unchanged.
		writeJSON(w, http.StatusServiceUnavailable, s.controller.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleCameraPreview streams the current live frame to the viewfinder
func (s *Server) handleCameraPreview(w http.ResponseWriter, r *http.Request) {
	frame, mediaType, err := s.controller.PreviewFrame()
	if err != nil {
		if errors.Is(err, ErrNoCamera) {
			corsError(w, "Camera not active", http.StatusConflict)
			return
		}
		// Stream warming up or device hiccup; the page just retries.
		corsError(w, "No frame available", http.StatusServiceUnavailable)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

// handleCaptureFrame freezes the live frame into the pending input
func (s *Server) handleCaptureFrame(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.CaptureFrame(); err != nil {
		switch {
		case errors.Is(err, ErrBusy):
			writeJSONError(w, http.StatusConflict, "Operación en curso")
		case errors.Is(err, ErrNoCamera):
			writeJSONError(w, http.StatusConflict, "La cámara no está activa")
		default:
			// Encode failures are silent for the operator: a clean
			// snapshot comes back and no input appears.
			writeJSON(w, http.StatusOK, s.controller.Snapshot())
		}
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handlePickFile opens the native file dialog and installs the choice
func (s *Server) handlePickFile(w http.ResponseWriter, r *http.Request) {
	path, err := s.picker.PickFile()
	if err != nil {
		if errors.Is(err, ErrPickCanceled) {
			writeJSON(w, http.StatusOK, map[string]bool{"canceled": true})
			return
		}
		slog.Error("Error opening file dialog", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "No se pudo abrir el selector de archivos")
		return
	}

	in, err := input.FromFile(path)
	if err != nil {
		slog.Error("Error reading picked file", "path", path, "error", err)
		writeJSONError(w, http.StatusBadRequest, "No se pudo leer el archivo")
		return
	}
	if err := s.controller.SetInput(in); err != nil {
		writeJSONError(w, http.StatusConflict, "Operación en curso")
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleUploadInput accepts a multipart upload as the picker fallback
func (s *Server) handleUploadInput(w http.ResponseWriter, r *http.Request) {
	// 50MB covers high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeJSONError(w, http.StatusBadRequest, "No se pudo leer el formulario")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Ningún archivo seleccionado")
		return
	}
	defer f.Close()

	in, err := input.FromReader(f, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		slog.Error("Error reading uploaded file", "filename", header.Filename, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "No se pudo leer el archivo")
		return
	}
	if err := s.controller.SetInput(in); err != nil {
		writeJSONError(w, http.StatusConflict, "Operación en curso")
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleSubmit sends the pending input to the extraction service
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	err := s.controller.Submit()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.controller.Snapshot())
	case errors.Is(err, ErrBusy):
		// Double trigger: ignored, no second request was made.
		writeJSON(w, http.StatusOK, s.controller.Snapshot())
	case errors.Is(err, ErrNoInput):
		writeJSONError(w, http.StatusConflict, "No hay documento para enviar")
	default:
		// Submission failed; the snapshot carries the surfaced message
		// and the preserved input.
		writeJSON(w, http.StatusOK, s.controller.Snapshot())
	}
}

// handleResult returns the display projection of the current result
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.controller.Result()
	if !ok {
		corsError(w, "No result", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, render.Project(res))
}

// handleRawResult returns the stored result itself. The copy path
// serializes this object, never the display projection.
func (s *Server) handleRawResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.controller.Result()
	if !ok {
		corsError(w, "No result", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSendToERP acknowledges the ERP handoff stub
func (s *Server) handleSendToERP(w http.ResponseWriter, r *http.Request) {
	ack, err := s.controller.SendToERP()
	if err != nil {
		writeJSONError(w, http.StatusConflict, "No hay resultado para enviar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": ack})
}

// handleReset returns the session to idle
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Reset(); err != nil {
		writeJSONError(w, http.StatusConflict, "Operación en curso")
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
