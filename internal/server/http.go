package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/dispatch"
	"github.com/muurk/signctl/internal/logging"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Handler returns the API routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/{device}/status", s.handleStatus)
	mux.HandleFunc("GET /api/{device}/configuration", s.handleConfiguration)
	mux.HandleFunc("POST /api/{device}/{operation}", s.handleOperation)
	return logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error                string `json:"error"`
	Type                 string `json:"type,omitempty"`
	RejectedOpcode       string `json:"rejectedOpcode,omitempty"`
	ApplicationErrorCode *byte  `json:"applicationErrorCode,omitempty"`
	Description          string `json:"description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDeviceError maps a device operation failure onto an HTTP status.
func writeDeviceError(w http.ResponseWriter, name string, err error) {
	de := device.Classify(err, name)
	body := errorBody{Error: de.Error(), Type: de.Type.String()}

	var reject *dispatch.RejectError
	if errors.As(err, &reject) {
		code := reject.ApplicationErrorCode
		body.RejectedOpcode = fmt.Sprintf("0x%02X", byte(reject.MI))
		body.ApplicationErrorCode = &code
		body.Description = reject.Description()
	}

	status := http.StatusBadGateway
	switch de.Type {
	case device.ErrTypeRejected:
		status = http.StatusUnprocessableEntity
	case device.ErrTypeTimeout:
		status = http.StatusGatewayTimeout
	case device.ErrTypeValidation:
		status = http.StatusBadRequest
	case device.ErrTypeNotActive:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*device.Supervisor, bool) {
	name := r.PathValue("device")
	sup, ok := s.devices.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown device %q", name))
	}
	return sup, ok
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.Summaries())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sup, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		device.Summary
		Status *device.Status `json:"status"`
	}{device.Summarize(sup), sup.Status()})
}

func (s *Server) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	sup, ok := s.lookup(w, r)
	if !ok {
		return
	}
	cfg := sup.Configuration()
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "configuration not received yet")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	sup, ok := s.lookup(w, r)
	if !ok {
		return
	}
	name := r.PathValue("operation")
	op, ok := operations[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown operation %q", name))
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	result, err := op(r.Context(), sup, dec)
	var bad *badRequest
	switch {
	case errors.As(err, &bad):
		writeError(w, http.StatusBadRequest, bad.Error())
	case err != nil:
		writeDeviceError(w, sup.Name(), err)
	case result == nil:
		writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}
