package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/v0xg/deskreplay/internal/playback"
	"github.com/v0xg/deskreplay/internal/sequence"
)

const maxSequenceBytes = 16 << 20

// StartRequest is the body of POST /api/playback/start. Zero fields take the
// server defaults.
type StartRequest struct {
	Speed float64 `json:"speed"`
	Loops int     `json:"loops"`
}

type pauseResponse struct {
	Paused bool `json:"paused"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Load accepts a sequence document as the request body
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSequenceBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return
	}
	seq, err := sequence.Parse(data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := h.ctl.Load(seq); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	req := StartRequest{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
	}
	if req.Speed == 0 {
		req.Speed = h.opts.DefaultSpeed
	}
	if req.Loops == 0 {
		req.Loops = h.opts.DefaultLoops
	}

	if err := h.ctl.Start(r.Context(), req.Speed, req.Loops); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.ctl.Status())
}

func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Stop(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *Handler) PauseOrResume(w http.ResponseWriter, r *http.Request) {
	paused, err := h.ctl.PauseOrResume()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, pauseResponse{Paused: paused})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

// Stats returns the statistics of the last finished run
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.ctl.LastStatistics()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no finished run yet"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// statusFor maps control-surface errors onto HTTP status codes
func statusFor(err error) int {
	var verr *sequence.ValidationError
	var serr *json.SyntaxError
	var terr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, playback.ErrAlreadyPlaying),
		errors.Is(err, playback.ErrNotPlaying),
		errors.Is(err, playback.ErrNoSequence),
		errors.Is(err, playback.ErrRunInFlight):
		return http.StatusConflict
	case errors.Is(err, playback.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.As(err, &verr), errors.Is(err, sequence.ErrEmptySequence):
		return http.StatusUnprocessableEntity
	case errors.As(err, &serr), errors.As(err, &terr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
