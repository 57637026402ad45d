package encounter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxAudioUpload = 10 << 20

type Handler struct {
	svc Service
	log zerolog.Logger
}

func NewHandler(svc Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: logger}
}

type CreateEncounterRequest struct {
	PatientID string `json:"patient_id"`
}

type FragmentRequest struct {
	Text string `json:"text"`
}

type SelectPatientRequest struct {
	PatientID string `json:"patient_id"`
}

// StreamEvent is one server-sent event of the audio stream endpoint.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrEncounterNotFound), errors.Is(err, ErrWriteUpNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyFragment):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotListening):
		return http.StatusConflict
	case errors.Is(err, ErrExtractionFailed), errors.Is(err, ErrTranscription):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func encounterID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid encounter ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) CreateEncounter(w http.ResponseWriter, r *http.Request) {
	var req CreateEncounterRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request")
			return
		}
	}
	e, err := h.svc.Create(r.Context(), req.PatientID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) GetEncounter(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	st, err := h.svc.State(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) DeleteEncounter(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Close(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lifecycle wraps the id-only operations that return the encounter.
func (h *Handler) lifecycle(op func(ctx context.Context, id uuid.UUID) (*Encounter, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := encounterID(w, r)
		if !ok {
			return
		}
		e, err := op(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (h *Handler) HandleFragment(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	var req FragmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	e, err := h.svc.HandleFragment(r.Context(), id, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func readAudio(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, false
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error retrieving audio file")
		return nil, false
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audio file")
		return nil, false
	}
	return buf.Bytes(), true
}

func (h *Handler) HandleAudioUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	audio, ok := readAudio(w, r)
	if !ok {
		return
	}
	text, e, err := h.svc.HandleAudio(r.Context(), id, audio)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":      text,
		"encounter": e,
	})
}

// HandleAudioUploadStream transcribes the upload and streams the transcript,
// then the reconciled state, as server-sent events.
func (h *Handler) HandleAudioUploadStream(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	audio, ok := readAudio(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(evt StreamEvent) {
		data, _ := json.Marshal(evt)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	text, e, err := h.svc.HandleAudio(r.Context(), id, audio)
	if text != "" {
		send(StreamEvent{Type: "transcript", Data: text})
	}
	if err != nil {
		send(StreamEvent{Type: "error", Data: err.Error()})
		return
	}
	st := e.State()
	send(StreamEvent{Type: "state", Data: st})
}

func (h *Handler) SelectPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	var req SelectPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	e, err := h.svc.SelectPatient(r.Context(), id, req.PatientID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	wu, err := h.svc.Finish(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wu)
}

func (h *Handler) GetWriteUp(w http.ResponseWriter, r *http.Request) {
	id, ok := encounterID(w, r)
	if !ok {
		return
	}
	wu, err := h.svc.WriteUp(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wu)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	rec := h.svc.Patient(chi.URLParam(r, "patientID"))
	writeJSON(w, http.StatusOK, rec)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/encounters", h.CreateEncounter)
	r.Route("/encounters/{id}", func(r chi.Router) {
		r.Get("/", h.GetEncounter)
		r.Delete("/", h.DeleteEncounter)
		r.Get("/state", h.GetState)
		r.Post("/start", h.lifecycle(h.svc.Start))
		r.Post("/stop", h.lifecycle(h.svc.Stop))
		r.Post("/reset", h.lifecycle(h.svc.Reset))
		r.Post("/reset-diagnosis", h.lifecycle(h.svc.ResetDiagnosis))
		r.Post("/fragments", h.HandleFragment)
		r.Post("/audio", h.HandleAudioUpload)
		r.Post("/audio/stream", h.HandleAudioUploadStream)
		r.Put("/patient", h.SelectPatient)
		r.Post("/writeup", h.Finish)
		r.Get("/writeup", h.GetWriteUp)
	})
	r.Get("/patients/{patientID}", h.GetPatient)
}
