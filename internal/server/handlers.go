package server

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/clipforge/transcoder/internal/job"
)

// Handlers contains the HTTP handlers for the service.
type Handlers struct {
	service   *job.TranscodeService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.TranscodeService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ProcessVideo handles POST /process requests from the delivery system.
// All payload problems are rejected with 400 before any ledger or
// filesystem interaction happens.
func (h *Handlers) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	var req PushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Message.Data)
	if err != nil {
		h.logger.Warn("failed to decode message data",
			slog.String("message_id", req.Message.MessageID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "message data is not valid base64", "INVALID_ENCODING")
		return
	}

	var notification storageNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		h.logger.Warn("failed to decode notification payload",
			slog.String("message_id", req.Message.MessageID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "notification payload is not valid JSON", "INVALID_PAYLOAD")
		return
	}
	if notification.Name == "" {
		writeError(w, http.StatusBadRequest, "notification payload is missing the object name", "MISSING_NAME")
		return
	}

	result, err := h.service.Process(r.Context(), notification.Name)

	switch result.Code {
	case job.OutcomeCompleted:
		writeJSON(w, http.StatusOK, ProcessResponse{
			Message:   "processing finished successfully",
			JobID:     result.Intent.JobID,
			OutputKey: result.Intent.OutputKey,
		})
	case job.OutcomeSkipped:
		writeJSON(w, http.StatusOK, ProcessResponse{
			Message: "skipped: source object no longer exists",
			JobID:   result.Intent.JobID,
		})
	case job.OutcomeInvalid:
		writeError(w, http.StatusBadRequest, "invalid source object key", "INVALID_SOURCE_KEY")
	case job.OutcomeConflict:
		writeError(w, http.StatusConflict, "job is already being processed", "ALREADY_PROCESSING")
	default:
		h.logger.Error("processing failed",
			slog.String("job_id", result.Intent.JobID),
			slog.String("error", errString(err)),
		)
		writeError(w, http.StatusInternalServerError, "video processing failed", "PROCESSING_FAILED")
	}
}

// errString guards against failure paths that carry no error value.
func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
