package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
	"github.com/dajanosw/Event-Manager-Bot/internal/parse"
	"github.com/dajanosw/Event-Manager-Bot/internal/transport/channel"
	"github.com/dajanosw/Event-Manager-Bot/internal/validate"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Emitter hands accepted commands to the dispatch pipeline.
type Emitter interface {
	Emit(ctx context.Context, cmd domain.Command) error
}

type Store interface {
	ListRecentAttempts(ctx context.Context, channelID string, limit int) ([]domain.CreationAttempt, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	emitter   Emitter
	store     Store
	extractor *parse.Extractor
	validator *validate.Validator
	db        HealthChecker
}

func NewHandler(emitter Emitter, store Store, extractor *parse.Extractor, validator *validate.Validator) *Handler {
	return &Handler{
		emitter:   emitter,
		store:     store,
		extractor: extractor,
		validator: validator,
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/v1/commands" && r.Method == http.MethodPost:
		h.submitCommand(w, r)

	case path == "/v1/commands/validate" && r.Method == http.MethodPost:
		h.validateCommand(w, r)

	case strings.HasPrefix(path, "/v1/channels/") && strings.HasSuffix(path, "/attempts") && r.Method == http.MethodGet:
		h.listAttempts(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	// Check if verbose mode requested via ?verbose=true
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	// Check database connectivity with timeout
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) submitCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommandRequest(w, r)
	if !ok {
		return
	}

	cmd := domain.Command{
		ID:         uuid.New(),
		ChannelID:  req.ChannelID,
		RawText:    req.Text,
		Mode:       domain.Mode(req.Mode),
		ReceivedAt: time.Now().UTC(),
	}

	if err := h.emitter.Emit(r.Context(), cmd); err != nil {
		if errors.Is(err, channel.ErrBufferFull) {
			writeError(w, http.StatusServiceUnavailable, "command queue is full, try again later")
			return
		}
		log.Printf("api: emit command error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to queue command")
		return
	}

	writeJSON(w, http.StatusAccepted, CommandResponse{
		ID:     cmd.ID.String(),
		Status: "queued",
	})
}

// validateCommand runs extraction and validation without dispatching.
// Lets operators dry-run an event line before posting it for real.
func (h *Handler) validateCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommandRequest(w, r)
	if !ok {
		return
	}

	mode := domain.Mode(req.Mode)

	spec, err := h.extractor.Extract(req.Text, mode)
	if err == nil {
		spec, err = h.validator.Validate(spec)
	}

	if err != nil {
		rej, isRej := domain.AsRejection(err)
		if !isRej {
			log.Printf("api: validate command error: %v", err)
			writeError(w, http.StatusInternalServerError, "validation failed")
			return
		}
		writeJSON(w, http.StatusOK, ValidateResponse{
			Valid: false,
			Rejection: &RejectionResponse{
				Reason: string(rej.Reason),
				Field:  rej.Field,
				Value:  rej.Value,
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid: true,
		Spec:  specResponse(spec),
	})
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	// Extract channel ID from path: /v1/channels/{id}/attempts
	path := r.URL.Path
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[0] != "v1" || parts[1] != "channels" || parts[3] != "attempts" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	channelID := parts[2]
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "channel id is required")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attempts, err := h.store.ListRecentAttempts(r.Context(), channelID, limit)
	if err != nil {
		log.Printf("api: list attempts error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}

	resp := ListAttemptsResponse{Attempts: make([]AttemptResponse, len(attempts))}
	for i, attempt := range attempts {
		resp.Attempts[i] = AttemptResponse{
			ID:             attempt.ID.String(),
			CommandID:      attempt.CommandID.String(),
			ChannelID:      attempt.ChannelID,
			EventName:      attempt.EventName,
			StartsAt:       formatTime(attempt.Start),
			EndsAt:         formatTime(attempt.End),
			Timezone:       attempt.Timezone,
			RecurrenceKind: string(attempt.RecurrenceKind),
			Status:         string(attempt.Status),
			Attempts:       attempt.Attempts,
			Error:          attempt.Error,
			CreatedAt:      formatTime(attempt.CreatedAt),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeCommandRequest reads and validates the shared command request body.
func decodeCommandRequest(w http.ResponseWriter, r *http.Request) (SubmitCommandRequest, bool) {
	// Limit request body size to prevent DoS via large payloads
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req SubmitCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return req, false
	}

	if err := validateSubmitCommand(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}

	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parseLimit extracts and validates the limit query parameter.
func parseLimit(r *http.Request) (int, error) {
	limit := DefaultLimit

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, strconv.ErrRange
		}
		if n > MaxLimit {
			return 0, &limitExceededError{max: MaxLimit}
		}
		if n > 0 {
			limit = n
		}
	}

	return limit, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
