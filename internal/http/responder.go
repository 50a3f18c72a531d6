package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/alarmd/internal/application"
	"github.com/example/alarmd/internal/ringing"
)

var (
	errBadRequestBody = errors.New("invalid request body")
	errInvalidAlarmID = errors.New("invalid alarm id")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed",
			"status", status,
			"error", err,
			"error_kind", application.ErrorKind(err))
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)

	switch {
	case errors.Is(err, application.ErrNotFound):
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "error", err, "error_kind", kind)
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "alarm not found"})
	case errors.Is(err, application.ErrTimerUnavailable):
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "error", err, "error_kind", kind)
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "TIMER_UNAVAILABLE",
			Message:   "the alarm was saved but could not be scheduled; it will be re-armed on restart",
		})
	case errors.Is(err, ringing.ErrNoActiveSession):
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "error", err, "error_kind", kind)
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "no alarm is ringing"})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.loggerFor(ctx).WarnContext(ctx, "request rejected", "error", err, "error_kind", kind)
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "validation failed",
				Errors:  vErr.FieldErrors,
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err, "error_kind", kind)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
