package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/alarmd/internal/ringing"
)

type ringingController interface {
	Active() (ringing.Session, bool)
	Snooze(ctx context.Context) (time.Time, error)
}

// RingingHandler exposes the active ringing session over HTTP. There is no
// dismissal endpoint: alarms are dismissed by plugging in a charger.
type RingingHandler struct {
	controller ringingController
	responder  responder
}

func NewRingingHandler(controller ringingController, logger *slog.Logger) *RingingHandler {
	return &RingingHandler{controller: controller, responder: newResponder(logger)}
}

// Status reports whether an alarm is currently ringing.
func (h *RingingHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.controller == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sess, ok := h.controller.Active()
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusOK, ringingStatusResponse{Ringing: false})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, ringingStatusResponse{
		Ringing: true,
		Session: &sessionDTO{
			Token:   sess.Token,
			AlarmID: sess.AlarmID,
			FiredAt: sess.FiredAt,
			State:   string(sess.State),
		},
	})
}

// Snooze silences the ringing session for the addressed alarm and re-arms it
// a few minutes out. Snoozing an alarm that is not ringing is a conflict.
func (h *RingingHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.controller == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	sess, active := h.controller.Active()
	if !active || sess.AlarmID != alarmID {
		h.responder.handleServiceError(r.Context(), w, ringing.ErrNoActiveSession)
		return
	}

	at, err := h.controller.Snooze(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.responder.logger, "ringing", "snooze").InfoContext(r.Context(), "alarm snoozed", "alarm_id", alarmID, "until", at)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, snoozeResponse{SnoozedUntil: at})
}

type ringingStatusResponse struct {
	Ringing bool        `json:"ringing"`
	Session *sessionDTO `json:"session,omitempty"`
}

type sessionDTO struct {
	Token   string    `json:"token"`
	AlarmID int64     `json:"alarm_id"`
	FiredAt time.Time `json:"fired_at"`
	State   string    `json:"state"`
}

type snoozeResponse struct {
	SnoozedUntil time.Time `json:"snoozed_until"`
}
