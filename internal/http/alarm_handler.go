package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/alarmd/internal/application"
)

type alarmService interface {
	SaveAlarm(ctx context.Context, params application.SaveAlarmParams) (application.Alarm, error)
	ToggleAlarm(ctx context.Context, alarmID int64, enabled bool) (application.Alarm, error)
	DeleteAlarm(ctx context.Context, alarmID int64) error
	GetAlarm(ctx context.Context, alarmID int64) (application.Alarm, error)
	ListAlarms(ctx context.Context) ([]application.Alarm, error)
	NextUpcoming(ctx context.Context) (application.UpcomingAlarm, bool, error)
}

// AlarmHandler exposes alarm CRUD and scheduling queries over HTTP.
type AlarmHandler struct {
	service   alarmService
	responder responder
}

func NewAlarmHandler(service alarmService, logger *slog.Logger) *AlarmHandler {
	return &AlarmHandler{service: service, responder: newResponder(logger)}
}

func (h *AlarmHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req alarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	alarm, err := h.service.SaveAlarm(r.Context(), application.SaveAlarmParams{Input: req.toInput()})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toAlarmDTO(alarm))
}

func (h *AlarmHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	var req alarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	alarm, err := h.service.SaveAlarm(r.Context(), application.SaveAlarmParams{
		AlarmID: alarmID,
		Input:   req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAlarmDTO(alarm))
}

func (h *AlarmHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	alarm, err := h.service.GetAlarm(r.Context(), alarmID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAlarmDTO(alarm))
}

func (h *AlarmHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	if err := h.service.DeleteAlarm(r.Context(), alarmID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AlarmHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarms, err := h.service.ListAlarms(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]alarmDTO, 0, len(alarms))
	for _, alarm := range alarms {
		dtos = append(dtos, toAlarmDTO(alarm))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listResponse{Alarms: dtos})
}

func (h *AlarmHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	alarm, err := h.service.ToggleAlarm(r.Context(), alarmID, req.Enabled)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.responder.logger, "alarm", "toggle").InfoContext(r.Context(), "alarm toggled", "alarm_id", alarmID, "enabled", req.Enabled)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAlarmDTO(alarm))
}

func (h *AlarmHandler) Next(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	upcoming, ok, err := h.service.NextUpcoming(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, nextResponse{
		Alarm:        toAlarmDTO(upcoming.Alarm),
		At:           upcoming.At,
		UntilSeconds: int64(upcoming.Until.Seconds()),
	})
}

type alarmRequest struct {
	Hour          int    `json:"hour"`
	Minute        int    `json:"minute"`
	RepeatDays    []int  `json:"repeat_days"`
	Enabled       bool   `json:"enabled"`
	Sound         string `json:"sound"`
	Vibration     bool   `json:"vibration"`
	SnoozeMinutes int    `json:"snooze_minutes"`
	Label         string `json:"label"`
}

func (req alarmRequest) toInput() application.AlarmInput {
	return application.AlarmInput{
		Hour:          req.Hour,
		Minute:        req.Minute,
		RepeatDays:    req.RepeatDays,
		Enabled:       req.Enabled,
		Sound:         req.Sound,
		Vibration:     req.Vibration,
		SnoozeMinutes: req.SnoozeMinutes,
		Label:         req.Label,
	}
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type alarmDTO struct {
	ID            int64      `json:"id"`
	Hour          int        `json:"hour"`
	Minute        int        `json:"minute"`
	RepeatDays    []int      `json:"repeat_days"`
	Enabled       bool       `json:"enabled"`
	Sound         string     `json:"sound"`
	Vibration     bool       `json:"vibration"`
	SnoozeMinutes int        `json:"snooze_minutes"`
	Label         string     `json:"label,omitempty"`
	NextTrigger   *time.Time `json:"next_trigger,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toAlarmDTO(alarm application.Alarm) alarmDTO {
	days := alarm.RepeatDays
	if days == nil {
		days = []int{}
	}
	return alarmDTO{
		ID:            alarm.ID,
		Hour:          alarm.Hour,
		Minute:        alarm.Minute,
		RepeatDays:    days,
		Enabled:       alarm.Enabled,
		Sound:         alarm.Sound,
		Vibration:     alarm.Vibration,
		SnoozeMinutes: alarm.SnoozeMinutes,
		Label:         alarm.Label,
		NextTrigger:   alarm.NextTrigger,
		CreatedAt:     alarm.CreatedAt,
		UpdatedAt:     alarm.UpdatedAt,
	}
}

type listResponse struct {
	Alarms []alarmDTO `json:"alarms"`
}

type nextResponse struct {
	Alarm        alarmDTO  `json:"alarm"`
	At           time.Time `json:"at"`
	UntilSeconds int64     `json:"until_seconds"`
}
