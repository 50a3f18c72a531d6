package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/alarmd/internal/persistence"
)

const eventsHeartbeatInterval = 30 * time.Second

// ChangeSource is the subset of the store change feed the SSE handler needs.
type ChangeSource interface {
	Subscribe() chan persistence.Change
	Unsubscribe(ch chan persistence.Change)
}

// EventsHandler streams alarm store mutations as server-sent events so UIs
// can react to changes without polling.
type EventsHandler struct {
	feed   ChangeSource
	logger *slog.Logger
}

func NewEventsHandler(feed ChangeSource, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{feed: feed, logger: defaultLogger(logger)}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.feed == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := h.feed.Subscribe()
	defer h.feed.Unsubscribe(ch)

	logger := handlerLogger(r.Context(), h.logger, "events", "stream")
	logger.InfoContext(r.Context(), "event stream opened")

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(eventsHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.InfoContext(r.Context(), "event stream closed")
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case change, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(toChangeEvent(change))
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to encode change event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

type changeEvent struct {
	Kind    string           `json:"kind"`
	AlarmID int64            `json:"alarm_id"`
	Alarm   *changeAlarmBody `json:"alarm,omitempty"`
	At      time.Time        `json:"at"`
}

type changeAlarmBody struct {
	Hour          int    `json:"hour"`
	Minute        int    `json:"minute"`
	RepeatDays    []int  `json:"repeat_days"`
	Enabled       bool   `json:"enabled"`
	Sound         string `json:"sound"`
	Vibration     bool   `json:"vibration"`
	SnoozeMinutes int    `json:"snooze_minutes"`
	Label         string `json:"label,omitempty"`
}

func toChangeEvent(change persistence.Change) changeEvent {
	event := changeEvent{
		Kind:    string(change.Kind),
		AlarmID: change.AlarmID,
		At:      change.At,
	}
	if change.Alarm != nil {
		days := change.Alarm.RepeatDays
		if days == nil {
			days = []int{}
		}
		event.Alarm = &changeAlarmBody{
			Hour:          change.Alarm.Hour,
			Minute:        change.Alarm.Minute,
			RepeatDays:    days,
			Enabled:       change.Alarm.Enabled,
			Sound:         change.Alarm.Sound,
			Vibration:     change.Alarm.Vibration,
			SnoozeMinutes: change.Alarm.SnoozeMinutes,
			Label:         change.Alarm.Label,
		}
	}
	return event
}
