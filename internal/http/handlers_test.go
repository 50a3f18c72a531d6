package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/alarmd/internal/application"
	"github.com/example/alarmd/internal/persistence"
	"github.com/example/alarmd/internal/ringing"
)

type alarmServiceStub struct {
	saveFn   func(params application.SaveAlarmParams) (application.Alarm, error)
	toggleFn func(alarmID int64, enabled bool) (application.Alarm, error)
	deleteFn func(alarmID int64) error
	getFn    func(alarmID int64) (application.Alarm, error)
	listFn   func() ([]application.Alarm, error)
	nextFn   func() (application.UpcomingAlarm, bool, error)
}

func (s *alarmServiceStub) SaveAlarm(ctx context.Context, params application.SaveAlarmParams) (application.Alarm, error) {
	if s.saveFn == nil {
		return application.Alarm{}, fmt.Errorf("unexpected SaveAlarm call")
	}
	return s.saveFn(params)
}

func (s *alarmServiceStub) ToggleAlarm(ctx context.Context, alarmID int64, enabled bool) (application.Alarm, error) {
	if s.toggleFn == nil {
		return application.Alarm{}, fmt.Errorf("unexpected ToggleAlarm call")
	}
	return s.toggleFn(alarmID, enabled)
}

func (s *alarmServiceStub) DeleteAlarm(ctx context.Context, alarmID int64) error {
	if s.deleteFn == nil {
		return fmt.Errorf("unexpected DeleteAlarm call")
	}
	return s.deleteFn(alarmID)
}

func (s *alarmServiceStub) GetAlarm(ctx context.Context, alarmID int64) (application.Alarm, error) {
	if s.getFn == nil {
		return application.Alarm{}, fmt.Errorf("unexpected GetAlarm call")
	}
	return s.getFn(alarmID)
}

func (s *alarmServiceStub) ListAlarms(ctx context.Context) ([]application.Alarm, error) {
	if s.listFn == nil {
		return nil, fmt.Errorf("unexpected ListAlarms call")
	}
	return s.listFn()
}

func (s *alarmServiceStub) NextUpcoming(ctx context.Context) (application.UpcomingAlarm, bool, error) {
	if s.nextFn == nil {
		return application.UpcomingAlarm{}, false, fmt.Errorf("unexpected NextUpcoming call")
	}
	return s.nextFn()
}

type ringingControllerStub struct {
	session  ringing.Session
	active   bool
	snoozeAt time.Time
	snoozeFn func() (time.Time, error)
}

func (s *ringingControllerStub) Active() (ringing.Session, bool) {
	return s.session, s.active
}

func (s *ringingControllerStub) Snooze(ctx context.Context) (time.Time, error) {
	if s.snoozeFn != nil {
		return s.snoozeFn()
	}
	return s.snoozeAt, nil
}

func newTestRouter(service alarmService, controller ringingController, feed ChangeSource) http.Handler {
	cfg := RouterConfig{}
	if service != nil {
		cfg.Alarms = NewAlarmHandler(service, nil)
	}
	if controller != nil {
		cfg.Ringing = NewRingingHandler(controller, nil)
	}
	if feed != nil {
		cfg.Events = NewEventsHandler(feed, nil)
	}
	return NewRouter(cfg)
}

func sampleAlarm() application.Alarm {
	next := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)
	return application.Alarm{
		ID:            1,
		Hour:          8,
		Minute:        0,
		RepeatDays:    []int{1, 3, 5},
		Enabled:       true,
		Sound:         "default",
		Vibration:     true,
		SnoozeMinutes: 5,
		Label:         "work",
		NextTrigger:   &next,
		CreatedAt:     next.Add(-24 * time.Hour),
		UpdatedAt:     next.Add(-24 * time.Hour),
	}
}

func TestAlarmHandler_Create(t *testing.T) {
	t.Parallel()

	t.Run("created", func(t *testing.T) {
		t.Parallel()

		var goParams application.SaveAlarmParams
		service := &alarmServiceStub{saveFn: func(params application.SaveAlarmParams) (application.Alarm, error) {
			goParams = params
			return sampleAlarm(), nil
		}}
		router := newTestRouter(service, nil, nil)

		body := bytes.NewBufferString(`{"hour":8,"minute":0,"repeat_days":[1,3,5],"enabled":true,"vibration":true,"label":"work"}`)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alarms", body))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if goParams.AlarmID != 0 || goParams.Input.Hour != 8 || len(goParams.Input.RepeatDays) != 3 {
			t.Fatalf("unexpected params passed to service: %+v", goParams)
		}

		var dto alarmDTO
		if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if dto.ID != 1 || dto.NextTrigger == nil {
			t.Fatalf("unexpected response body: %+v", dto)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&alarmServiceStub{}, nil, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alarms", strings.NewReader("{")))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{"hour": "hour must be between 0 and 23"}}
		service := &alarmServiceStub{saveFn: func(application.SaveAlarmParams) (application.Alarm, error) {
			return application.Alarm{}, vErr
		}}
		router := newTestRouter(service, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alarms", strings.NewReader(`{"hour":24}`)))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Errors["hour"] == "" {
			t.Fatalf("expected field error for hour, got %+v", resp)
		}
	})
}

func TestAlarmHandler_GetUpdateDelete(t *testing.T) {
	t.Parallel()

	t.Run("get", func(t *testing.T) {
		t.Parallel()

		service := &alarmServiceStub{getFn: func(alarmID int64) (application.Alarm, error) {
			if alarmID != 7 {
				t.Fatalf("expected id 7, got %d", alarmID)
			}
			return sampleAlarm(), nil
		}}
		router := newTestRouter(service, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alarms/7", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		t.Parallel()

		service := &alarmServiceStub{getFn: func(int64) (application.Alarm, error) {
			return application.Alarm{}, application.ErrNotFound
		}}
		router := newTestRouter(service, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alarms/99", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("update", func(t *testing.T) {
		t.Parallel()

		service := &alarmServiceStub{saveFn: func(params application.SaveAlarmParams) (application.Alarm, error) {
			if params.AlarmID != 3 {
				t.Fatalf("expected id 3, got %d", params.AlarmID)
			}
			return sampleAlarm(), nil
		}}
		router := newTestRouter(service, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/alarms/3", strings.NewReader(`{"hour":9}`)))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		service := &alarmServiceStub{deleteFn: func(alarmID int64) error {
			if alarmID != 3 {
				t.Fatalf("expected id 3, got %d", alarmID)
			}
			return nil
		}}
		router := newTestRouter(service, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/alarms/3", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("non-numeric id", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&alarmServiceStub{}, nil, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alarms/abc", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&alarmServiceStub{}, nil, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/alarms/3", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPut) {
			t.Fatalf("expected Allow header to list PUT, got %q", allow)
		}
	})
}

func TestAlarmHandler_List(t *testing.T) {
	t.Parallel()

	service := &alarmServiceStub{listFn: func() ([]application.Alarm, error) {
		return []application.Alarm{sampleAlarm()}, nil
	}}
	router := newTestRouter(service, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alarms", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Alarms) != 1 || resp.Alarms[0].Label != "work" {
		t.Fatalf("unexpected list response: %+v", resp)
	}
}

func TestAlarmHandler_Toggle(t *testing.T) {
	t.Parallel()

	service := &alarmServiceStub{toggleFn: func(alarmID int64, enabled bool) (application.Alarm, error) {
		if alarmID != 5 || enabled {
			t.Fatalf("unexpected toggle args: id=%d enabled=%v", alarmID, enabled)
		}
		alarm := sampleAlarm()
		alarm.Enabled = false
		alarm.NextTrigger = nil
		return alarm, nil
	}}
	router := newTestRouter(service, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alarms/5/toggle", strings.NewReader(`{"enabled":false}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var dto alarmDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if dto.Enabled || dto.NextTrigger != nil {
		t.Fatalf("expected disabled alarm without next trigger, got %+v", dto)
	}
}

func TestAlarmHandler_Next(t *testing.T) {
	t.Parallel()

	t.Run("upcoming", func(t *testing.T) {
		t.Parallel()

		at := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)
		service := &alarmServiceStub{nextFn: func() (application.UpcomingAlarm, bool, error) {
			return application.UpcomingAlarm{Alarm: sampleAlarm(), At: at, Until: 30 * time.Minute}, true, nil
		}}
		router := newTestRouter(service, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alarms/next", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp nextResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.UntilSeconds != 1800 || !resp.At.Equal(at) {
			t.Fatalf("unexpected next response: %+v", resp)
		}
	})

	t.Run("nothing enabled", func(t *testing.T) {
		t.Parallel()

		service := &alarmServiceStub{nextFn: func() (application.UpcomingAlarm, bool, error) {
			return application.UpcomingAlarm{}, false, nil
		}}
		router := newTestRouter(service, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alarms/next", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})
}

func TestRingingHandler_Status(t *testing.T) {
	t.Parallel()

	t.Run("idle", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(nil, &ringingControllerStub{}, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ringing", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp ringingStatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Ringing || resp.Session != nil {
			t.Fatalf("expected idle status, got %+v", resp)
		}
	})

	t.Run("ringing", func(t *testing.T) {
		t.Parallel()

		controller := &ringingControllerStub{
			active: true,
			session: ringing.Session{
				Token:   "tok",
				AlarmID: 4,
				FiredAt: time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC),
				State:   ringing.StateRinging,
			},
		}
		router := newTestRouter(nil, controller, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ringing", nil))

		var resp ringingStatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !resp.Ringing || resp.Session == nil || resp.Session.AlarmID != 4 {
			t.Fatalf("expected ringing status for alarm 4, got %+v", resp)
		}
	})
}

func TestRingingHandler_Snooze(t *testing.T) {
	t.Parallel()

	t.Run("snoozes the ringing alarm", func(t *testing.T) {
		t.Parallel()

		at := time.Date(2024, time.March, 5, 7, 10, 0, 0, time.UTC)
		controller := &ringingControllerStub{
			active:   true,
			session:  ringing.Session{AlarmID: 4, State: ringing.StateRinging},
			snoozeAt: at,
		}
		router := newTestRouter(&alarmServiceStub{}, controller, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alarms/4/snooze", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp snoozeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !resp.SnoozedUntil.Equal(at) {
			t.Fatalf("expected snoozed until %v, got %v", at, resp.SnoozedUntil)
		}
	})

	t.Run("conflict when not ringing", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&alarmServiceStub{}, &ringingControllerStub{}, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alarms/4/snooze", nil))
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("conflict when another alarm rings", func(t *testing.T) {
		t.Parallel()

		controller := &ringingControllerStub{
			active:  true,
			session: ringing.Session{AlarmID: 9, State: ringing.StateRinging},
		}
		router := newTestRouter(&alarmServiceStub{}, controller, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alarms/4/snooze", nil))
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestHealthz_ReportsStoreFailure(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Health: func(ctx context.Context) error { return errors.New("database gone") },
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unavailable") {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestEventsHandler_Stream(t *testing.T) {
	t.Parallel()

	feed := persistence.NewChangeFeed()
	server := httptest.NewServer(newTestRouter(nil, nil, feed))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read greeting: %v", err)
	}
	if !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected connected comment, got %q", line)
	}

	feed.Publish(persistence.Change{
		Kind:    persistence.ChangeCreated,
		AlarmID: 1,
		Alarm:   &persistence.Alarm{ID: 1, Hour: 8, Enabled: true, Sound: "default", SnoozeMinutes: 5},
		At:      time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC),
	})

	var eventLine, dataLine string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "event: ") {
			eventLine = trimmed
			continue
		}
		if strings.HasPrefix(trimmed, "data: ") {
			dataLine = trimmed
			break
		}
	}

	if eventLine != "event: change" {
		t.Fatalf("expected change event, got %q", eventLine)
	}

	var event changeEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &event); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if event.Kind != "created" || event.AlarmID != 1 || event.Alarm == nil || event.Alarm.Hour != 8 {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestHandleServiceError_LogsErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		kind string
	}{
		{"not found", application.ErrNotFound, "not_found"},
		{"timer unavailable", application.ErrTimerUnavailable, "timer_unavailable"},
		{"validation", &application.ValidationError{FieldErrors: map[string]string{"hour": "out of range"}}, "validation"},
		{"unexpected", errors.New("disk on fire"), "unexpected"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var logOutput bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logOutput, nil))

			resp := newResponder(logger)
			rec := httptest.NewRecorder()
			resp.handleServiceError(context.Background(), rec, tc.err)

			if !strings.Contains(logOutput.String(), "error_kind="+tc.kind) {
				t.Fatalf("expected error_kind=%s in log output, got: %s", tc.kind, logOutput.String())
			}
		})
	}
}

func TestRequestLogger_AttachesContextLogger(t *testing.T) {
	t.Parallel()

	var sawLogger bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	})

	handler := RequestLogger(nil)(inner)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alarms", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !sawLogger {
		t.Fatalf("expected request-scoped logger in context")
	}
}
