// Package ringing owns the lifecycle of an alarm between firing and dismissal.
package ringing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/alarmd/internal/metrics"
)

// Request carries everything the controller needs to ring one alarm.
type Request struct {
	AlarmID       int64
	OneTime       bool
	SnoozeMinutes int
	Sound         string
	Vibration     bool
	Label         string
	FiredAt       time.Time
}

// State labels a session's position in the ringing lifecycle.
type State string

const (
	// StateRinging means the alert is active and awaiting dismissal.
	StateRinging State = "ringing"
	// StateSnoozed means the session ended with a snooze re-arm.
	StateSnoozed State = "snoozed"
	// StateDismissed means the charger edge ended the session.
	StateDismissed State = "dismissed"
)

// Session is the transient state between a fire and its dismissal. It is never
// persisted.
type Session struct {
	Token   string
	AlarmID int64
	FiredAt time.Time
	State   State
}

// Presenter receives fire-and-forget alert presentation requests.
type Presenter interface {
	StartAlert(ctx context.Context, req Request) error
	StopAlert(ctx context.Context, alarmID int64) error
}

// WakeSource models the wake indication held while a session rings.
type WakeSource interface {
	// Acquire takes the wake indication and returns its release function.
	Acquire(tag string) (release func(), err error)
}

// DismissSignal blocks until the charger-connected edge occurs.
type DismissSignal interface {
	WaitForConnect(ctx context.Context) error
}

// Coordinator is called back when a session ends so scheduling state can be
// updated.
type Coordinator interface {
	// AlarmDismissed applies the post-dismissal policy: one-time alarms are
	// disabled, repeating alarms were already re-armed at fire time.
	AlarmDismissed(ctx context.Context, alarmID int64, oneTime bool) error
	// ArmSnooze registers a one-shot fire for the same alarm id without
	// touching the persisted schedule.
	ArmSnooze(ctx context.Context, alarmID int64, at time.Time) error
}

var (
	// ErrAlreadyRinging is returned when a fire arrives for the alarm that is
	// already ringing. Entry is idempotent per alarm id.
	ErrAlreadyRinging = errors.New("ringing: session already active for alarm")
	// ErrBusy is returned when a different alarm's session is active. The
	// ringing session is a process-wide singleton; the late fire's
	// presentation is superseded.
	ErrBusy = errors.New("ringing: another alarm is ringing")
	// ErrNoActiveSession is returned when snoozing without a ringing alarm.
	ErrNoActiveSession = errors.New("ringing: no active session")
)

// Controller drives the ringing state machine. Only one session can be active
// at a time.
type Controller struct {
	presenter   Presenter
	wake        WakeSource
	signal      DismissSignal
	coordinator Coordinator
	logger      *slog.Logger
	now         func() time.Time
	newToken    func() string

	mu     sync.Mutex
	active *session

	wg sync.WaitGroup
}

type session struct {
	token   string
	req     Request
	state   State
	cancel  context.CancelFunc
	release func()
}

// NewController wires the controller's collaborators.
func NewController(presenter Presenter, wake WakeSource, signal DismissSignal, coordinator Coordinator, logger *slog.Logger, now func() time.Time) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{
		presenter:   presenter,
		wake:        wake,
		signal:      signal,
		coordinator: coordinator,
		logger:      logger,
		now:         now,
		newToken:    uuid.NewString,
	}
}

// Ring enters the ringing state for the supplied request. A second fire for
// the same alarm id returns ErrAlreadyRinging without starting a new session;
// a fire while another alarm rings returns ErrBusy.
//
// Presentation and wake failures are logged, never fatal: the dismissal path
// must stay reachable even when the alert could not be raised.
func (c *Controller) Ring(ctx context.Context, req Request) error {
	c.mu.Lock()
	if c.active != nil {
		activeID := c.active.req.AlarmID
		c.mu.Unlock()
		if activeID == req.AlarmID {
			return ErrAlreadyRinging
		}
		return ErrBusy
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		token:  c.newToken(),
		req:    req,
		state:  StateRinging,
		cancel: cancel,
	}
	logger := c.logger.With("alarm_id", req.AlarmID, "session", sess.token)

	// The wake indication is acquired before the session becomes visible so
	// any teardown that takes the session always finds sess.release set.
	if c.wake != nil {
		release, err := c.wake.Acquire("alarmd:ringing")
		if err != nil {
			logger.Warn("failed to acquire wake indication", "error", err)
		} else {
			sess.release = release
		}
	}

	c.active = sess
	metrics.RingingSessions.Inc()
	c.mu.Unlock()

	logger.Info("alarm ringing", "fired_at", req.FiredAt, "label", req.Label)

	if c.presenter != nil {
		if err := c.presenter.StartAlert(ctx, req); err != nil {
			logger.Warn("failed to start alert presentation", "error", err)
			metrics.PresentationFailures.Inc()
		} else {
			// A snooze or shutdown may have ended the session while the alert
			// was starting; its teardown already ran, so stop the alert here.
			c.mu.Lock()
			ended := c.active != sess
			c.mu.Unlock()
			if ended {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := c.presenter.StopAlert(stopCtx, req.AlarmID); err != nil {
					logger.Warn("failed to stop alert presentation", "error", err)
				}
				stopCancel()
			}
		}
	}

	c.wg.Add(1)
	go c.awaitDismissal(sessionCtx, sess, logger)

	return nil
}

func (c *Controller) awaitDismissal(ctx context.Context, sess *session, logger *slog.Logger) {
	defer c.wg.Done()

	if c.signal == nil {
		<-ctx.Done()
		return
	}

	if err := c.signal.WaitForConnect(ctx); err != nil {
		// Snooze or shutdown cancelled the wait; that path already tore the
		// session down.
		logger.Debug("dismissal wait ended without edge", "error", err)
		return
	}

	c.dismiss(sess, logger)
}

func (c *Controller) dismiss(sess *session, logger *slog.Logger) {
	c.mu.Lock()
	if c.active != sess || sess.state != StateRinging {
		c.mu.Unlock()
		return
	}
	sess.state = StateDismissed
	c.active = nil
	c.mu.Unlock()

	c.teardown(sess, logger)
	metrics.Dismissals.Inc()
	logger.Info("alarm dismissed", "one_time", sess.req.OneTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.coordinator.AlarmDismissed(ctx, sess.req.AlarmID, sess.req.OneTime); err != nil {
		logger.Error("failed to apply dismissal policy", "error", err)
	}
}

// Snooze ends the active session and re-arms the same alarm id at
// now + snoozeMinutes. The persisted schedule is untouched. It returns the
// snooze target instant.
func (c *Controller) Snooze(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	sess := c.active
	if sess == nil {
		c.mu.Unlock()
		return time.Time{}, ErrNoActiveSession
	}
	sess.state = StateSnoozed
	c.active = nil
	c.mu.Unlock()

	logger := c.logger.With("alarm_id", sess.req.AlarmID, "session", sess.token)

	sess.cancel()
	c.teardown(sess, logger)

	minutes := sess.req.SnoozeMinutes
	if minutes <= 0 {
		minutes = 5
	}
	at := c.now().Add(time.Duration(minutes) * time.Minute)

	if err := c.coordinator.ArmSnooze(ctx, sess.req.AlarmID, at); err != nil {
		logger.Error("failed to arm snooze", "error", err)
		return time.Time{}, err
	}

	metrics.Snoozes.Inc()
	logger.Info("alarm snoozed", "until", at)
	return at, nil
}

// Active returns a snapshot of the current session, if any.
func (c *Controller) Active() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return Session{}, false
	}
	return Session{
		Token:   c.active.token,
		AlarmID: c.active.req.AlarmID,
		FiredAt: c.active.req.FiredAt,
		State:   c.active.state,
	}, true
}

// Shutdown tears down any active session without applying dismissal policy.
// Boot-time recovery re-arms whatever schedule state was left behind.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	sess := c.active
	c.active = nil
	c.mu.Unlock()

	if sess != nil {
		sess.cancel()
		c.teardown(sess, c.logger.With("alarm_id", sess.req.AlarmID))
	}
	c.wg.Wait()
}

// teardown stops presentation and releases the wake indication. Every exit
// path from the ringing state funnels through here.
func (c *Controller) teardown(sess *session, logger *slog.Logger) {
	sess.cancel()

	if c.presenter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.presenter.StopAlert(ctx, sess.req.AlarmID); err != nil {
			logger.Warn("failed to stop alert presentation", "error", err)
		}
		cancel()
	}

	if sess.release != nil {
		sess.release()
		sess.release = nil
	}

	metrics.RingingSessions.Dec()
}
