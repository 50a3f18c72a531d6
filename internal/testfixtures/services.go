package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/alarmd/internal/application"
	"github.com/example/alarmd/internal/occurrence"
	"github.com/example/alarmd/internal/timer"
)

// ServiceFactory assists tests with constructing application services using a
// deterministic clock.
type ServiceFactory struct {
	Clock *Clock
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock: NewClock(time.Time{}),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// AlarmServiceDeps captures dependencies for constructing an alarm service.
type AlarmServiceDeps struct {
	Alarms   application.AlarmStore
	Timers   application.TimerPort
	Ringer   application.Ringer
	Location *time.Location
	Retry    timer.RetryConfig
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewAlarmService builds an alarm service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewAlarmService(deps AlarmServiceDeps) *application.AlarmService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	retry := deps.Retry
	if retry.MaxRetries == 0 && retry.InitialDelay == 0 {
		retry = timer.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	}
	return application.NewAlarmService(
		deps.Alarms,
		deps.Timers,
		deps.Ringer,
		occurrence.NewCalculator(loc),
		retry,
		deps.Logger,
		now,
	)
}
