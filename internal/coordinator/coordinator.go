package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-weather/internal/station"
)

// DefaultInterval is used when Options.Interval is zero.
const DefaultInterval = 60 * time.Second

// flightKey is the single singleflight key; one coordinator serves one station.
const flightKey = "refresh"

// Fetcher retrieves one payload from a station.
type Fetcher interface {
	Fetch(ctx context.Context) (*station.Payload, error)
}

// Logger is the structured logger used by the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Event describes one completed refresh cycle.
type Event struct {
	Payload  *station.Payload // nil on failure
	Err      error
	Kind     station.ErrorKind
	At       time.Time
	Duration time.Duration
}

// Success reports whether the refresh produced a new payload.
func (e Event) Success() bool {
	return e.Err == nil
}

// Status is a snapshot of the coordinator's refresh bookkeeping.
type Status struct {
	Name                string
	Interval            time.Duration
	Running             bool
	Refreshing          bool
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastError           error
	LastErrorKind       station.ErrorKind
	LastUpdateSuccess   bool
	AuthFailed          bool
	ConsecutiveFailures int
	SkippedTicks        uint64
}

// Options configures a Coordinator.
type Options struct {
	// Name identifies the station in logs.
	Name string

	// Fetcher performs the station request. Required.
	Fetcher Fetcher

	// Interval between scheduled refreshes. Defaults to DefaultInterval.
	Interval time.Duration

	// Logger is optional.
	Logger Logger
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Coordinator schedules refreshes for one station and caches the last
// successful payload.
type Coordinator struct {
	name    string
	fetcher Fetcher
	logger  Logger

	group      singleflight.Group
	data       atomic.Pointer[station.Payload]
	refreshing atomic.Bool
	closed     atomic.Bool
	skipped    atomic.Uint64
	waiters    atomic.Int32 // callers currently joined to a flight

	mu        sync.RWMutex
	status    Status
	interval  time.Duration
	scheduler *gocron.Scheduler

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub uint64

	stopOnce sync.Once
}

// New creates a coordinator. Call FirstRefresh, then Start.
func New(opts Options) (*Coordinator, error) {
	if opts.Fetcher == nil {
		return nil, ErrFetcherRequired
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Coordinator{
		name:     opts.Name,
		fetcher:  opts.Fetcher,
		logger:   logger,
		interval: interval,
	}, nil
}

// Data returns the last successfully fetched payload, or nil if no refresh
// has succeeded yet. It performs no I/O.
func (c *Coordinator) Data() *station.Payload {
	return c.data.Load()
}

// Available reports whether a payload with real-time data is cached.
func (c *Coordinator) Available() bool {
	p := c.data.Load()
	return p != nil && p.RTD != nil
}

// FirstRefresh performs the refresh that gates setup.
//
// Returns:
//   - error: ErrSetupFailed wrapping the classified fetch error, or nil
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	if _, err := c.RequestRefresh(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSetupFailed, c.name, err)
	}
	c.logger.Info("first refresh succeeded", "station", c.name)
	return nil
}

// RequestRefresh performs a refresh now, or joins the one already in flight.
//
// The shared fetch is detached from ctx so one caller giving up does not
// cancel it for the others. A caller whose ctx ends stops waiting and gets
// ctx.Err().
//
// Returns:
//   - *station.Payload: the payload fetched by this flight
//   - error: the fetch error, ErrStopped, or ctx.Err()
func (c *Coordinator) RequestRefresh(ctx context.Context) (*station.Payload, error) {
	if c.closed.Load() {
		return nil, ErrStopped
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.refresh(fetchCtx)
	})
	c.waiters.Add(1)
	defer c.waiters.Add(-1)

	select {
	case res := <-ch:
		p, _ := res.Val.(*station.Payload)
		return p, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// refresh runs inside the flight. Bookkeeping and notifications happen
// before the flight ends, so a new flight never overtakes an old one.
func (c *Coordinator) refresh(ctx context.Context) (*station.Payload, error) {
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	start := time.Now()
	p, err := c.fetcher.Fetch(ctx)
	if err == nil && (p == nil || p.RTD == nil || p.Info == nil) {
		p, err = nil, fmt.Errorf("%w: incomplete payload", station.ErrProtocol)
	}
	if err != nil {
		p = nil
	}

	ev := Event{
		Payload:  p,
		Err:      err,
		Kind:     station.Classify(err),
		At:       time.Now(),
		Duration: time.Since(start),
	}

	if c.closed.Load() {
		c.logger.Debug("discarding refresh result after stop", "station", c.name)
		return p, err
	}

	c.record(ev)
	c.notify(ev)
	return p, err
}

func (c *Coordinator) record(ev Event) {
	c.mu.Lock()
	prevFailures := c.status.ConsecutiveFailures
	c.status.LastAttempt = ev.At
	if ev.Success() {
		c.data.Store(ev.Payload)
		c.status.LastSuccess = ev.At
		c.status.LastUpdateSuccess = true
		c.status.LastError = nil
		c.status.LastErrorKind = station.KindNone
		c.status.AuthFailed = false
		c.status.ConsecutiveFailures = 0
	} else {
		c.status.LastUpdateSuccess = false
		c.status.LastError = ev.Err
		c.status.LastErrorKind = ev.Kind
		c.status.ConsecutiveFailures++
		if ev.Kind == station.KindAuth {
			c.status.AuthFailed = true
		}
	}
	failures := c.status.ConsecutiveFailures
	c.mu.Unlock()

	switch {
	case ev.Kind == station.KindAuth:
		c.logger.Error("station rejected request, reconfiguration required",
			"station", c.name, "error", ev.Err, "failures", failures)
	case !ev.Success():
		c.logger.Warn("refresh failed, keeping last data",
			"station", c.name, "kind", string(ev.Kind), "error", ev.Err, "failures", failures)
	case prevFailures > 0:
		c.logger.Info("refresh recovered", "station", c.name, "after_failures", prevFailures)
	default:
		c.logger.Debug("refresh succeeded", "station", c.name, "duration", ev.Duration)
	}
}

func (c *Coordinator) notify(ev Event) {
	c.subMu.RLock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	for _, s := range subs {
		c.deliver(s, ev)
	}
}

func (c *Coordinator) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked", "station", c.name, "subscriber", s.id, "panic", r)
		}
	}()
	s.fn(ev)
}

// Subscribe registers fn to be called after every completed refresh.
//
// fn runs before the refresh is marked finished, so it must not call
// RequestRefresh directly: that call would join the refresh it is part of
// and never return. A follow-up refresh belongs in a new goroutine, and it
// joins the current refresh if that one has not finished yet.
//
// Returns:
//   - func(): removes the subscription; safe to call more than once
func (c *Coordinator) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Start begins periodic refreshing. The first scheduled refresh runs one
// interval after Start. Calling Start on a running coordinator is a no-op.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrStopped
	}
	if c.scheduler != nil {
		return nil
	}

	s, err := c.schedule(c.interval)
	if err != nil {
		return err
	}
	c.scheduler = s
	c.logger.Info("polling started", "station", c.name, "interval", c.interval)
	return nil
}

// schedule builds and starts a scheduler firing tick every interval.
func (c *Coordinator) schedule(interval time.Duration) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(interval).WaitForSchedule().Do(c.tick); err != nil {
		return nil, fmt.Errorf("scheduling refresh: %w", err)
	}
	s.StartAsync()
	return s, nil
}

// tick is the scheduled job. It skips when a refresh is outstanding and
// otherwise starts one without blocking the scheduler.
func (c *Coordinator) tick() {
	if c.closed.Load() {
		return
	}
	if c.refreshing.Load() {
		n := c.skipped.Add(1)
		c.logger.Debug("refresh still running, skipping tick", "station", c.name, "skipped", n)
		return
	}
	go func() {
		_, _ = c.RequestRefresh(context.Background())
	}()
}

// SetInterval changes the polling interval, rescheduling if running.
func (c *Coordinator) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interval == d {
		return nil
	}
	c.interval = d
	if c.scheduler == nil {
		return nil
	}

	s, err := c.schedule(d)
	if err != nil {
		return err
	}
	c.scheduler.Stop()
	c.scheduler = s
	c.logger.Info("polling interval changed", "station", c.name, "interval", d)
	return nil
}

// Interval returns the current polling interval.
func (c *Coordinator) Interval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

// Stop cancels the schedule. It does not wait for or interrupt a fetch in
// flight; that fetch's result is discarded.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.closed.Store(true)

		c.mu.Lock()
		if c.scheduler != nil {
			c.scheduler.Stop()
			c.scheduler = nil
		}
		c.mu.Unlock()

		c.logger.Info("polling stopped", "station", c.name)
	})
}

// Status returns a snapshot of the refresh bookkeeping.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	st := c.status
	st.Interval = c.interval
	st.Running = c.scheduler != nil
	c.mu.RUnlock()

	st.Name = c.name
	st.Refreshing = c.refreshing.Load()
	st.SkippedTicks = c.skipped.Load()
	return st
}
