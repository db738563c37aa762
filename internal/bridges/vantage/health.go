package vantage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/coordinator"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
)

const defaultHealthInterval = 30 * time.Second

// StationStatus pairs an entry with its coordinator snapshot.
type StationStatus struct {
	EntryID string
	Status  coordinator.Status
	HasData bool
}

// StatusSource lists the stations to report on.
type StatusSource interface {
	StationStatuses() []StationStatus
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	Version string

	// Interval between reports. Default: 30 seconds.
	Interval time.Duration

	Publisher MQTTClient
	Source    StatusSource
	Logger    Logger
}

// HealthReporter publishes per-station health documents on a fixed
// interval and on demand.
type HealthReporter struct {
	version   string
	startTime time.Time
	interval  time.Duration
	publisher MQTTClient
	logger    Logger
	topics    mqtt.Topics

	srcMu  sync.RWMutex
	source StatusSource

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultHealthInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &HealthReporter{
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status for every
// station. Safe to call more than once.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		for _, st := range h.statuses() {
			//nolint:errcheck // best-effort during shutdown
			h.publish(h.buildMessage(st, HealthStopping, ""))
		}
	})
}

// SetSource sets where station statuses are read from. The source usually
// needs the reporter itself, so it is attached after construction.
func (h *HealthReporter) SetSource(src StatusSource) {
	h.srcMu.Lock()
	h.source = src
	h.srcMu.Unlock()
}

func (h *HealthReporter) statuses() []StationStatus {
	h.srcMu.RLock()
	src := h.source
	h.srcMu.RUnlock()
	if src == nil {
		return nil
	}
	return src.StationStatuses()
}

// PublishStarting publishes a "starting" status for one station.
func (h *HealthReporter) PublishStarting(entryID string) error {
	return h.publish(HealthMessage{
		EntryID:   entryID,
		Timestamp: time.Now().UTC(),
		Status:    HealthStarting,
		Version:   h.version,
	})
}

// PublishStation publishes the current health of one station.
func (h *HealthReporter) PublishStation(st StationStatus) error {
	status, reason := h.determineStatus(st)
	return h.publish(h.buildMessage(st, status, reason))
}

// PublishNow publishes the current health of every station.
func (h *HealthReporter) PublishNow() error {
	var errs []error
	for _, st := range h.statuses() {
		if err := h.PublishStation(st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Warn("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Warn("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus ranks problems: broker link, then credentials, then
// refresh failures.
func (h *HealthReporter) determineStatus(st StationStatus) (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, ReasonMQTTDisconnected
	}
	if st.Status.AuthFailed {
		return HealthUnhealthy, ReasonReauthRequired
	}
	if !st.HasData {
		return HealthUnhealthy, ReasonNoData
	}
	if !st.Status.LastUpdateSuccess {
		return HealthDegraded, ReasonRefreshFailing
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) buildMessage(st StationStatus, status HealthStatus, reason string) HealthMessage {
	s := st.Status
	msg := HealthMessage{
		EntryID:             st.EntryID,
		Timestamp:           time.Now().UTC(),
		Status:              status,
		Version:             h.version,
		UptimeSeconds:       int64(time.Since(h.startTime).Seconds()),
		IntervalSeconds:     int64(s.Interval.Seconds()),
		LastErrorKind:       string(s.LastErrorKind),
		ConsecutiveFailures: s.ConsecutiveFailures,
		SkippedTicks:        s.SkippedTicks,
		Reason:              reason,
	}
	if !s.LastSuccess.IsZero() {
		t := s.LastSuccess.UTC()
		msg.LastSuccess = &t
	}
	if s.LastError != nil {
		msg.LastError = s.LastError.Error()
	}
	return msg
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topics.Health(msg.EntryID), payload, defaultQoS, true)
}
