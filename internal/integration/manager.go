package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/bridges/vantage"
	"github.com/nerrad567/gray-logic-weather/internal/coordinator"
	"github.com/nerrad567/gray-logic-weather/internal/entry"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-weather/internal/sensor"
	"github.com/nerrad567/gray-logic-weather/internal/station"
)

// Logger is the structured logger used by the manager.
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

// FetcherFactory builds the station client for a host.
type FetcherFactory func(host string) coordinator.Fetcher

// Options configures a Manager. Every sink is optional.
type Options struct {
	Repository entry.Repository

	// Location is the zone station clocks are interpreted in.
	Location *time.Location

	Logger Logger

	Publisher   Publisher
	Health      HealthPublisher
	History     HistoryWriter
	Metrics     MetricsRecorder
	Broadcaster Broadcaster

	// NewFetcher defaults to station.NewClient.
	NewFetcher FetcherFactory
}

// pendingSetup marks an entry whose first refresh is in flight.
// removed is set under Manager.mu when the entry is deleted meanwhile.
type pendingSetup struct {
	removed bool
}

// Manager runs one coordinator per loaded station entry.
type Manager struct {
	repo       entry.Repository
	loc        *time.Location
	logger     Logger
	newFetcher FetcherFactory
	sinks      sinks

	mu          sync.RWMutex
	stations    map[string]*Station
	setupErrors map[string]error
	pending     map[string]*pendingSetup
	closed      bool

	// addMu serialises AddStation so concurrent adds of one station
	// cannot both pass the duplicate check.
	addMu sync.Mutex
}

// New creates a manager. Call SetupAll to load persisted entries.
func New(opts Options) (*Manager, error) {
	if opts.Repository == nil {
		return nil, errors.New("integration: repository is required")
	}
	m := &Manager{
		repo:        opts.Repository,
		loc:         opts.Location,
		logger:      opts.Logger,
		newFetcher:  opts.NewFetcher,
		stations:    make(map[string]*Station),
		setupErrors: make(map[string]error),
		pending:     make(map[string]*pendingSetup),
		sinks: sinks{
			publisher:   opts.Publisher,
			health:      opts.Health,
			history:     opts.History,
			metrics:     opts.Metrics,
			broadcaster: opts.Broadcaster,
		},
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.newFetcher == nil {
		m.newFetcher = func(host string) coordinator.Fetcher {
			return station.NewClient(host)
		}
	}
	return m, nil
}

// SeedFromConfig creates entries for configured stations whose host has
// no entry yet. Each new host is probed once for its identity; an
// unreachable host gets the host-derived identity.
func (m *Manager) SeedFromConfig(ctx context.Context, stations []config.StationConfig) error {
	var errs []error
	for _, sc := range stations {
		in := entry.Input{Host: sc.Host, Name: sc.Name, ScanInterval: sc.ScanInterval}.Normalize()

		if _, err := m.repo.GetByHost(ctx, in.Host); err == nil {
			continue
		} else if !errors.Is(err, entry.ErrEntryNotFound) {
			errs = append(errs, err)
			continue
		}

		if err := entry.ValidateInput(in); err != nil {
			errs = append(errs, fmt.Errorf("station %s: %w", in.Host, err))
			continue
		}

		id := m.identify(ctx, in.Host)
		e := &entry.Entry{
			UniqueID:     id.UniqueID,
			Title:        id.Title,
			Host:         in.Host,
			Name:         in.Name,
			ScanInterval: in.ScanInterval,
			Source:       entry.SourceConfig,
		}
		if err := m.repo.Create(ctx, e); err != nil {
			if errors.Is(err, entry.ErrEntryExists) {
				m.logger.Warn("configured station already present under another host",
					"host", in.Host, "unique_id", id.UniqueID)
				continue
			}
			errs = append(errs, fmt.Errorf("station %s: %w", in.Host, err))
			continue
		}
		m.logger.Info("seeded station from config", "entry_id", e.ID, "host", e.Host)
	}
	return errors.Join(errs...)
}

// identify probes host once and falls back to a host-derived identity.
func (m *Manager) identify(ctx context.Context, host string) station.Identity {
	p, err := m.newFetcher(host).Fetch(ctx)
	if err != nil {
		m.logger.Warn("station probe failed, using host identity", "host", host, "error", err)
		p = nil
	}
	return station.Identify(p, host)
}

// SetupAll loads every persisted entry. Entries whose first refresh fails
// are reported in the returned error and remain unloaded.
func (m *Manager) SetupAll(ctx context.Context) error {
	entries, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing entries: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if _, err := m.SetupEntry(ctx, e); err != nil && !errors.Is(err, ErrAlreadyLoaded) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetupEntry performs the first refresh for e and, when it succeeds,
// creates the entities, announces them, and starts polling. When it
// fails nothing is created and the cause is returned wrapped in
// ErrSetupFailed. A RemoveStation for e while the first refresh runs
// makes the setup return ErrSetupCancelled without loading anything.
func (m *Manager) SetupEntry(ctx context.Context, e entry.Entry) (*Station, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	_, loaded := m.stations[e.ID]
	_, busy := m.pending[e.ID]
	if loaded || busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLoaded, e.ID)
	}
	ps := &pendingSetup{}
	m.pending[e.ID] = ps
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.pending[e.ID] == ps {
			delete(m.pending, e.ID)
		}
		m.mu.Unlock()
	}()

	log := m.logger
	coord, err := coordinator.New(coordinator.Options{
		Name:     e.Title,
		Fetcher:  m.newFetcher(e.Host),
		Interval: e.Interval(),
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	m.sinks.starting(e.ID, log)

	if err := coord.FirstRefresh(ctx); err != nil {
		coord.Stop()
		m.mu.Lock()
		removed := ps.removed
		if !removed {
			m.setupErrors[e.ID] = err
		}
		m.mu.Unlock()
		if removed {
			return nil, fmt.Errorf("%w: %s", ErrSetupCancelled, e.ID)
		}
		log.Warn("station setup failed", "entry_id", e.ID, "host", e.Host,
			"kind", string(station.Classify(err)), "error", err)
		return nil, err
	}

	if m.cancelled(ps) {
		coord.Stop()
		return nil, fmt.Errorf("%w: %s", ErrSetupCancelled, e.ID)
	}

	p := coord.Data()
	st := &Station{
		coord:    coord,
		entities: sensor.Entities(e.ID, m.loc, log),
		device:   station.Device(p, e.ID, e.Name, e.Host),
		units:    p.DisplayUnits(),
		entry:    e,
	}
	m.logDisplayUnits(st)

	// Subscribe and announce before the station becomes visible so no
	// refresh it serves can complete unobserved or ahead of discovery.
	st.unsubscribe = coord.Subscribe(func(ev coordinator.Event) {
		m.sinks.refreshed(st, ev, log)
	})
	m.sinks.announce(st, log)
	m.sinks.refreshed(st, coordinator.Event{Payload: p, At: time.Now()}, log)

	m.mu.Lock()
	closed, removed := m.closed, ps.removed
	if !closed && !removed {
		m.stations[e.ID] = st
		delete(m.setupErrors, e.ID)
	}
	m.mu.Unlock()
	switch {
	case removed:
		m.unload(st, true)
		log.Info("station removed during setup", "entry_id", e.ID)
		return nil, fmt.Errorf("%w: %s", ErrSetupCancelled, e.ID)
	case closed:
		m.unload(st, false)
		return nil, ErrClosed
	}

	if err := coord.Start(); err != nil {
		// A concurrent RemoveStation or Close has already unloaded st.
		m.mu.Lock()
		owned := m.stations[e.ID] == st
		if owned {
			delete(m.stations, e.ID)
		}
		m.mu.Unlock()
		if owned {
			m.unload(st, false)
		}
		return nil, fmt.Errorf("starting coordinator for %s: %w", e.ID, err)
	}

	log.Info("station loaded",
		"entry_id", e.ID,
		"title", e.Title,
		"host", e.Host,
		"model", st.device.Model,
		"interval", e.Interval().String(),
		"entities", len(st.entities),
	)
	return st, nil
}

// cancelled reports whether RemoveStation flagged the pending setup.
func (m *Manager) cancelled(ps *pendingSetup) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ps.removed
}

func (m *Manager) logDisplayUnits(st *Station) {
	u := st.units
	if u == (station.DisplayUnits{}) {
		m.logger.Info("station reports no display units", "entry_id", st.ID())
		return
	}
	m.logger.Info("station display units",
		"entry_id", st.ID(),
		"temperature", u.Temperature,
		"wind", u.Wind,
		"barometer", u.Barometer,
		"precipitation", u.Precipitation,
	)
}

// AddStation runs the interactive add flow: normalise and validate the
// input, probe the host, reject a station that is already configured,
// persist the entry, and set it up.
//
// A probe failure returns ErrCannotConnect wrapping the classified cause.
// If setup fails after the entry was stored the entry is kept and the
// setup error is returned alongside it.
func (m *Manager) AddStation(ctx context.Context, in entry.Input) (*entry.Entry, *Station, error) {
	in = in.Normalize()
	if err := entry.ValidateInput(in); err != nil {
		return nil, nil, err
	}

	p, err := m.newFetcher(in.Host).Fetch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrCannotConnect, in.Host, err)
	}
	id := station.Identify(p, in.Host)

	m.addMu.Lock()
	defer m.addMu.Unlock()

	if existing, err := m.repo.GetByUniqueID(ctx, id.UniqueID); err == nil {
		return nil, nil, fmt.Errorf("%w: %s as %s", entry.ErrEntryExists, id.UniqueID, existing.ID)
	} else if !errors.Is(err, entry.ErrEntryNotFound) {
		return nil, nil, err
	}

	e := &entry.Entry{
		UniqueID:     id.UniqueID,
		Title:        id.Title,
		Host:         in.Host,
		Name:         in.Name,
		ScanInterval: in.ScanInterval,
		Source:       entry.SourceAPI,
	}
	if err := m.repo.Create(ctx, e); err != nil {
		return nil, nil, err
	}
	m.logger.Info("station added", "entry_id", e.ID, "unique_id", e.UniqueID, "host", e.Host)

	st, err := m.SetupEntry(ctx, *e)
	return e, st, err
}

// UpdateOptions persists new options and applies the interval to the
// running coordinator without restarting it.
func (m *Manager) UpdateOptions(ctx context.Context, id string, opts entry.Options) (*entry.Entry, error) {
	if err := entry.ValidateOptions(opts); err != nil {
		return nil, err
	}
	e, err := m.repo.UpdateOptions(ctx, id, opts)
	if err != nil {
		return nil, err
	}

	if st, ok := m.Get(id); ok {
		if err := st.coord.SetInterval(e.Interval()); err != nil {
			return e, fmt.Errorf("applying interval: %w", err)
		}
		st.setEntry(*e)
		m.sinks.healthNow(st, m.logger)
	}

	m.logger.Info("station options updated", "entry_id", id, "scan_interval", e.ScanInterval)
	return e, nil
}

// Refresh requests an immediate refresh, joining one already in flight.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	st, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}
	_, err := st.coord.RequestRefresh(ctx)
	return err
}

// RetrySetup sets up a persisted entry that is not currently loaded.
func (m *Manager) RetrySetup(ctx context.Context, id string) (*Station, error) {
	e, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.SetupEntry(ctx, *e)
}

// RemoveStation unloads the station and deletes its entry.
func (m *Manager) RemoveStation(ctx context.Context, id string) error {
	if _, err := m.repo.Get(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	st := m.stations[id]
	delete(m.stations, id)
	delete(m.setupErrors, id)
	if ps, ok := m.pending[id]; ok {
		ps.removed = true
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if st != nil {
		m.unload(st, true)
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("station removed", "entry_id", id)
	return nil
}

// unload stops polling. forget also withdraws the entities from the host.
func (m *Manager) unload(st *Station, forget bool) {
	if st.unsubscribe != nil {
		st.unsubscribe()
	}
	st.coord.Stop()
	if forget {
		m.sinks.remove(st.ID(), m.logger)
		return
	}
	m.sinks.offline(st.ID(), m.logger)
}

// Get returns a loaded station.
func (m *Manager) Get(id string) (*Station, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stations[id]
	return st, ok
}

// List returns loaded stations ordered by entry creation time.
func (m *Manager) List() []*Station {
	m.mu.RLock()
	out := make([]*Station, 0, len(m.stations))
	for _, st := range m.stations {
		out = append(out, st)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Entry(), out[j].Entry()
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out
}

// SetupError returns the last setup failure of an unloaded entry.
func (m *Manager) SetupError(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.setupErrors[id]
}

// Entries returns every persisted entry.
func (m *Manager) Entries(ctx context.Context) ([]entry.Entry, error) {
	return m.repo.List(ctx)
}

// Entry returns one persisted entry.
func (m *Manager) Entry(ctx context.Context, id string) (*entry.Entry, error) {
	return m.repo.Get(ctx, id)
}

// StationStatuses implements vantage.StatusSource.
func (m *Manager) StationStatuses() []vantage.StationStatus {
	stations := m.List()
	out := make([]vantage.StationStatus, 0, len(stations))
	for _, st := range stations {
		out = append(out, stationStatus(st))
	}
	return out
}

func stationStatus(st *Station) vantage.StationStatus {
	return vantage.StationStatus{
		EntryID: st.ID(),
		Status:  st.Status(),
		HasData: st.Available(),
	}
}

// Close stops every coordinator and marks the stations offline. Entries
// and discovery configs are kept for the next start.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stations := make([]*Station, 0, len(m.stations))
	for _, st := range m.stations {
		stations = append(stations, st)
	}
	m.stations = make(map[string]*Station)
	m.mu.Unlock()

	for _, st := range stations {
		m.unload(st, false)
	}
	m.logger.Info("integration manager closed", "stations", len(stations))
}
