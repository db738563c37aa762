package integration

import (
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/bridges/vantage"
	"github.com/nerrad567/gray-logic-weather/internal/coordinator"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-weather/internal/sensor"
)

// Publisher exposes station entities on the host bus.
// Satisfied by *vantage.Bridge.
type Publisher interface {
	AnnounceStation(st vantage.Station) error
	PublishState(entryID string, readings []sensor.Reading, at time.Time) error
	PublishAvailability(entryID string, online bool) error
	RemoveStation(entryID string) error
}

// HealthPublisher reports per-station health.
// Satisfied by *vantage.HealthReporter.
type HealthPublisher interface {
	PublishStarting(entryID string) error
	PublishStation(st vantage.StationStatus) error
}

// HistoryWriter records readings over time.
// Satisfied by *influxdb.Client.
type HistoryWriter interface {
	WriteReadings(tags influxdb.StationTags, readings []sensor.Reading, ts time.Time)
}

// MetricsRecorder records refresh outcomes.
// Satisfied by *metrics.Metrics.
type MetricsRecorder interface {
	ObserveRefresh(entryID string, err error, kind string, d time.Duration, at time.Time)
	SetReadings(entryID string, readings []sensor.Reading)
	RemoveStation(entryID string)
}

// Broadcaster pushes updates to live clients.
type Broadcaster interface {
	Broadcast(u Update)
}

// Update types.
const (
	UpdateReadings      = "readings"
	UpdateRefreshFailed = "refresh_failed"
	UpdateRemoved       = "removed"
)

// Update is one station event delivered to live clients.
type Update struct {
	Type      string           `json:"type"`
	EntryID   string           `json:"entry_id"`
	At        time.Time        `json:"at"`
	Readings  []sensor.Reading `json:"readings,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
}

type sinks struct {
	publisher   Publisher
	health      HealthPublisher
	history     HistoryWriter
	metrics     MetricsRecorder
	broadcaster Broadcaster
}

func (s sinks) starting(entryID string, log Logger) {
	if s.health == nil {
		return
	}
	if err := s.health.PublishStarting(entryID); err != nil {
		log.Debug("health publish failed", "entry_id", entryID, "error", err)
	}
}

func (s sinks) announce(st *Station, log Logger) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.AnnounceStation(vantage.Station{
		EntryID:  st.ID(),
		Device:   st.device,
		Entities: st.entities,
	})
	if err != nil {
		log.Warn("announcing station failed", "entry_id", st.ID(), "error", err)
	}
}

// refreshed fans one completed refresh out to every sink. Failed
// refreshes keep the cached readings, so only outcome bookkeeping and
// health change.
func (s sinks) refreshed(st *Station, ev coordinator.Event, log Logger) {
	id := st.ID()
	e := st.Entry()
	readings := st.Readings()

	if s.metrics != nil {
		s.metrics.ObserveRefresh(id, ev.Err, string(ev.Kind), ev.Duration, ev.At)
	}

	if ev.Success() {
		if s.publisher != nil {
			if err := s.publisher.PublishState(id, readings, ev.At); err != nil {
				log.Debug("state publish failed", "entry_id", id, "error", err)
			}
			if err := s.publisher.PublishAvailability(id, st.Available()); err != nil {
				log.Debug("availability publish failed", "entry_id", id, "error", err)
			}
		}
		if s.history != nil {
			s.history.WriteReadings(influxdb.StationTags{
				EntryID:  id,
				UniqueID: e.UniqueID,
				Name:     e.Name,
			}, readings, ev.At)
		}
		if s.metrics != nil {
			s.metrics.SetReadings(id, readings)
		}
	}

	s.healthNow(st, log)

	if s.broadcaster != nil {
		u := Update{Type: UpdateReadings, EntryID: id, At: ev.At, Readings: readings}
		if !ev.Success() {
			u = Update{
				Type:      UpdateRefreshFailed,
				EntryID:   id,
				At:        ev.At,
				Error:     ev.Err.Error(),
				ErrorKind: string(ev.Kind),
			}
		}
		s.broadcaster.Broadcast(u)
	}
}

func (s sinks) healthNow(st *Station, log Logger) {
	if s.health == nil {
		return
	}
	if err := s.health.PublishStation(stationStatus(st)); err != nil {
		log.Debug("health publish failed", "entry_id", st.ID(), "error", err)
	}
}

func (s sinks) offline(entryID string, log Logger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAvailability(entryID, false); err != nil {
		log.Debug("availability publish failed", "entry_id", entryID, "error", err)
	}
}

func (s sinks) remove(entryID string, log Logger) {
	if s.publisher != nil {
		if err := s.publisher.RemoveStation(entryID); err != nil {
			log.Warn("removing station from mqtt failed", "entry_id", entryID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.RemoveStation(entryID)
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(Update{Type: UpdateRemoved, EntryID: entryID, At: time.Now()})
	}
}
