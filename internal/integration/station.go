package integration

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/coordinator"
	"github.com/nerrad567/gray-logic-weather/internal/entry"
	"github.com/nerrad567/gray-logic-weather/internal/sensor"
	"github.com/nerrad567/gray-logic-weather/internal/station"
)

// Station is a loaded entry: its coordinator and projected entities.
type Station struct {
	coord    *coordinator.Coordinator
	entities []*sensor.Entity
	device   station.DeviceInfo
	units    station.DisplayUnits

	mu          sync.RWMutex
	entry       entry.Entry
	unsubscribe func()
}

// Entry returns a copy of the station's configuration entry.
func (s *Station) Entry() entry.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry
}

func (s *Station) setEntry(e entry.Entry) {
	s.mu.Lock()
	s.entry = e
	s.mu.Unlock()
}

// ID returns the entry id.
func (s *Station) ID() string {
	return s.Entry().ID
}

// Device returns the device metadata captured at setup.
func (s *Station) Device() station.DeviceInfo {
	return s.device
}

// DisplayUnits returns the console display units captured at setup.
func (s *Station) DisplayUnits() station.DisplayUnits {
	return s.units
}

// Entities returns the station's entities in publication order.
func (s *Station) Entities() []*sensor.Entity {
	out := make([]*sensor.Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// Readings projects every entity against the cached payload.
func (s *Station) Readings() []sensor.Reading {
	return sensor.Project(s.entities, s.coord.Data())
}

// Status returns the coordinator's refresh bookkeeping.
func (s *Station) Status() coordinator.Status {
	return s.coord.Status()
}

// Available reports whether the station has cached real-time data.
func (s *Station) Available() bool {
	return s.coord.Available()
}

// Interval returns the current polling interval.
func (s *Station) Interval() time.Duration {
	return s.coord.Interval()
}
