package sensor

import (
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/station"
)

// Keys of the derived readings.
const (
	KeyBaroTrend  = "baro_trend"
	KeyLastUpdate = "last_update"
)

// Logger is the structured logger used for field-level warnings.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

func loggerOrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// Reading is the projected state of one entity.
type Reading struct {
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	UniqueID    string      `json:"unique_id"`
	Value       any         `json:"value"`
	Unit        string      `json:"unit,omitempty"`
	DeviceClass DeviceClass `json:"device_class,omitempty"`
	StateClass  StateClass  `json:"state_class,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	Available   bool        `json:"available"`
}

// Float returns the value as float64 when it is numeric.
func (r Reading) Float() (float64, bool) {
	f, ok := r.Value.(float64)
	return f, ok
}

// Entity is one reading exposed to the host for a configured station.
type Entity struct {
	key         string
	name        string
	uniqueID    string
	unit        string
	deviceClass DeviceClass
	stateClass  StateClass
	icon        string

	value func(rtd map[string]any) (v any, icon string, ok bool)
}

// Key returns the reading key (rtd field or derived key).
func (e *Entity) Key() string { return e.key }

// Name returns the display name.
func (e *Entity) Name() string { return e.name }

// UniqueID returns the stable host identifier "<entryID>_<key>".
func (e *Entity) UniqueID() string { return e.uniqueID }

// Unit returns the unit of measurement, or "" for none.
func (e *Entity) Unit() string { return e.unit }

// DeviceClass returns the device class.
func (e *Entity) DeviceClass() DeviceClass { return e.deviceClass }

// StateClass returns the state class.
func (e *Entity) StateClass() StateClass { return e.stateClass }

// Icon returns the default icon.
func (e *Entity) Icon() string { return e.icon }

// Project reads the entity's state from p. A nil payload, or one without
// an rtd group, projects as unavailable.
func (e *Entity) Project(p *station.Payload) Reading {
	r := Reading{
		Key:         e.key,
		Name:        e.name,
		UniqueID:    e.uniqueID,
		Unit:        e.unit,
		DeviceClass: e.deviceClass,
		StateClass:  e.stateClass,
		Icon:        e.icon,
	}
	if p == nil || p.RTD == nil {
		return r
	}
	r.Available = true

	v, icon, ok := e.value(p.RTD)
	if icon != "" {
		r.Icon = icon
	}
	if ok {
		r.Value = v
	}
	return r
}

// UniqueID builds the host identifier for a reading of a station entry.
func UniqueID(entryID, key string) string {
	return entryID + "_" + key
}

// Entities builds the full entity set for a station entry: every standard
// reading in table order, then barometer trend, then last update.
//
// Parameters:
//   - entryID: configuration entry identifier, prefix of every unique id
//   - loc: zone the station clock is interpreted in (nil means local)
//   - logger: receives field-level warnings; may be nil
func Entities(entryID string, loc *time.Location, logger Logger) []*Entity {
	logger = loggerOrNoop(logger)
	if loc == nil {
		loc = time.Local
	}

	out := make([]*Entity, 0, len(descriptors)+2)
	for _, d := range descriptors {
		d := d
		out = append(out, &Entity{
			key:         d.Key,
			name:        d.Name,
			uniqueID:    UniqueID(entryID, d.Key),
			unit:        d.NativeUnit(),
			deviceClass: d.DeviceClass,
			stateClass:  d.StateClass,
			icon:        d.Icon,
			value: func(rtd map[string]any) (any, string, bool) {
				v, ok := d.Value(rtd, logger)
				return v, "", ok
			},
		})
	}

	out = append(out, &Entity{
		key:      KeyBaroTrend,
		name:     "Barometer Trend",
		uniqueID: UniqueID(entryID, KeyBaroTrend),
		icon:     IconBaroTrend,
		value: func(rtd map[string]any) (any, string, bool) {
			label, icon, ok := BaroTrend(rtd, logger)
			if !ok {
				return nil, icon, false
			}
			return label, icon, true
		},
	})

	out = append(out, &Entity{
		key:         KeyLastUpdate,
		name:        "Last Update",
		uniqueID:    UniqueID(entryID, KeyLastUpdate),
		deviceClass: ClassTimestamp,
		icon:        IconLastUpdate,
		value: func(rtd map[string]any) (any, string, bool) {
			ts, ok := LastUpdate(rtd, loc, logger)
			if !ok {
				return nil, "", false
			}
			return ts, "", true
		},
	})

	return out
}

// Project projects every entity against p, preserving entity order.
func Project(entities []*Entity, p *station.Payload) []Reading {
	out := make([]Reading, len(entities))
	for i, e := range entities {
		out[i] = e.Project(p)
	}
	return out
}
