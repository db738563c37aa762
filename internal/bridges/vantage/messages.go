package vantage

import (
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/sensor"
	"github.com/nerrad567/gray-logic-weather/internal/station"
)

// StateMessage carries every projected reading of one station.
// Topic: vantage/state/{entry_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	EntryID   string    `json:"entry_id"`
	Timestamp time.Time `json:"timestamp"`

	// State maps reading key to value. Unavailable readings are null.
	State map[string]any `json:"state"`

	// Icons holds per-reading icons that vary with the value, such as the
	// barometer trend.
	Icons map[string]string `json:"icons,omitempty"`
}

// NewStateMessage builds a state message from projected readings.
// Timestamps are rendered as RFC 3339 strings.
func NewStateMessage(entryID string, readings []sensor.Reading, at time.Time) StateMessage {
	msg := StateMessage{
		EntryID:   entryID,
		Timestamp: at.UTC(),
		State:     make(map[string]any, len(readings)),
	}
	for _, r := range readings {
		if !r.Available {
			msg.State[r.Key] = nil
			continue
		}
		switch v := r.Value.(type) {
		case time.Time:
			msg.State[r.Key] = v.Format(time.RFC3339)
		default:
			msg.State[r.Key] = v
		}
		if r.Key == sensor.KeyBaroTrend && r.Icon != "" {
			if msg.Icons == nil {
				msg.Icons = make(map[string]string)
			}
			msg.Icons[r.Key] = r.Icon
		}
	}
	return msg
}

// DiscoveryDevice is the device block shared by every entity of a station.
type DiscoveryDevice struct {
	Identifiers      []string `json:"identifiers"`
	Name             string   `json:"name"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	Model            string   `json:"model,omitempty"`
	SWVersion        string   `json:"sw_version,omitempty"`
	ConfigurationURL string   `json:"configuration_url,omitempty"`
}

// DiscoveryMessage is a Home Assistant MQTT sensor config.
// Topic: {discovery_prefix}/sensor/{unique_id}/config
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	ValueTemplate     string          `json:"value_template"`
	AvailabilityTopic string          `json:"availability_topic"`
	Unit              string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	Icon              string          `json:"icon,omitempty"`
	Device            DiscoveryDevice `json:"device"`
}

func newDiscoveryDevice(d station.DeviceInfo) DiscoveryDevice {
	return DiscoveryDevice{
		Identifiers:      []string{d.Identifier},
		Name:             d.Name,
		Manufacturer:     d.Manufacturer,
		Model:            d.Model,
		SWVersion:        d.SWVersion,
		ConfigurationURL: d.ConfigurationURL,
	}
}

// HealthStatus is the operational status of one station.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// Health reasons.
const (
	ReasonMQTTDisconnected = "mqtt_disconnected"
	ReasonReauthRequired   = "reauth_required"
	ReasonRefreshFailing   = "refresh_failing"
	ReasonNoData           = "no_data"
)

// HealthMessage reports the refresh health of one station.
// Topic: vantage/health/{entry_id}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	EntryID             string       `json:"entry_id"`
	Timestamp           time.Time    `json:"timestamp"`
	Status              HealthStatus `json:"status"`
	Version             string       `json:"version,omitempty"`
	UptimeSeconds       int64        `json:"uptime_seconds"`
	IntervalSeconds     int64        `json:"interval_seconds,omitempty"`
	LastSuccess         *time.Time   `json:"last_success,omitempty"`
	LastError           string       `json:"last_error,omitempty"`
	LastErrorKind       string       `json:"last_error_kind,omitempty"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	SkippedTicks        uint64       `json:"skipped_ticks"`
	Reason              string       `json:"reason,omitempty"`
}
