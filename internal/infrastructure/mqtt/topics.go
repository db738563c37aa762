package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the bridge's MQTT namespace.
//
// Station topics use the flat scheme: vantage/{category}/{entry_id}
const (
	// TopicPrefix is the base for all station topics.
	TopicPrefix = "vantage"

	// TopicPrefixSystem is the base for process-level topics.
	TopicPrefixSystem = "vantage/system"

	// DefaultDiscoveryPrefix is the Home Assistant discovery root.
	DefaultDiscoveryPrefix = "homeassistant"
)

// Availability payloads published on the per-station availability topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("3f0c9a4e")
//	// Returns: "vantage/state/3f0c9a4e"
type Topics struct{}

// State returns the retained topic carrying a station's projected readings.
//
// Example: vantage/state/3f0c9a4e
func (Topics) State(entryID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, entryID)
}

// Availability returns the retained online/offline topic for a station.
//
// Example: vantage/availability/3f0c9a4e
func (Topics) Availability(entryID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, entryID)
}

// Health returns the topic for a station's refresh health.
//
// Example: vantage/health/3f0c9a4e
func (Topics) Health(entryID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, entryID)
}

// RefreshCommand returns the topic that requests an immediate refresh.
//
// Example: vantage/command/3f0c9a4e/refresh
func (Topics) RefreshCommand(entryID string) string {
	return fmt.Sprintf("%s/command/%s/refresh", TopicPrefix, entryID)
}

// Discovery returns the Home Assistant discovery config topic for one sensor.
// An empty prefix falls back to DefaultDiscoveryPrefix.
//
// Example: homeassistant/sensor/0001D0A1B2C3_temp_out/config
func (Topics) Discovery(prefix, uniqueID string) string {
	if prefix == "" {
		prefix = DefaultDiscoveryPrefix
	}
	return fmt.Sprintf("%s/sensor/%s/config", prefix, uniqueID)
}

// SystemStatus returns the process status topic used for LWT.
//
// Example: vantage/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllRefreshCommands returns a pattern matching refresh commands for every station.
//
// Pattern: vantage/command/+/refresh
func (Topics) AllRefreshCommands() string {
	return fmt.Sprintf("%s/command/+/refresh", TopicPrefix)
}

// AllStates returns a pattern matching every station state topic.
//
// Pattern: vantage/state/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// EntryIDFromCommand extracts the entry ID from a refresh command topic.
// It reports false when the topic does not match AllRefreshCommands.
func (Topics) EntryIDFromCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefix+"/command/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/refresh")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
