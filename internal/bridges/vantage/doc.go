// Package vantage publishes weather-station entities to MQTT.
//
// For every configured station the bridge publishes:
//   - Home Assistant discovery configs, one per entity (retained)
//   - a retained state document carrying every projected reading
//   - a retained online/offline availability flag
//   - a periodic health document driven by the refresh coordinator status
//
// It also subscribes to vantage/command/+/refresh and forwards those
// requests to a Refresher, which joins any refresh already in flight.
//
// Topic structure:
//
//	vantage/state/{entry_id}
//	vantage/availability/{entry_id}
//	vantage/health/{entry_id}
//	vantage/command/{entry_id}/refresh
//	{discovery_prefix}/sensor/{unique_id}/config
package vantage
