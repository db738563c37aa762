// Package api implements the HTTP REST API and WebSocket server for the Vantage bridge.
//
// This package provides:
//   - REST endpoints to add, inspect, tune and remove configured stations
//   - On-demand refresh and the current projected readings of each station
//   - WebSocket hub relaying refresh outcomes to live clients
//   - Prometheus exposition of refresh and reading metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server sits in front of the integration manager. Handlers never talk
// to a station directly: adds, option changes and refreshes go through the
// manager, which owns one refresh coordinator per station. Completed
// refreshes fan out from the manager to the hub, which forwards them to
// every client subscribed to that station.
//
// # Graceful Degradation
//
// The server operates without MQTT. The health endpoint reports the broker
// as disconnected, everything else keeps working.
package api
