// Package integration wires configured station entries to running
// refresh coordinators.
//
// The Manager owns one coordinator per loaded entry. A station is loaded
// only after its first refresh succeeds; until then it has no entities.
// Every completed refresh is fanned out to the optional sinks: the MQTT
// bridge, InfluxDB history, Prometheus metrics, and WebSocket clients.
//
// It also implements the interactive flows around entries: adding a
// station (probe, identify, reject duplicates, persist, set up), changing
// its polling interval at runtime, and removing it.
package integration
