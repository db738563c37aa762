// Package entry manages configuration entries: the persisted record of each
// weather station the bridge polls (host, display name, polling interval).
//
// Entries are created either from the stations section of the config file
// or through the API setup flow, and are identified by a generated ID. Each
// entry also carries the station's unique identity (the logger id, or a
// host-derived fallback) so the same station cannot be configured twice.
package entry
