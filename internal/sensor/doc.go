// Package sensor projects a station payload into typed readings.
//
// The package holds the fixed descriptor table for the standard readings
// plus two derived readings (barometer trend and last update), and builds
// one Entity per reading for a configured station. Entities never perform
// I/O: they read whatever payload they are handed, normally the
// coordinator's cached one.
//
// Field-level problems (placeholders, unparseable numbers, malformed
// timestamps) leave a single reading without a value and never fail the
// projection as a whole. A reading is unavailable only when there is no
// payload at all.
package sensor
