// Package station implements the HTTP client for a Davis Vantage weather
// station's local data endpoint.
//
// The station (a WeatherLinkIP-style logger) serves a single JSON document at
// /webrtd.json containing two groups:
//
//	{
//	  "rtd":  { "tempout": "72.5", "bartr": "20", "date": "2026/03/01", ... },
//	  "info": { "ver": "1.2.3", "stnmod": "16", "stnname": "Roof", "wid": "001D0A..." }
//	}
//
// The client performs one GET per Fetch with caching disabled and a bounded
// deadline. It never retries; scheduling and failure policy belong to the
// caller (see package coordinator).
//
// # Errors
//
// Every failure wraps exactly one of ErrConnect, ErrTimeout, ErrProtocol or
// ErrAuth so callers can branch with errors.Is or Classify.
//
// # Thread Safety
//
// Client is safe for concurrent use. Payload values are never mutated after
// Fetch returns them.
package station
