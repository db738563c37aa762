package station

import "errors"

// Fetch failure kinds. Every error returned by Client.Fetch wraps one of these.
var (
	// ErrConnect is returned when the station cannot be reached
	// (DNS failure, connection refused, reset).
	ErrConnect = errors.New("station: connection failed")

	// ErrTimeout is returned when the request exceeds its deadline.
	ErrTimeout = errors.New("station: request timed out")

	// ErrProtocol is returned for an unexpected HTTP status, an undecodable
	// body, or a document missing the rtd or info group.
	ErrProtocol = errors.New("station: protocol error")

	// ErrAuth is returned when the station answers 401 Unauthorized.
	ErrAuth = errors.New("station: authentication rejected")
)

// ErrorKind names the failure class of a fetch error.
type ErrorKind string

// Failure classes reported by Classify.
const (
	KindNone     ErrorKind = ""
	KindConnect  ErrorKind = "connect"
	KindTimeout  ErrorKind = "timeout"
	KindProtocol ErrorKind = "protocol"
	KindAuth     ErrorKind = "auth"
	KindUnknown  ErrorKind = "unknown"
)

// Classify maps an error back to its failure class. A nil error yields KindNone.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrConnect):
		return KindConnect
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	default:
		return KindUnknown
	}
}
