package sensor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// placeholder is what the station sends for a reading it does not have.
const placeholder = "---"

// Barometer trend labels.
const (
	TrendFallingRapidly = "Falling Rapidly"
	TrendFallingSlowly  = "Falling Slowly"
	TrendSteady         = "Steady"
	TrendRisingSlowly   = "Rising Slowly"
	TrendRisingRapidly  = "Rising Rapidly"
	TrendUnrecognised   = "---"
	TrendUnknown        = "Unknown"
)

// Icons shown for barometer trend states.
const (
	IconBaroTrend       = "mdi:chart-line"
	IconTrendingDown    = "mdi:trending-down"
	IconTrendingNeutral = "mdi:trending-neutral"
	IconTrendingUp      = "mdi:trending-up"
	IconTrendUnknown    = "mdi:help-circle-outline"
	IconLastUpdate      = "mdi:clock-check-outline"
)

// stationTimeLayout is the combined rtd.date + rtd.time format.
const stationTimeLayout = "2006/01/02 15:04:05"

type trendState struct {
	label string
	icon  string
}

var trendCodes = map[float64]trendState{
	-60: {TrendFallingRapidly, IconTrendingDown},
	-20: {TrendFallingSlowly, IconTrendingDown},
	0:   {TrendSteady, IconTrendingNeutral},
	20:  {TrendRisingSlowly, IconTrendingUp},
	60:  {TrendRisingRapidly, IconTrendingUp},
}

// isBlank reports whether a raw value means "no reading".
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || s == placeholder
	default:
		return false
	}
}

// parseNumber converts a decoded JSON scalar to float64. NaN and the
// infinities parse like any other number.
func parseNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// toFloat converts a decoded JSON scalar to a finite float64.
func toFloat(v any) (float64, error) {
	f, err := parseNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return f, nil
}

// Value extracts this descriptor's reading from an rtd group.
//
// Returns:
//   - any: float64 for numeric readings, otherwise the raw value
//   - bool: false when the reading is missing, a placeholder, blank, or
//     fails numeric coercion (logged at warning)
func (d Descriptor) Value(rtd map[string]any, logger Logger) (any, bool) {
	raw, present := rtd[d.Key]
	if !present || isBlank(raw) {
		return nil, false
	}
	if !d.Numeric() {
		return raw, true
	}
	f, err := toFloat(raw)
	if err != nil {
		loggerOrNoop(logger).Warn("could not convert reading to number",
			"reading", d.Name, "key", d.Key, "value", raw, "error", err)
		return nil, false
	}
	return f, true
}

// BaroTrend maps rtd.bartr to a trend label and icon.
//
// A missing field yields ok=false. A non-numeric value yields "Unknown"
// and a numeric value outside the known codes, NaN and infinities
// included, yields "---".
func BaroTrend(rtd map[string]any, logger Logger) (label, icon string, ok bool) {
	raw, present := rtd["bartr"]
	if !present {
		return "", IconBaroTrend, false
	}
	code, err := parseNumber(raw)
	if err != nil {
		loggerOrNoop(logger).Warn("barometer trend is not numeric", "value", raw)
		return TrendUnknown, IconTrendUnknown, true
	}
	if st, known := trendCodes[code]; known {
		return st.label, st.icon, true
	}
	loggerOrNoop(logger).Info("unrecognised barometer trend code", "code", code)
	return TrendUnrecognised, IconTrendUnknown, true
}

// LastUpdate combines rtd.date and rtd.time, interpreted in loc.
// Missing parts or an unparseable combination yield ok=false.
func LastUpdate(rtd map[string]any, loc *time.Location, logger Logger) (time.Time, bool) {
	date, _ := rtd["date"].(string)
	clock, _ := rtd["time"].(string)
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || clock == "" {
		loggerOrNoop(logger).Debug("station date or time missing", "date", date, "time", clock)
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(stationTimeLayout, date+" "+clock, loc)
	if err != nil {
		loggerOrNoop(logger).Warn("could not parse station timestamp", "date", date, "time", clock, "error", err)
		return time.Time{}, false
	}
	return ts, true
}
