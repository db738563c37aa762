package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-weather/internal/sensor"
)

// MeasurementWeather is the measurement every station observation is written to.
const MeasurementWeather = "weather"

// StationTags identifies the station a point belongs to.
type StationTags struct {
	EntryID  string
	UniqueID string
	Name     string
}

// WriteReadings records one refresh worth of projected readings.
// Nothing is written when no reading carries a value.
func (c *Client) WriteReadings(tags StationTags, readings []sensor.Reading, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := ReadingsPoint(tags, readings, ts)
	if point == nil {
		return
	}
	c.writeAPI.WritePoint(point)
}

// ReadingsPoint builds the weather point for readings. Numeric readings
// become float fields named by key; the barometer trend becomes a string
// field. The last update timestamp is not a field since it is the point time
// when present.
func ReadingsPoint(tags StationTags, readings []sensor.Reading, ts time.Time) *write.Point {
	fields := make(map[string]any, len(readings))
	for _, r := range readings {
		if !r.Available || r.Value == nil {
			continue
		}
		switch v := r.Value.(type) {
		case float64:
			fields[r.Key] = v
		case string:
			fields[r.Key] = v
		case time.Time:
			if r.Key == sensor.KeyLastUpdate {
				ts = v
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}

	t := map[string]string{"entry_id": tags.EntryID}
	if tags.UniqueID != "" {
		t["station"] = tags.UniqueID
	}
	if tags.Name != "" {
		t["name"] = tags.Name
	}

	return write.NewPoint(MeasurementWeather, t, fields, ts)
}
