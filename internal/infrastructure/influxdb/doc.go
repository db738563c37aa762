// Package influxdb writes station observations to InfluxDB v2.
//
// Each successful refresh becomes one point in the "weather" measurement,
// tagged with the entry and station identifiers. Writes are batched and
// non-blocking; failures surface through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	client.WriteReadings(tags, readings, time.Now())
package influxdb
