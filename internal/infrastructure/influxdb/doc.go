// Package influxdb records door station activity as InfluxDB time series.
//
// It wraps influxdb-client-go v2 with a ping on connect and the
// non-blocking, batched write API. Each bus event becomes one point in
// the doorbird_event measurement, tagged by event type, entry and entity.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // optional sink, carry on without it
//	}
//	client.SetOnError(func(err error) { logger.Warn("influx write failed", "error", err) })
//	client.WriteEvent(influxdb.EventPoint{Type: "doorbird_doorbell", EntryID: id})
package influxdb
