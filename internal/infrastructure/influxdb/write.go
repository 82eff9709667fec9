package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// eventMeasurement holds one point per fired door station event.
const eventMeasurement = "doorbird_event"

// EventPoint is a single door station event.
type EventPoint struct {
	// Type is the bus event type, e.g. "doorbird_doorbell".
	Type string

	// EntryID identifies the config entry (door station) that fired it.
	EntryID string

	// EntityID is the entity mapped to the event kind, if any.
	EntityID string

	// Time defaults to now.
	Time time.Time
}

// newEventPoint builds the line protocol point for e.
func newEventPoint(e EventPoint) *write.Point {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"event_type": e.Type,
	}
	if e.EntryID != "" {
		tags["entry_id"] = e.EntryID
	}
	if e.EntityID != "" {
		tags["entity_id"] = e.EntityID
	}

	return write.NewPoint(eventMeasurement, tags, map[string]interface{}{"count": 1}, ts)
}

// WriteEvent queues one event point. Dropped silently when disconnected.
func (c *Client) WriteEvent(e EventPoint) {
	if !c.IsConnected() {
		return
	}
	c.queued.Add(1)
	c.writeAPI.WritePoint(newEventPoint(e))
}
