package forward

import (
	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/influxdb"
)

// PointWriter stores event points. *influxdb.Client satisfies it.
type PointWriter interface {
	WriteEvent(e influxdb.EventPoint)
}

// Influx writes one point per bus event.
type Influx struct {
	writer PointWriter
	async  *host.AsyncListener
}

// NewInflux creates an InfluxDB recorder. Call Start, then subscribe Listen.
func NewInflux(writer PointWriter, queueSize int, logger Logger) *Influx {
	r := &Influx{writer: writer}
	r.async = host.NewAsyncListener("influxdb", queueSize, r.write, logger)
	return r
}

// Listen is the bus Listener.
func (r *Influx) Listen(e host.Event) { r.async.Listen(e) }

// Start launches the writer goroutine.
func (r *Influx) Start() { r.async.Start() }

// Stop writes what is queued and stops the writer goroutine.
func (r *Influx) Stop() { r.async.Stop() }

func (r *Influx) write(e host.Event) {
	entityID, _ := e.Data["entity_id"].(string)
	r.writer.WriteEvent(influxdb.EventPoint{
		Type:     e.Type,
		EntryID:  e.EntryID,
		EntityID: entityID,
		Time:     e.TimeFired,
	})
}
