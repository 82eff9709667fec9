package doorbird

import "fmt"

// monitorHandler receives one station's monitor callbacks on the device's
// goroutine and hands them to the loop.
type monitorHandler struct {
	i       *Integration
	entryID string
	session *ConfiguredDoorBird
}

// HandleEvent implements bha.MonitorHandler.
func (h *monitorHandler) HandleEvent(event string) {
	if !h.i.loop.Submit(func() { h.i.fireEvent(h.entryID, h.session, event) }) {
		h.i.logger.Debug("event loop stopped, dropping DoorBird event", "entry_id", h.entryID, "event", event)
	}
}

// HandleError implements bha.MonitorHandler. The monitor has already
// stopped, so the entry is reloaded to reconnect.
func (h *monitorHandler) HandleError(message string) {
	device := h.session.Device()
	h.i.logger.Error(fmt.Sprintf("Error on DoorBird monitor %s: %s", h.session.Name(), message),
		"entry_id", h.entryID, "host", device.Host(), "username", device.Username())

	h.i.loop.Submit(func() {
		if !h.i.current(h.entryID, h.session) {
			return
		}
		h.i.reloader.ScheduleReload(h.entryID)
	})
}

// current reports whether session is still the one registered for entryID.
// Runs on the loop.
func (i *Integration) current(entryID string, session *ConfiguredDoorBird) bool {
	reg, ok := i.state.entries[entryID]
	return ok && reg.Session == session
}

// fireEvent publishes doorbird_<event> for a station. Runs on the loop.
func (i *Integration) fireEvent(entryID string, session *ConfiguredDoorBird, event string) {
	if !i.current(entryID, session) {
		i.logger.Debug("dropping event for unloaded DoorBird", "entry_id", entryID, "event", event)
		return
	}

	data := session.EventData()
	if entityID, ok := i.eventCamera(entryID, event); ok {
		data[DataEntityID] = entityID
	} else if entityID, ok := i.state.eventEntityIDs[event]; ok {
		data[DataEntityID] = entityID
	}
	i.bus.Fire(EventType(event), entryID, data)
}
