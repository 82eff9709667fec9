package doorbird

import (
	"strings"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/logbook"
)

// logbookName is the name shown for every DoorBird logbook entry.
const logbookName = "Doorbird"

// RegisterLogbook installs the describer for both DoorBird event types.
func (i *Integration) RegisterLogbook(lb *logbook.Logbook) {
	for _, eventType := range []string{EventTypeDoorbell, EventTypeMotionSensor} {
		lb.Register(Domain, eventType, i.Describe)
	}
}

// Describe renders a DoorBird bus event for the logbook. Call it on the loop.
func (i *Integration) Describe(e host.Event) logbook.Description {
	return describe(i.state.eventEntityIDs, e)
}

// describe attributes the event to the entity mapped to its kind, falling
// back to the entity id carried in the event.
func describe(eventEntityIDs map[string]string, e host.Event) logbook.Description {
	_, kind, _ := strings.Cut(e.Type, "_")

	entityID := eventEntityIDs[kind]
	if entityID == "" {
		entityID, _ = e.Data[DataEntityID].(string)
	}

	return logbook.Description{
		Name:     logbookName,
		Message:  "Event " + e.Type + " was fired",
		EntityID: entityID,
	}
}
