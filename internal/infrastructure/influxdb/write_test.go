package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func TestNewEventPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		point   EventPoint
		want    []string
		notWant []string
	}{
		{
			name:  "all tags",
			point: EventPoint{Type: "doorbird_doorbell", EntryID: "e1", EntityID: "camera.x", Time: ts},
			want:  []string{"doorbird_event,", "entity_id=camera.x", "entry_id=e1", "event_type=doorbird_doorbell", " count=1i ", "1700000000"},
		},
		{
			name:    "no entity",
			point:   EventPoint{Type: "doorbird_motionsensor", EntryID: "e1", Time: ts},
			want:    []string{"event_type=doorbird_motionsensor"},
			notWant: []string{"entity_id="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := write.PointToLineProtocol(newEventPoint(tt.point), time.Second)
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("line = %q, want containing %q", line, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(line, w) {
					t.Errorf("line = %q, should not contain %q", line, w)
				}
			}
		})
	}
}

func TestNewEventPoint_DefaultsTime(t *testing.T) {
	before := time.Now()
	p := newEventPoint(EventPoint{Type: "doorbird_doorbell"})
	if p.Time().Before(before) {
		t.Errorf("Time() = %v, want >= %v", p.Time(), before)
	}
}
