package doorbird

import "time"

// Domain is the integration's domain and the prefix of its bus events.
const Domain = "doorbird"

// Manufacturer is reported in device metadata.
const Manufacturer = "Bird Home Automation"

// Bus event types.
const (
	EventTypeDoorbell     = Domain + "_doorbell"
	EventTypeMotionSensor = Domain + "_motionsensor"
)

// Keys of the data carried by bus events.
const (
	DataTimestamp        = "timestamp"
	DataLiveVideoURL     = "live_video_url"
	DataLiveImageURL     = "live_image_url"
	DataRTSPLiveVideoURL = "rtsp_live_video_url"
	DataHTML5ViewerURL   = "html5_viewer_url"
	DataEntityID         = "entity_id"
)

// Device info keys.
const (
	infoPrimaryMAC = "PRIMARY_MAC_ADDR"
	infoWiFiMAC    = "WIFI_MAC_ADDR"
	infoRelays     = "RELAYS"
	infoDeviceType = "DEVICE-TYPE"
	infoFirmware   = "FIRMWARE"
)

const (
	// pressTimeout bounds one relay or light command.
	pressTimeout = 10 * time.Second

	// cleanupTimeout bounds teardown after a failed setup.
	cleanupTimeout = 10 * time.Second
)

// EventType returns the bus event type for a device event name.
func EventType(event string) string {
	return Domain + "_" + event
}
