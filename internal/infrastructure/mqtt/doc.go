// Package mqtt connects the bridge to an MQTT broker.
//
// The bridge publishes three kinds of traffic:
//
//	doorbird/status                   retained availability ("online"/"offline", also the LWT)
//	doorbird/event/<event type>       JSON bus events, QoS from config, never retained
//	homeassistant/<component>/.../config  retained Home Assistant discovery
//
// and subscribes to doorbird/command/+ to press button entities.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Topics{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.PublishJSON(client.Topics().Event(entryID, "doorbird_doorbell"), data, false)
package mqtt
