// Package mqtt is Gatehouse's outbound event bus.
//
// Each audit record is published to gatehouse/events/auth/<action>.
// Gatehouse also keeps a retained online/offline message on
// gatehouse/system/status, with a Last Will so a crash flips it to
// offline. Payloads carry subject ids and reason tags, never credentials.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.PublishJSON(mqtt.Topics{}.AuthEvent("login_failed"), evt)
package mqtt
