// Package mqtt connects the bridge to an MQTT broker.
//
// It wraps paho.mqtt.golang with:
//   - auto-reconnect and subscription replay
//   - a retained system status topic with an offline Last Will
//   - panic recovery around message handlers
//   - topic builders for the vantage/ namespace and Home Assistant discovery
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllRefreshCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.Topics{}.EntryIDFromCommand(topic)
//	        return manager.Refresh(ctx, id)
//	    })
package mqtt
