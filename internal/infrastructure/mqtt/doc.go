// Package mqtt provides MQTT client connectivity for the dimmer sync service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnects
//   - Last Will and Testament (LWT) on dimmersync/status
//
// MQTT is an optional side channel: other home automation software can
// request a sync or ping on dimmersync/command/{sync,ping}, follow the
// current LED table on the retained dimmersync/leds topic and see each
// run's outcome on dimmersync/runs/{kind}.
//
// # Security Considerations
//
//   - Use TLS outside a trusted LAN (cfg.Broker.TLS=true)
//   - Anyone allowed to publish on dimmersync/command/# can trigger
//     device writes; restrict it with broker ACLs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        name, _ := mqtt.Topics{}.CommandName(topic)
//	        return handle(name, payload)
//	    })
package mqtt
