// Package mqttbridge connects the dimmer sync service to MQTT.
//
// Inbound, it maps command topics to service triggers:
//
//	dimmersync/command/sync   empty payload: resync with the last table
//	                          {"leds":[...7 entries]}: sync to that table
//	dimmersync/command/ping   ping the configured devices
//
// Outbound, it publishes every aggregated LED table retained on
// dimmersync/leds and every finished run on dimmersync/runs/{kind}. The
// bridge is a history.Recorder, so runs reach MQTT through the same path
// that writes them to SQLite.
package mqttbridge
