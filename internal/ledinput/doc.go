// Package ledinput folds the fourteen per-LED state channels (a colour and a
// blink channel for each of the seven LEDs) into one led.Table.
//
// Channel names are built from two patterns, each containing a "{0}"
// placeholder that is replaced by the LED ordinal 1..7:
//
//	colour: sensor.dimmer_led_{0}_color
//	blink:  binary_sensor.dimmer_led_{0}_blink
//
// An Aggregator owns the current table. A single goroutine applies each
// change to it and publishes the new table to subscribers; a new subscriber
// is first sent the current table.
//
// Raw channel values never fail to decode. Unknown colours fall back to Off
// with a warning, and every blink value other than "on" means Off.
package ledinput
