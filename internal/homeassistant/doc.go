// Package homeassistant is a client for the Home Assistant websocket API.
//
// A single authenticated connection serves three purposes:
//
//   - the Z-Wave JS device registry round trips (zwave.Registry): listing
//     devices, reading and writing configuration parameters, refreshing
//     node values
//   - the entity state source for the LED input channels: current states
//     are loaded with get_states and kept current from state_changed events
//   - custom trigger events fired by Home Assistant automations
//
// Protocol:
//
//	server: {"type":"auth_required"}
//	client: {"type":"auth","access_token":"..."}
//	server: {"type":"auth_ok"}
//	client: {"id":1,"type":"config/device_registry/list"}
//	server: {"id":1,"type":"result","success":true,"result":[...]}
//
// Requests are correlated by id. One goroutine reads the socket and hands
// results to waiting callers; state changes and trigger events are
// delivered in order by a separate worker so slow handlers never stall
// the reader.
//
// When the connection drops, pending requests fail with ErrNotConnected
// and the client reconnects with exponential backoff. After reconnecting
// it re-subscribes, reloads all states and reports every state that
// changed while it was away.
package homeassistant
