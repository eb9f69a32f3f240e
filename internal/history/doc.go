// Package history records the outcome of every operation group.
//
// A Run is one reconciliation or ping pass. Runs are handed to one or more
// Recorders: the SQLite repository keeps a local audit trail that survives
// restarts, while other recorders forward the same data to metrics or MQTT.
// Only outcomes are stored; desired LED state is never persisted.
package history
