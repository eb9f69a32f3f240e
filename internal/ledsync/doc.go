// Package ledsync coordinates LED reconciliation and device pings.
//
// A Service turns triggers into operation groups on a single queue:
//
//   - every table published by the input aggregator (SyncDimmers)
//   - the periodic resync timer and manual resync requests (ResyncUsingLastTable)
//   - the periodic ping timer and manual ping requests (PingDevices)
//
// Each group checks the registry connection first and is skipped with an
// error log when it is down. The outcome of every group, skipped ones
// included, is handed to the configured history recorder.
package ledsync
