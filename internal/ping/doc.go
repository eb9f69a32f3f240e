// Package ping asks the device registry to refresh the live values of a
// configured set of devices.
//
// Targets are matched by exact device name. Each target names the command
// class to refresh; NoOperation refreshes every value of the device. A
// failed refresh is logged and the pass moves on to the next device.
package ping
