// Package reconcile converges HomeSeer dimmer status LEDs toward a desired
// led.Table.
//
// A pass discovers the supported dimmers, then walks them in discovery
// order. For each device it reads the live configuration, and writes only
// the fields that differ, in a fixed order:
//
//	colours (LED 1..7), blinks (LED 1..7), custom status mode, blink frequency
//
// A rejected or failed write marks the attempt for retry; the whole device
// loop is then run once more, reading every device again. A device whose
// configuration cannot be read is skipped for that attempt only and does
// not cause a retry on its own. After the last attempt the outcome is
// final and is reported as Converged or ConvergedWithFailures.
//
// Thread Safety:
//   - An Engine must not run two passes at once. Callers funnel passes
//     through a single operation queue.
package reconcile
