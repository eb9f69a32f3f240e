// Package opqueue runs operation groups one at a time, in submission order.
//
// Every reconciliation or ping pass is submitted to a single Queue. Submit
// never blocks and never fails: the queue is unbounded, and errors or
// panics raised by an operation are logged by the consumer goroutine
// instead of being returned to the submitter. Because only the consumer
// runs operations, no two passes ever touch devices at the same time.
package opqueue
