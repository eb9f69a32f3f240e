// Package metrics exports Prometheus metrics for dimmer LED sync.
//
// Metrics is a history.Recorder: every finished run bumps runs_total and
// feeds the duration, attempts and write counters. Queue depth and
// connection state are gauges sampled at scrape time.
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	m.ObserveQueue(queue.Pending)
//	router.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
package metrics
