// Package influxdb exports reconcile and ping runs to an InfluxDB v2
// bucket, one point per run, so LED sync behaviour can be graphed next to
// the rest of the home's telemetry.
//
// Export is optional. Connect returns ErrDisabled when the influxdb
// section is switched off, and callers carry on without it:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	switch {
//	case errors.Is(err, influxdb.ErrDisabled):
//	case err != nil:
//	    return err
//	default:
//	    defer client.Close()
//	    sinks.add(history.NewPointRecorder(client))
//	}
//
// Writes are batched and never block. A failed batch reaches the
// SetOnError callback wrapped in ErrWriteFailed.
package influxdb
