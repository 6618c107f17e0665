// Package influxdb records Gatehouse authentication metrics in InfluxDB.
//
// Two measurements are written:
//
//	auth_decision  tags: action, outcome, reason   field: count
//	auth_login     tags: result                    field: duration_ms
//
// Writes are non-blocking and batched according to config.yaml
// (batch_size, flush_interval). Batch errors are delivered through the
// SetOnError callback; connection and health check errors are returned
// directly.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthDecision("access_denied", "forbidden", "insufficient_role", time.Now())
package influxdb
