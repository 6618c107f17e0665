package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAuthDecision = "auth_decision"
	MeasurementLogin        = "auth_login"
)

// WriteAuthDecision counts one guard decision.
//
// Tags are low-cardinality: action, outcome and reason. Subjects are
// deliberately not tagged; per-principal history lives in the audit store.
func (c *Client) WriteAuthDecision(action, outcome, reason string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"action":  action,
		"outcome": outcome,
	}
	if reason != "" {
		tags["reason"] = reason
	}

	c.writer.WritePoint(write.NewPoint(MeasurementAuthDecision, tags, map[string]interface{}{"count": 1}, at))
}

// WriteLogin records a login attempt and how long credential checking took.
func (c *Client) WriteLogin(success bool, duration time.Duration, at time.Time) {
	if !c.IsConnected() {
		return
	}

	result := "failure"
	if success {
		result = "success"
	}

	c.writer.WritePoint(write.NewPoint(
		MeasurementLogin,
		map[string]string{"result": result},
		map[string]interface{}{"duration_ms": float64(duration.Microseconds()) / 1000},
		at,
	))
}
