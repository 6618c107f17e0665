package audit

import (
	"time"

	"github.com/nerrad567/gatehouse/internal/infrastructure/mqtt"
)

// JSONPublisher is the part of the MQTT client the audit sink needs.
type JSONPublisher interface {
	PublishJSON(topic string, v any) error
}

// MQTTSink publishes each event to gatehouse/events/auth/<action>.
func MQTTSink(pub JSONPublisher) Sink {
	return SinkFunc(func(evt Event) error {
		return pub.PublishJSON(mqtt.Topics{}.AuthEvent(string(evt.Action)), evt)
	})
}

// DecisionWriter is the part of the InfluxDB client the audit sink needs.
type DecisionWriter interface {
	WriteAuthDecision(action, outcome, reason string, at time.Time)
}

// MetricsSink counts each event as an auth_decision point. Subjects are
// not written, only the low-cardinality action, outcome and reason.
func MetricsSink(w DecisionWriter) Sink {
	return SinkFunc(func(evt Event) error {
		w.WriteAuthDecision(string(evt.Action), evt.Outcome, evt.Reason, evt.CreatedAt)
		return nil
	})
}
