// Package events publishes research run lifecycle events.
//
// # Event Types
//
//   - research.started: a run was accepted and the pipeline is about to start
//   - research.completed: the pipeline finished without an error status
//   - research.failed: the pipeline finished with an error status
//   - research.cancelled: the run was cancelled before finishing
//
// # Usage
//
// Build events with an Emitter and hand them to a Publisher:
//
//	emitter := events.NewEmitter(events.EmitterConfig{ServiceName: "research-agent-service"})
//	event, err := emitter.Started(state)
//	err = publisher.Publish(ctx, event)
//
// NewPublisher returns a KafkaPublisher when Kafka is enabled and a
// NoopPublisher otherwise. Messages are keyed by run id so every event for a
// run lands on the same partition.
package events
