// Package metrics defines the sinks used to observe simulations. Sinks like
// PromSink and InfluxSink record every estimate and persisted simulation and
// can be combined with NewMultiSink. Optional recorder interfaces let a sink
// opt into validation rejections and persistence failures.
package metrics
