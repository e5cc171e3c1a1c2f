// Package infra contains technical adapters such as the CSV readers, the
// MQTT schedule publisher and the metrics sinks. These packages should
// depend only on the interfaces defined in the core packages.
package infra
