// Package metrics records the progress of consensus nodes.
//
// A Recorder is registered as an event handler on each node and logs every event
// as a structpb.Struct measurement to a Logger. The JSON logger writes the
// measurements as an array of Any messages that the plotting package can read back.
package metrics
