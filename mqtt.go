// Package mqtt implements the firmware-side MQTT v5 client and its
// supporting pieces: packet id bookkeeping (ack.go), the topic dispatcher
// (dispatcher.go), and Prometheus metrics (metrics.go). The wire codec
// lives in the packet subpackage; the byte-stream abstraction lives in
// transport.
package mqtt
