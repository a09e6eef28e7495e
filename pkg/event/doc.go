// Package event implements the device event channel.
//
// A Channel owns a fixed pool of event buffers. Encoded payloads from a
// Source fill free buffers; Wait takes the oldest one, applies the values
// it carries to the device node map and returns the buffer to the pool.
// Events arriving while every buffer is full are dropped and counted.
package event
