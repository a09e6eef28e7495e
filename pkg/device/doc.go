// Package device ties one camera's node maps, acquisition engine and event
// channel together.
//
// A Device is created by a System from a Backend, the transport facing
// half of a connection. Backends provide the four node maps (Device,
// TLDevice, TLStream, TLInterface), a frame source and an event source.
// While the device streams, nodes marked locked in their description
// (image size, pixel format, chunk selection) reject writes.
//
// Close releases everything the device owns. Later calls fail with
// errkind.ErrIllegalState.
package device
