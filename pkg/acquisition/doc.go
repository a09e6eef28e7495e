// Package acquisition implements the buffer lifecycle of an image stream.
//
// An Engine owns a pool of buffers split between an input queue (free
// buffers) and an output queue (filled buffers waiting for the caller).
// Frames arriving from a Source are written into the oldest input buffer
// and appended to the output queue. When no input buffer is free, the
// buffer handling Policy decides which frame is lost:
//
//   - OldestFirst drops the arriving frame.
//   - OldestFirstOverwrite recycles the oldest unread output buffer.
//   - NewestOnly keeps only the newest frame in the output queue.
//
// Callers take buffers with GetBuffer or GetBuffers and give them back
// with Requeue. Start returns a Stream whose Close stops the engine.
package acquisition
