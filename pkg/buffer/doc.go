// Package buffer holds image and chunk data payloads.
//
// Engine buffers come from an acquisition pool (Allocate) and are filled
// by the stream with Fill. Factory buffers are created, copied or
// converted by a Factory and belong to the caller until Destroy.
//
// Chunk data trails the image as GigE Vision chunk records:
//
//	[image][id 0][len] [chunk data][id][len] ... [chunk data][id][len]
//
// and is read through the chunk node map returned by ChunkGraph.
package buffer
