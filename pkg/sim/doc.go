// Package sim provides in-process GigE Vision cameras.
//
// A Backend carries the four node maps of a camera, loaded from the
// embedded YAML descriptions, and renders test pattern frames into the
// acquisition engine:
//
//   - free-run at AcquisitionFrameRate while TriggerMode[FrameStart] is Off
//   - one frame per TriggerSoftware while it is On
//   - one frame per AcquisitionStart in SingleFrame mode
//
// Chunks enabled with ChunkSelector/ChunkEnable trail the image while
// ChunkModeActive is set. Every frame raises an ExposureEnd event, and
// TestEventGenerate raises a Test event; events are sent only while
// their EventNotification is On.
//
// A Network groups cameras behind the discovery and connection
// interfaces of package system.
package sim
