// Package log captures stream events: stream state changes, buffer
// movements between the input and output queues, device events applied to
// the node map, and worker errors.
//
// It is separate from operational logging (slog). A capture is a
// machine-readable trace of one or more stream sessions:
//
//	// Console while developing
//	cfg.StreamLogger = log.NewSlogAdapter(slog.Default())
//
//	// File for later analysis
//	fl, _ := log.NewFileLogger("camera.slog")
//	cfg.StreamLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// Files are CBOR with integer keys, one event after another; Reader
// iterates them with an optional Filter.
package log
