// Package persistence keeps arena-shell session state and per-camera
// feature snapshots across restarts.
//
// A Store owns one directory:
//
//	session.json              discovery timeout, current and known cameras
//	features/<mac>.yaml       feature stream saved from a camera's node map
//
// Feature files use the nodemap feature stream format, so they can also
// be loaded with the shell's load command.
package persistence
