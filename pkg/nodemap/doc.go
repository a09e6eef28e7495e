// Package nodemap provides the node map of one scope: name resolution with
// suggestions, feature enumeration, invalidation and polling, an advisory
// lock, YAML node descriptions and feature streams.
//
// A node description lists node definitions:
//
//	d, err := nodemap.LoadDescription("camera.yaml")
//	g, err := nodemap.FromDescription(d)
//	width, err := g.Integer("Width")
//
// A miss in Resolve fails with errkind.ErrNotFound and carries the closest
// feature names; errkind.Suggestions extracts them.
package nodemap
