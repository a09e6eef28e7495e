// Package callback keeps node and device callback registrations alive.
//
// A registration holds its handler and arguments until Deregister. Node
// handlers run on the goroutine that invalidated the node, outside every
// lock; device handlers run on the stream delivery goroutine. Panics in
// handlers are not recovered.
package callback
