// Package tool defines the capabilities a graph node can be bound to and the
// registry the engine resolves them from. A capability is either cooperative
// (it runs on the calling run's goroutine and honours its context) or blocking
// (the engine hands it to a bounded worker pool).
package tool
