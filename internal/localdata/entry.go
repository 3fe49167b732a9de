package localdata

import "time"

// Object is a cached payload identified by ID. Only the identifier and the
// JSON representation matter to the Manager.
type Object[ID comparable] interface {
	ObjectID() ID
}

// Entry pairs an object with the time it was last updated. It is the unit
// stored in memory and serialized to disk.
type Entry[T any] struct {
	LastUpdate time.Time `json:"lastUpdate"`
	Object     T         `json:"object"`
}

// Supersedes reports whether e should replace existing. Equal timestamps let
// the most recently applied entry win.
func (e Entry[T]) Supersedes(existing *Entry[T]) bool {
	return existing == nil || !e.LastUpdate.Before(existing.LastUpdate)
}
