// Package localdata implements the per-kind local data manager: an in-memory
// cache of timestamped entries backed by one JSON file per object, with
// freshness-based auto refresh and a live update fan-out for observers.
//
// A Manager owns the cache slots and the per-identifier subjects of a single
// kind. Every read that needs the slot map, every staleness decision and every
// store runs under the Manager's mutex; caller-supplied fetch and update
// functions run outside of it. Disk writes trail behind the in-memory state
// through a per-identifier queue, so the file for an identifier only ever moves
// forward to the latest committed entry.
//
// Managers for different kinds never share state or locks.
package localdata
