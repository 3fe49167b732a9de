// Package cache defines the disk-backed store that persists one file per
// object under StoragePath/<kind>/<id>.json. The store exposes read/write
// primitives with safe semantics (temp file + rename) and reports a missing
// file as ErrNotFound rather than as a failure, so higher layers can treat it
// as a plain cache miss. The local data managers depend on this package for
// write-behind persistence without duplicating filesystem logic.
package cache
