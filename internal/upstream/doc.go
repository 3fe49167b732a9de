// Package upstream supplies the fetch functions the local data managers call
// when an object is missing or stale. Objects are opaque JSON documents that
// carry an "id" field; single objects are fetched from <Upstream>/<id> and
// batches from <Upstream>?<BatchParam>=a,b as a JSON array. Connection level
// failures are reported as localdata.ErrOffline so the managers treat them as
// offline, while HTTP status failures surface as *StatusError.
package upstream
