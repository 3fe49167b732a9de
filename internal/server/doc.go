// Package server hosts the Fiber HTTP service that exposes every configured
// kind's local data manager: object reads that refresh through the upstream
// when missing or stale, batch reads, writes, and a server-sent event stream
// of live updates. The kind registry built from config is the glue that binds
// each kind name to its manager and upstream fetcher. Keep exports narrow and
// accept explicit dependencies so tests can inject fake fetchers.
package server
