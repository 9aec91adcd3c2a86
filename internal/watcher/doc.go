// Package watcher provides table-scoped subscriptions with enter, exit and
// update callbacks on top of the incremental engine, plus per-record and
// whole-table pause/resume of the externally visible state.
package watcher
