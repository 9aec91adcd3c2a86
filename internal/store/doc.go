// Package store is the property store: per-table columnar storage keyed by
// record, mutation primitives, and synchronous change notification.
//
// # Presence
//
// A record has properties in a table iff every required (non-optional)
// field has a stored value. Get, Has and the GetAll* scans only ever see
// complete records; a write that clears a required field makes the record
// exit the table even though its other columns are kept.
//
// # Notification
//
// Every Set, Update and Remove call produces exactly one Update, delivered
// synchronously before the call returns:
//
//	enter   no properties before, properties after
//	exit    properties before, none after
//	change  properties before and after, and they differ
//	noop    nothing readable changed
//
// There is no batching or queueing. A listener that mutates the store
// triggers a nested dispatch that completes before the outer dispatch
// continues with the next listener.
//
// # Indexes
//
// Each table keeps an inverse index of its relation field (parent ->
// children) for proxy expansion and, with WithValueIndex, a properties-hash
// index for full-schema GetAllWithProperties lookups.
package store
