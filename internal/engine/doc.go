// Package engine implements the incremental query evaluator.
//
// Define turns a fragment list into a live Query: a matching set kept equal
// to query.Run as the store changes, and a stream of typed events describing
// each change of that set.
//
// ARCHITECTURE:
//
// Synchronous Propagation:
// A Query subscribes to the store tables its fragments reference. Every
// store update is handled on the mutating goroutine, and every resulting
// event is delivered before the store call returns. There is no queue and
// no batching, so two sequential Set calls yield their events in order.
//
// Two modes, chosen once at Define:
//
//	direct  no setting fragments. Only the updated record can change
//	        membership; a member is rechecked against the fragments on
//	        the updated table (pass: change, fail: exit), a non-member
//	        against all fragments (pass: enter, fail: nothing).
//	proxy   ProxyRead or ProxyExpand present. Any update on a referenced
//	        table reruns the query and diffs the result: exit for records
//	        that left, enter for records that joined, change for the rest.
//	        O(table size) per update.
//
// Store noop updates are dropped in both modes.
//
// Derived Surfaces:
// DefineEnterQuery, DefineExitQuery and DefineUpdateQuery attach a handler
// for one event type. LiveView keeps a sorted record slice for UI bindings,
// optionally refreshed only when the set itself changes.
package engine
