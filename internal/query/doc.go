// Package query provides the query fragment language and the batch
// evaluator.
//
// A query is an ordered list of fragments. Membership fragments (With,
// WithProperties, Without, WithoutProperties) test one record against one
// table. Setting fragments (ProxyRead, ProxyExpand) test nothing; they turn
// on relation traversal for the membership fragments that follow them:
//
//	ProxyRead(t, n)    a record also passes through its ancestors, following
//	                   t's relation field up to n hops
//	ProxyExpand(t, n)  a candidate's descendants, up to n hops down, are
//	                   admitted when they pass on their own
//
// Traversal stops at the first breaking state: a positive fragment that
// passes or a negative fragment that fails. Relation cycles are not
// detected; traversal simply ends after n hops.
//
// Run evaluates a list once. The incremental evaluator in package engine
// keeps the same result up to date as the store changes.
package query
