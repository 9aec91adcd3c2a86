// Package ir provides the foundational types shared by every recs package:
// record keys, typed property values, property objects and record sets.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Records are fixed-size value types, comparable and usable as map keys
//   - Numbers are finite float64 with one canonical form; exact big integers use BigInt
//   - Value is a sealed interface so type switches over it are exhaustive
//   - Iteration that reaches callers is always in sorted order (deterministic)
package ir
