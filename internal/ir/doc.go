// Package ir provides the canonical value and event types for routine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - State trees, payloads, responses and errors are all ir.Value
//   - A nil Value is the absent marker; Null is an explicit null
//   - Lifecycle events carry an explicit Kind, never a parsed type string
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - All JSON tags use snake_case
package ir
