// Package harness runs filter conformance scenarios.
//
// A scenario names an entity, a client filter and the outcome it expects:
//
//	name: relation_exists
//	description: "A relation-qualified key tests for at least one related row"
//	entity: users
//	filter:
//	  "orders:status": paid
//	assertions:
//	  - type: trace_contains
//	    call: has(orders, >=, 1, and) {
//	  - type: rows
//	    ids: [1, 3]
//
// # Assertion Types
//
//   - accepted: the filter compiles
//   - rejected: the filter fails validation; field, code and message are
//     matched when set
//   - sql: the rendered SQLite statement matches exactly
//   - rows: the primary keys returned, in order
//   - row_count: the number of rows returned
//   - trace_contains: one line of the adapter trace
//
// # Golden Files
//
// The trace of an accepted filter (or the rejection) is compared against a
// golden file. In tests, RunWithGolden uses testdata/golden; the CLI keeps
// golden files in a golden/ directory next to the scenarios.
package harness
