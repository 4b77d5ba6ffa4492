// Package ir provides the value model for client-supplied filter trees.
//
// This package contains value types and codecs only. All other internal
// packages import ir; ir imports nothing internal. This keeps the value model
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - IRObject preserves document order; emission order follows it
//   - Duplicate object keys collapse to the last value at the first position
//   - Every decoder takes a maximum nesting depth; input is attacker-controlled
//   - Only IRString, IRInt and IRFloat are primitive; IRBool and IRNull decode
//     faithfully but never satisfy a primitive contract
package ir
