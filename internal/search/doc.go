// Package search turns a client filter for a named entity into an executed,
// paged statement.
//
// A request flows through:
//  1. auth.Guard: the caller needs the "search:<entity>" ability
//  2. filter.Compiler: depth, whitelist and operator checks, then predicate
//     emission into a queryir.Builder
//  3. querysql.SQLCompiler: parameterized SQL for the configured dialect
//  4. store.Executor: rows back as IR objects
//
// Compiled selects are cached by filter hash, so a repeated filter skips
// validation and emission. Rejected filters are never cached.
package search
