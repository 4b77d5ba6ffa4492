// Package store executes compiled filter statements and returns rows as IR
// objects.
//
// # Database Configuration
//
// SQLite databases are opened with:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Postgres goes through pgx. Both executors return each row as an
// ir.IRObject whose keys are the result columns in select order.
package store
