// Package testdb provides PostgreSQL helpers for integration tests: a
// connection gated on DATABASE_URL, the embedded schema applied with goose,
// rollback-only transactions and row fixtures.
package testdb
