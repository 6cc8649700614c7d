// Package store defines the persistence contracts of the batch runner.
// Implementations live under internal/platform; the runner depends only on
// these interfaces so it can run against Postgres or an in-memory fake.
package store
