// Package postgres implements the store interfaces over PostgreSQL through
// database/sql and the pgx driver. Claims and reclamation are single
// conditional UPDATE statements so concurrent workers never share a task.
package postgres
