// Package batch implements the application batch runner: a durable task
// queue over store.BatchStore in which every state change is a conditional
// update, so HTTP steppers, the worker route and background workers can
// drive the same batches concurrently without coordination.
//
// A step claims the oldest PENDING task of a batch (after returning stale
// RUNNING tasks to PENDING), builds its artifacts through an ArtifactBuilder
// and completes it. The batch status is reconciled from task counts after
// every claim that finds no work and after every completion.
package batch
