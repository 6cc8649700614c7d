// Package domain contains the entities of the application batch runner:
// jobs, batches and their tasks, and generated applications. It also holds
// the pure rules over them, such as deriving a batch status from its task
// counts, independent of storage and transport.
package domain
