// Package events carries batch lifecycle notifications between the runner
// and its consumers.
//
// The runner emits BatchCreated, TaskCompleted and BatchFinished events
// through an EventEmitter. Consumers such as the worker wake queue and the
// runner metrics register an EventHandler on the InMemoryEventEmitter and
// never import the runner itself.
package events
