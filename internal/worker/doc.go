// Package worker drives application batches without a user in the loop.
//
// A Dispatcher runs a small pool of goroutines that repeatedly ask a Stepper
// for the next available step. The Stepper is either the batch runner itself
// (in-process dispatch inside the server) or an HTTPStepper calling the
// secret-protected worker route (cmd/batch-worker). Idle workers wait for a
// wake signal or the poll interval; a ticker sweeps stale claims.
package worker
