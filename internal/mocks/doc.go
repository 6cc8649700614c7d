// Package mocks provides shared test doubles for the batch runner and the
// HTTP layer.
//
// MemoryStore implements the batch, job and application stores in memory,
// including claim races and injected failures, so runner and handler tests
// exercise the same semantics as the Postgres stores. MockArtifactBuilder and
// MockJWTService use function fields or canned results:
//
//	store := mocks.NewMemoryStore()
//	builder := mocks.NewMockArtifactBuilderWithURLs("https://pdf/r.pdf", "https://pdf/c.pdf")
//	runner := batch.NewRunner(store, store, store, builder, batch.Config{})
package mocks
