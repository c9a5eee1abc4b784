// Package vectorstore provides vector storage backends for the knowledge
// collection.
//
// The engine reads analysis records out of the collaborating application's
// vector collection (default "knowledge_consolidator") and feeds them to
// identity resolution and score normalization. Two backends implement the
// Store interface:
//
//   - QdrantStore: external Qdrant server over native gRPC (port 6334).
//     Transient failures retry with exponential backoff behind a circuit
//     breaker.
//   - ChromemStore: embedded chromem-go with gob persistence. Zero external
//     services, the default for single-binary deployments.
//
// Both stores delegate text embedding to an Embedder, wired from the
// embeddings package.
package vectorstore
