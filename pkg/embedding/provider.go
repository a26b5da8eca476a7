package embedding

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(text string, taskType string) (*EmbeddingResponse, error)
}

// Dimension of the vectors produced by the supported providers.
// Both text-embedding-004 and nomic-embed-text emit 768-dim vectors.
const Dimension = 768
