package adapter

import "context"

// IngestResult summarizes one ingested path.
type IngestResult struct {
	FileCount int    `json:"file_count"`
	TotalSize int64  `json:"total_size"`
	Content   string `json:"content"`
}

// Document is one ranked retrieval hit.
type Document struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// RetrievalAdapter is the RAG port consumed by specific agents,
// never by the engine directly.
type RetrievalAdapter interface {
	Ingest(ctx context.Context, path string) (*IngestResult, error)
	Query(ctx context.Context, collection, text string, topK int) ([]Document, error)
}
