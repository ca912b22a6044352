package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain/ports/adapter"
)

var _ adapter.RetrievalAdapter = (*LocalRetriever)(nil)

// LocalRetriever is a filesystem-backed retrieval collaborator: Ingest
// loads text files into an in-memory collection, Query ranks them by
// simple term overlap. It stands in for a vector store, which is out of
// scope here.
type LocalRetriever struct {
	mu          sync.RWMutex
	collections map[string][]adapter.Document
	log         *zerolog.Logger
}

func NewLocalRetriever(logger *zerolog.Logger) *LocalRetriever {
	l := logger.With().Str("component", "LocalRetriever").Logger()
	return &LocalRetriever{
		collections: make(map[string][]adapter.Document),
		log:         &l,
	}
}

// Ingest walks path (a file or directory) and loads every regular file
// into the "default" collection.
func (r *LocalRetriever) Ingest(ctx context.Context, path string) (*adapter.IngestResult, error) {
	res := &adapter.IngestResult{}
	var contents []string

	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		text := string(data)
		res.FileCount++
		res.TotalSize += info.Size()
		contents = append(contents, text)

		r.mu.Lock()
		r.collections["default"] = append(r.collections["default"], adapter.Document{
			ID:      p,
			Content: text,
		})
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}

	res.Content = strings.Join(contents, "\n\n")
	r.log.Info().Str("path", path).Int("files", res.FileCount).Int64("bytes", res.TotalSize).Msg("ingested")
	return res, nil
}

// Query scores documents by the number of distinct query terms they
// contain and returns the topK best, highest score first.
func (r *LocalRetriever) Query(ctx context.Context, collection, text string, topK int) ([]adapter.Document, error) {
	if topK <= 0 {
		topK = 3
	}
	terms := strings.Fields(strings.ToLower(text))

	r.mu.RLock()
	docs := r.collections[collection]
	r.mu.RUnlock()

	scored := make([]adapter.Document, 0, len(docs))
	for _, d := range docs {
		lower := strings.ToLower(d.Content)
		score := 0.0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > 0 {
			d.Score = score
			scored = append(scored, d)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
