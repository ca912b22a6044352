package ai

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain/ports/adapter"
)

// cacheRecord is one line of the append-only cache log.
type cacheRecord struct {
	InputHash string    `json:"input_hash"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// ResponseCache memoizes generate responses keyed by input hash, provider
// agnostic. Entries live in memory plus an append-only JSONL log. TTL is
// evaluated only when the log is loaded at process start: once loaded, an
// entry stays valid until the next restart (restart-to-expire, deliberate).
type ResponseCache struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	entries map[string]string
	log     *zerolog.Logger
}

// NewResponseCache loads the log at path, dropping entries older than ttl.
// An empty path yields a memory-only cache.
func NewResponseCache(path string, ttl time.Duration, logger *zerolog.Logger) *ResponseCache {
	l := logger.With().Str("component", "ResponseCache").Logger()
	c := &ResponseCache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]string),
		log:     &l,
	}
	c.load()
	return c
}

func (c *ResponseCache) load() {
	if c.path == "" {
		return
	}
	f, err := os.Open(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("path", c.path).Msg("cache log unreadable, starting empty")
		}
		return
	}
	defer f.Close()

	cutoff := time.Now().Add(-c.ttl)
	loaded, skipped := 0, 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var rec cacheRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			skipped++
			continue
		}
		if c.ttl > 0 && rec.Timestamp.Before(cutoff) {
			skipped++
			continue
		}
		c.entries[rec.InputHash] = rec.Output
		loaded++
	}
	c.log.Info().Int("loaded", loaded).Int("skipped", skipped).Msg("response cache loaded")
}

// CacheKey hashes the generation inputs: prompt, system prompt, schema and
// json-mode marker. The schema is marshaled with sorted keys, so key order
// inside it does not matter; the concatenation order does.
func CacheKey(req adapter.GenerateRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Prompt))
	h.Write([]byte{0})
	h.Write([]byte(req.SystemPrompt))
	h.Write([]byte{0})
	if req.JSONSchema != nil {
		// encoding/json sorts map keys, giving a canonical form
		b, _ := json.Marshal(req.JSONSchema)
		h.Write(b)
	}
	h.Write([]byte{0})
	if req.JSONMode {
		h.Write([]byte("json"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.entries[key]
	return out, ok
}

// Put stores the entry and appends one log line. The append happens under
// the mutex so concurrent writers cannot interleave partial lines.
func (c *ResponseCache) Put(key, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = output

	if c.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		c.log.Warn().Err(err).Msg("cache dir")
		return
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache append open")
		return
	}
	defer f.Close()
	line, _ := json.Marshal(cacheRecord{InputHash: key, Output: output, Timestamp: time.Now()})
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		c.log.Warn().Err(err).Msg("cache append write")
	}
}

// Len reports the number of loaded entries.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
