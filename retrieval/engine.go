// Package retrieval is the local knowledge engine. It chunks knowledge
// files, keeps a chromem-go vector index and a BM25 keyword index over the
// chunks, and answers searches with passages ranked by reciprocal rank
// fusion and a term-overlap rerank.
//
// The engine initializes lazily: the first Ready call loads a persisted
// index or builds one from the knowledge directory. Concurrent callers
// wait for that one initialization; a failed attempt is retried by the
// next caller.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/richinex/scout/model"
)

// ErrNotReady is returned by Search before a successful Ready.
var ErrNotReady = errors.New("retrieval engine not ready")

// Defaults for Config.
const (
	DefaultCollection = "knowledge"
	DefaultTopK       = 5
	DefaultSearchTopK = 50
	embedConcurrency  = 4
)

// Config configures an Engine.
type Config struct {
	// KnowledgeDir holds the .txt and .md files to index.
	KnowledgeDir string
	// IndexPath persists the vector index. Empty keeps it in memory.
	IndexPath  string
	Collection string
	ChunkSize  int
	// TopK is the number of passages in a formatted answer.
	TopK int
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
}

// manifest records the chunks behind a persisted vector index, which the
// keyword index and source attribution need.
type manifest struct {
	Collection string  `json:"collection"`
	Chunks     []Chunk `json:"chunks"`
}

// Engine is a hybrid keyword and vector search engine. It is safe for
// concurrent use.
type Engine struct {
	cfg    Config
	embed  chromem.EmbeddingFunc
	logger *zap.Logger

	mu      sync.Mutex
	db      *chromem.DB
	coll    *chromem.Collection
	keyword *bm25
	chunks  map[string]Chunk
}

// OpenAICompatEmbedding returns an embedding function for an
// OpenAI-compatible /embeddings endpoint.
func OpenAICompatEmbedding(baseURL, apiKey, model string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, nil)
}

// NewEngine creates an engine. Nothing is loaded until Ready or Index.
func NewEngine(cfg Config, embed chromem.EmbeddingFunc, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Engine{cfg: cfg, embed: embed, logger: logger}
}

// Ready initializes the engine once. It reuses a persisted index whose
// manifest matches it and otherwise builds from the knowledge directory.
func (e *Engine) Ready(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.coll != nil {
		return nil
	}
	if err := e.load(ctx); err != nil {
		e.logger.Warn("retrieval engine failed to initialize", zap.Error(err))
		return err
	}
	return nil
}

// Index rebuilds the index from the knowledge directory and returns the
// number of chunks indexed.
func (e *Engine) Index(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.KnowledgeDir == "" {
		return 0, errors.New("no knowledge dir configured")
	}
	return e.build(ctx)
}

func (e *Engine) load(ctx context.Context) error {
	if err := e.open(); err != nil {
		return err
	}

	if path := e.manifestPath(); path != "" {
		m, err := readManifest(path)
		switch {
		case err == nil && m.Collection == e.cfg.Collection:
			coll := e.db.GetCollection(m.Collection, e.embed)
			if coll != nil && coll.Count() == len(m.Chunks) {
				e.install(coll, m.Chunks)
				e.logger.Info("knowledge index loaded",
					zap.String("path", e.cfg.IndexPath),
					zap.Int("chunks", len(m.Chunks)),
				)
				return nil
			}
			e.logger.Info("knowledge index is stale, rebuilding")
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			e.logger.Warn("unreadable index manifest", zap.String("path", path), zap.Error(err))
		}
	}

	if e.cfg.KnowledgeDir == "" {
		return fmt.Errorf("%w: no knowledge dir and no usable index", ErrNotReady)
	}
	_, err := e.build(ctx)
	return err
}

func (e *Engine) open() error {
	if e.db != nil {
		return nil
	}
	if e.embed == nil {
		return errors.New("no embedding function configured")
	}
	if e.cfg.IndexPath == "" {
		e.db = chromem.NewDB()
		return nil
	}
	if err := os.MkdirAll(e.cfg.IndexPath, 0o755); err != nil {
		return fmt.Errorf("creating index dir %s: %w", e.cfg.IndexPath, err)
	}
	db, err := chromem.NewPersistentDB(e.cfg.IndexPath, false)
	if err != nil {
		return fmt.Errorf("opening index %s: %w", e.cfg.IndexPath, err)
	}
	e.db = db
	return nil
}

func (e *Engine) build(ctx context.Context) (int, error) {
	if err := e.open(); err != nil {
		return 0, err
	}
	chunks, err := LoadDir(e.cfg.KnowledgeDir, e.cfg.ChunkSize)
	if err != nil {
		return 0, err
	}

	if err := e.db.DeleteCollection(e.cfg.Collection); err != nil {
		return 0, fmt.Errorf("dropping collection %s: %w", e.cfg.Collection, err)
	}
	coll, err := e.db.CreateCollection(e.cfg.Collection, nil, e.embed)
	if err != nil {
		return 0, fmt.Errorf("creating collection %s: %w", e.cfg.Collection, err)
	}

	if len(chunks) > 0 {
		docs := make([]chromem.Document, len(chunks))
		for i, c := range chunks {
			docs[i] = chromem.Document{
				ID:       c.ID,
				Content:  c.Text,
				Metadata: map[string]string{"source": c.Source},
			}
		}
		if err := coll.AddDocuments(ctx, docs, embedConcurrency); err != nil {
			return 0, fmt.Errorf("embedding chunks: %w", err)
		}
	}

	if path := e.manifestPath(); path != "" {
		if err := writeManifest(path, manifest{Collection: e.cfg.Collection, Chunks: chunks}); err != nil {
			return 0, err
		}
	}

	e.install(coll, chunks)
	e.logger.Info("knowledge index built",
		zap.String("dir", e.cfg.KnowledgeDir),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

func (e *Engine) install(coll *chromem.Collection, chunks []Chunk) {
	byID := make(map[string]Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	e.coll = coll
	e.chunks = byID
	e.keyword = newBM25(chunks)
}

// Search runs a hybrid search with topK candidates per index and returns
// the best passages formatted for a prompt, or model.NoResults.
func (e *Engine) Search(ctx context.Context, query string, topK int) (string, error) {
	e.mu.Lock()
	coll, keyword, chunks := e.coll, e.keyword, e.chunks
	e.mu.Unlock()

	if coll == nil {
		return "", ErrNotReady
	}
	if strings.TrimSpace(query) == "" {
		return model.NoResults, nil
	}
	if topK <= 0 {
		topK = DefaultSearchTopK
	}

	lexical := keyword.search(query, topK)

	var semantic []string
	// chromem rejects requests for more results than it holds.
	if n := min(topK, coll.Count()); n > 0 {
		results, err := coll.Query(ctx, query, n, nil, nil)
		if err != nil {
			return "", fmt.Errorf("vector search: %w", err)
		}
		for _, r := range results {
			semantic = append(semantic, r.ID)
		}
	}

	fused := fuse(lexical, semantic)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	ranked := rerank(query, fused, func(id string) string { return chunks[id].Text })
	if len(ranked) > e.cfg.TopK {
		ranked = ranked[:e.cfg.TopK]
	}

	passages := make([]Chunk, 0, len(ranked))
	for _, r := range ranked {
		if c, ok := chunks[r.ID]; ok {
			passages = append(passages, c)
		}
	}
	e.logger.Debug("local search",
		zap.String("query", query),
		zap.Int("lexical", len(lexical)),
		zap.Int("semantic", len(semantic)),
		zap.Int("returned", len(passages)),
	)
	return formatContext(passages), nil
}

func (e *Engine) manifestPath() string {
	if e.cfg.IndexPath == "" {
		return ""
	}
	return filepath.Clean(e.cfg.IndexPath) + ".chunks.json"
}

func readManifest(path string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decoding %s: %w", path, err)
	}
	return m, nil
}

func writeManifest(path string, m manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
