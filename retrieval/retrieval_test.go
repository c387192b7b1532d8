package retrieval

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cespare/xxhash/v2"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/richinex/scout/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// hashEmbedding is a deterministic bag-of-words embedding that counts its
// calls.
func hashEmbedding(calls *atomic.Int32) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		calls.Add(1)
		v := make([]float32, 32)
		v[0] = 1
		for _, t := range tokenize(text) {
			v[1+xxhash.Sum64String(t)%31]++
		}
		var norm float64
		for _, x := range v {
			norm += float64(x * x)
		}
		n := float32(math.Sqrt(norm))
		for i := range v {
			v[i] /= n
		}
		return v, nil
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

var corpus = map[string]string{
	"annual/2023.md": "ACME revenue in 2023 was 1,234.5 million USD, up 12% year over year.\n\nThe board approved a dividend.",
	"annual/2022.txt": "ACME revenue in 2022 was 1,102 million USD.",
	"notes/ops.md":    "Warehouse operations moved to Rotterdam.",
	"ignored.pdf":     "revenue revenue revenue",
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"packs paragraphs", "one\n\ntwo\n\nthree", 20, []string{"one\n\ntwo\n\nthree"}},
		{"starts a new chunk", "aaaa\n\nbbbb", 6, []string{"aaaa", "bbbb"}},
		{"cuts long paragraphs", "abcdefgh", 3, []string{"abc", "def", "gh"}},
		{"counts runes", "营业收入增长", 3, []string{"营业收", "入增长"}},
		{"skips blanks", "\r\n\r\n  \n\nx\r\n\r\n", 10, []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Split(tt.text, tt.size); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, corpus)
	writeFiles(t, dir, map[string]string{"copy.md": "Warehouse operations moved to Rotterdam."})

	chunks, err := LoadDir(dir, 80)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	sources := make(map[string]int)
	for _, c := range chunks {
		sources[c.Source]++
		if c.ID != chunkID(c.Text) {
			t.Errorf("chunk id %s does not match its text", c.ID)
		}
	}
	if sources["ignored.pdf"] != 0 {
		t.Error("only .txt and .md files are indexed")
	}
	if sources["annual/2023.md"] != 2 {
		t.Errorf("expected 2 chunks from annual/2023.md, got %d", sources["annual/2023.md"])
	}
	if len(chunks) != 4 {
		t.Errorf("duplicate passages should be indexed once, got %d chunks", len(chunks))
	}

	if _, err := LoadDir(filepath.Join(dir, "missing"), 80); err == nil {
		t.Error("expected an error for a missing dir")
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("The ACME revenue, in 2023: 营业收入!")
	want := []string{"acme", "revenue", "2023", "营", "业", "收", "入"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenize() = %q, want %q", got, want)
	}
}

func TestBM25RanksMatchingChunks(t *testing.T) {
	chunks := []Chunk{
		{ID: "a", Text: "revenue grew while costs fell"},
		{ID: "b", Text: "revenue revenue revenue"},
		{ID: "c", Text: "warehouse in Rotterdam"},
	}
	idx := newBM25(chunks)

	got := idx.search("revenue", 10)
	if !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("search() = %v", got)
	}
	if got := idx.search("revenue", 1); len(got) != 1 {
		t.Errorf("expected k to cap results, got %v", got)
	}
	if got := idx.search("dividend", 10); len(got) != 0 {
		t.Errorf("expected no hits, got %v", got)
	}
}

func TestFuse(t *testing.T) {
	got := fuse([]string{"a", "b", "c"}, []string{"c", "a"})
	ids := make([]string, len(got))
	for i, s := range got {
		ids[i] = s.ID
	}
	if !reflect.DeepEqual(ids, []string{"a", "c", "b"}) {
		t.Errorf("fuse() order = %v", ids)
	}
	if want := 1.0/60 + 1.0/61; math.Abs(got[0].Score-want) > 1e-12 {
		t.Errorf("expected score %v, got %v", want, got[0].Score)
	}
}

func TestRerankFavorsTermOverlap(t *testing.T) {
	texts := map[string]string{
		"x": "general remarks",
		"y": "ACME revenue 2023",
	}
	candidates := []scoredID{{ID: "x", Score: 0.02}, {ID: "y", Score: 0.019}}

	got := rerank("acme revenue", candidates, func(id string) string { return texts[id] })
	if got[0].ID != "y" {
		t.Errorf("expected the overlapping passage first, got %+v", got)
	}
}

func TestHighlights(t *testing.T) {
	got := highlights("Revenue 1,234.5 million, up 12%, margin 12% and 3.2 亿元 plus 7 apples")
	want := []string{"1,234.5 million", "12%", "3.2 亿元"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("highlights() = %q, want %q", got, want)
	}
}

func TestCleanText(t *testing.T) {
	if got := cleanText("line one\n  line   two\n营业 收入"); got != "line one line two 营业收入" {
		t.Errorf("cleanText() = %q", got)
	}
}

func TestEngineSearch(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, corpus)
	var calls atomic.Int32
	engine := NewEngine(Config{KnowledgeDir: dir, ChunkSize: 80}, hashEmbedding(&calls), zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := engine.Search(ctx, "revenue", 10); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before Ready, got %v", err)
	}
	if err := engine.Ready(ctx); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}

	out, err := engine.Search(ctx, "ACME revenue 2023", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !strings.HasPrefix(out, contextHeader) {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "[1] source: annual/2023.md [key figures: 1,234.5 million") {
		t.Errorf("expected the 2023 report first, got:\n%s", out)
	}

	if out, _ := engine.Search(ctx, "  ", 10); out != model.NoResults {
		t.Errorf("expected NoResults for an empty query, got %q", out)
	}
}

func TestEngineLimitsPassages(t *testing.T) {
	dir := t.TempDir()
	files := make(map[string]string)
	for _, name := range strings.Split("a b c d e f g", " ") {
		files[name+".md"] = "revenue note " + name
	}
	writeFiles(t, dir, files)
	var calls atomic.Int32
	engine := NewEngine(Config{KnowledgeDir: dir, TopK: 3}, hashEmbedding(&calls), nil)
	ctx := context.Background()
	if err := engine.Ready(ctx); err != nil {
		t.Fatal(err)
	}

	out, err := engine.Search(ctx, "revenue", 50)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[3] source:") || strings.Contains(out, "[4] source:") {
		t.Errorf("expected exactly 3 passages, got:\n%s", out)
	}
}

func TestEngineEmptyCorpus(t *testing.T) {
	var calls atomic.Int32
	engine := NewEngine(Config{KnowledgeDir: t.TempDir()}, hashEmbedding(&calls), nil)
	ctx := context.Background()
	if err := engine.Ready(ctx); err != nil {
		t.Fatal(err)
	}
	if out, err := engine.Search(ctx, "revenue", 10); err != nil || out != model.NoResults {
		t.Errorf("expected NoResults, got %q, %v", out, err)
	}
}

func TestEngineReadyRetriesAfterFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "knowledge")
	var calls atomic.Int32
	engine := NewEngine(Config{KnowledgeDir: dir}, hashEmbedding(&calls), nil)
	ctx := context.Background()

	if err := engine.Ready(ctx); err == nil {
		t.Fatal("expected an error for a missing knowledge dir")
	}
	writeFiles(t, dir, map[string]string{"a.md": "revenue"})
	if err := engine.Ready(ctx); err != nil {
		t.Fatalf("expected the second Ready to succeed, got %v", err)
	}
}

func TestEngineReadyIsConcurrentSafe(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, corpus)
	var calls atomic.Int32
	engine := NewEngine(Config{KnowledgeDir: dir, ChunkSize: 80}, hashEmbedding(&calls), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- engine.Ready(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Ready() error = %v", err)
		}
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("expected the 4 chunks to be embedded once, got %d calls", got)
	}
}

func TestEngineReusesPersistedIndex(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, corpus)
	indexPath := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	var buildCalls atomic.Int32
	builder := NewEngine(Config{KnowledgeDir: dir, IndexPath: indexPath, ChunkSize: 80}, hashEmbedding(&buildCalls), nil)
	n, err := builder.Index(ctx)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 chunks, got %d", n)
	}

	var loadCalls atomic.Int32
	loader := NewEngine(Config{IndexPath: indexPath}, hashEmbedding(&loadCalls), nil)
	if err := loader.Ready(ctx); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	if got := loadCalls.Load(); got != 0 {
		t.Errorf("loading a persisted index should not embed, got %d calls", got)
	}
	out, err := loader.Search(ctx, "Rotterdam warehouse", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[1] source: notes/ops.md") {
		t.Errorf("expected ops notes first, got:\n%s", out)
	}
}

func TestEngineWithoutSources(t *testing.T) {
	var calls atomic.Int32
	engine := NewEngine(Config{}, hashEmbedding(&calls), nil)
	if err := engine.Ready(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if _, err := engine.Index(context.Background()); err == nil {
		t.Error("Index without a knowledge dir should fail")
	}
}
