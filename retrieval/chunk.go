package retrieval

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultChunkSize is the maximum chunk length in runes.
const DefaultChunkSize = 800

// Chunk is one indexed passage of a knowledge file.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// chunkID derives a stable id from the chunk text, so re-indexing
// unchanged files yields the same ids.
func chunkID(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// LoadDir reads every .txt and .md file under dir and splits it into chunks.
// Sources are paths relative to dir. Identical passages are kept once.
func LoadDir(dir string, size int) ([]Chunk, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge dir %s is not a directory", dir)
	}

	var chunks []Chunk
	seen := make(map[string]bool)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		source, err := filepath.Rel(dir, path)
		if err != nil {
			source = filepath.Base(path)
		}
		for _, text := range Split(string(data), size) {
			id := chunkID(text)
			if seen[id] {
				continue
			}
			seen[id] = true
			chunks = append(chunks, Chunk{ID: id, Source: filepath.ToSlash(source), Text: text})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Split packs blank-line separated paragraphs into chunks of at most size
// runes. A paragraph longer than size is cut at rune boundaries.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		chunks []string
		cur    []rune
	)
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			chunks = append(chunks, s)
		}
		cur = cur[:0]
	}

	for _, para := range strings.Split(text, "\n\n") {
		p := []rune(strings.TrimSpace(para))
		if len(p) == 0 {
			continue
		}
		if len(cur) > 0 && len(cur)+2+len(p) > size {
			flush()
		}
		for len(p) > size {
			if len(cur) > 0 {
				flush()
			}
			cur = append(cur, p[:size]...)
			flush()
			p = p[size:]
		}
		if len(cur) > 0 {
			cur = append(cur, '\n', '\n')
		}
		cur = append(cur, p...)
	}
	flush()
	return chunks
}
