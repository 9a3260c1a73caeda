package ingest

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/opsrig/rootcause/internal/index"
)

// maxChunkRunes bounds a single indexed chunk so one giant log file does
// not dominate retrieval.
const maxChunkRunes = 4000

// Ingestor loads documents from disk into the search index. HTML files go
// through readability extraction; everything else is treated as plain text.
type Ingestor struct {
	index  *index.Index
	logger *log.Logger
}

func New(ix *index.Index) *Ingestor {
	return &Ingestor{
		index:  ix,
		logger: log.New(log.Writer(), "[INGEST] ", log.LstdFlags),
	}
}

// IngestPath ingests a file, or every regular file under a directory.
// Returns the number of chunks indexed. Files that cannot be read or
// parsed are skipped with a warning.
func (in *Ingestor) IngestPath(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return in.ingestFile(path)
	}

	total := 0
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			in.logger.Printf("warn: walking %s: %v", p, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		n, err := in.ingestFile(p)
		if err != nil {
			in.logger.Printf("warn: skipping %s: %v", p, err)
			return nil
		}
		total += n
		return nil
	})
	return total, err
}

func (in *Ingestor) ingestFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	title := filepath.Base(path)
	text := string(data)
	if isHTML(path) {
		article, err := readability.FromReader(strings.NewReader(text), fileURL(path))
		if err != nil {
			return 0, fmt.Errorf("extracting article: %w", err)
		}
		text = article.TextContent
		if article.Title != "" {
			title = article.Title
		}
	}

	chunks := splitChunks(text)
	for i, chunk := range chunks {
		doc := index.IndexedDocument{
			Title:   title,
			Source:  path,
			Content: chunk,
		}
		if len(chunks) > 1 {
			doc.Title = fmt.Sprintf("%s (part %d)", title, i+1)
		}
		if _, err := in.index.Add(doc); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

func fileURL(path string) *url.URL {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &url.URL{Scheme: "file", Path: abs}
}

// splitChunks breaks text on blank lines into paragraph groups no larger
// than maxChunkRunes. Empty chunks are dropped.
func splitChunks(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > maxChunkRunes {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		for len(p) > maxChunkRunes {
			runes := []rune(p)
			if len(runes) <= maxChunkRunes {
				break
			}
			chunks = append(chunks, string(runes[:maxChunkRunes]))
			p = string(runes[maxChunkRunes:])
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
