package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opsrig/rootcause/internal/index"
)

func newTestIndex(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.Open("", 10)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIngestPlainTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incident.txt")
	body := "db-3 ran out of disk at 03:12\n\nlog rotation had been disabled during the migration"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ix := newTestIndex(t)
	n, err := New(ix).IngestPath(path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("short text must produce one chunk, got %d", n)
	}

	docs, err := ix.Retrieve(context.Background(), "log rotation")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) == 0 {
		t.Fatalf("ingested content must be searchable")
	}
	if docs[0].Metadata["source"] != path {
		t.Fatalf("document must record its source path, got %v", docs[0].Metadata)
	}
}

func TestIngestDirectorySkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("redis evicted keys under memory pressure"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("dns resolution slowed checkout"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ix := newTestIndex(t)
	n, err := New(ix).IngestPath(dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chunks from 2 files, got %d", n)
	}
}

func TestIngestHTMLExtractsArticle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "postmortem.html")
	page := `<html><head><title>Outage Postmortem</title></head><body>
<nav>home | about | contact</nav>
<article><h1>Outage Postmortem</h1>
<p>The primary database exhausted its disk because log rotation was disabled.
Alerting fired twenty minutes after the first write failures. The oncall
engineer restored service by truncating the oldest write-ahead logs and
re-enabling rotation.</p>
<p>Follow-up work tracks adding a disk usage forecast to the weekly review
so that capacity problems surface before they page anyone. The migration
runbook now includes an explicit step to verify rotation configuration on
every replica before cutover, and the verification script fails the
deployment if any host reports rotation disabled.</p>
<p>Timeline: write failures began at 03:12, the first page arrived at 03:31,
mitigation started at 03:40 and service was fully restored by 04:05. Total
customer-visible impact was fifty three minutes of elevated checkout errors
in the European region only.</p></article>
</body></html>`
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ix := newTestIndex(t)
	n, err := New(ix).IngestPath(path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected at least one chunk from the article")
	}

	docs, err := ix.Retrieve(context.Background(), "disk rotation")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) == 0 {
		t.Fatalf("article text must be searchable")
	}
	if strings.Contains(docs[0].Content, "home | about") {
		t.Fatalf("navigation chrome must not be indexed: %q", docs[0].Content)
	}
}

func TestSplitChunksGroupsParagraphs(t *testing.T) {
	chunks := splitChunks("first paragraph\n\nsecond paragraph\n\n\n\n")
	if len(chunks) != 1 {
		t.Fatalf("small paragraphs must share a chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "first paragraph") || !strings.Contains(chunks[0], "second paragraph") {
		t.Fatalf("chunk lost content: %q", chunks[0])
	}

	if got := splitChunks("   \n\n  \n"); len(got) != 0 {
		t.Fatalf("whitespace input must produce no chunks, got %v", got)
	}
}

func TestSplitChunksBoundsSize(t *testing.T) {
	big := strings.Repeat("x", maxChunkRunes*2+100)
	chunks := splitChunks(big)
	if len(chunks) < 2 {
		t.Fatalf("oversized paragraph must be split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > maxChunkRunes {
			t.Fatalf("chunk %d exceeds the size bound: %d runes", i, len([]rune(c)))
		}
	}
}
