package processor

import (
	"context"
	"strings"
	"testing"
)

func newTestProcessor(t *testing.T, size, overlap int) *TextProcessor {
	t.Helper()
	p, err := NewTextProcessor(&TextProcessorConfig{Size: size, Overlap: overlap})
	if err != nil {
		t.Fatalf("NewTextProcessor failed: %v", err)
	}
	return p
}

func TestTextProcessorSupports(t *testing.T) {
	p := newTestProcessor(t, 128, 0)
	for _, ft := range []string{"txt", "md", "MD", "markdown"} {
		if !p.Supports(ft) {
			t.Errorf("Expected %s to be supported", ft)
		}
	}
	for _, ft := range []string{"pdf", "docx", ""} {
		if p.Supports(ft) {
			t.Errorf("Expected %s to be unsupported", ft)
		}
	}
}

func TestTextProcessorProcessMarkdown(t *testing.T) {
	p := newTestProcessor(t, 512, 50)
	doc := "# Chapter One\n\nSome course text here.\n\n```go\nfmt.Println(\"hi\")\n```\n\n| a | b |\n| 1 | 2 |\n"

	out, err := p.Process(context.Background(), []byte(doc), "md")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if out.ParsedContent != doc {
		t.Error("Expected parsed content to pass through unchanged")
	}
	if out.MarkdownContent != doc {
		t.Error("Expected markdown content to be preserved for md input")
	}
	if len(out.Chunks) != 1 {
		t.Fatalf("Expected 1 chunk for short document, got %d", len(out.Chunks))
	}

	chunk := out.Chunks[0]
	if chunk.ChunkID != "chunk-0000" {
		t.Errorf("Expected chunk-0000, got %s", chunk.ChunkID)
	}
	if chunk.HeadingPath != "Chapter One" {
		t.Errorf("Expected heading path 'Chapter One', got %q", chunk.HeadingPath)
	}
	if !chunk.HasCode {
		t.Error("Expected code fence detection")
	}
	if !chunk.HasTable {
		t.Error("Expected table detection")
	}
	if chunk.TokenCount <= 0 {
		t.Error("Expected positive token count")
	}
}

func TestTextProcessorChunksLongDocument(t *testing.T) {
	p := newTestProcessor(t, 16, 4)
	doc := strings.Repeat("learning go one word at a time ", 50)

	out, err := p.Process(context.Background(), []byte(doc), "txt")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(out.Chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(out.Chunks))
	}
	if out.MarkdownContent != "" {
		t.Error("Expected no markdown for plain text input")
	}
	for i, c := range out.Chunks {
		if c.TokenCount > 16 {
			t.Errorf("Chunk %d exceeds token limit: %d", i, c.TokenCount)
		}
	}
}

func TestTextProcessorRejectsUnsupported(t *testing.T) {
	p := newTestProcessor(t, 128, 0)
	if _, err := p.Process(context.Background(), []byte("%PDF-1.4"), "pdf"); err == nil {
		t.Error("Expected error for unsupported file type")
	}
}

func TestTextProcessorRejectsEmpty(t *testing.T) {
	p := newTestProcessor(t, 128, 0)
	if _, err := p.Process(context.Background(), []byte("   \n  "), "txt"); err == nil {
		t.Error("Expected error for blank document")
	}
}
