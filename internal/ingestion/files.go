package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbase-ai/kbq-go/internal/rag"
)

// InferredMetadata holds the title, category, and format inferred from a
// document file's path and content. Explicit document fields take precedence
// over inferred values; this is the best-effort fallback when files carry no
// metadata of their own.
type InferredMetadata struct {
	// Title is taken from the first Markdown heading, falling back to the
	// file name without its extension.
	Title string
	// Category is the file's immediate parent directory relative to the
	// ingestion root ("general" at the root itself).
	Category string
	// Format classifies the file kind (markdown, text).
	Format string
}

// textExtensions maps ingestible file extensions to their format label.
// Files with other extensions are skipped during directory loads.
var textExtensions = map[string]string{
	".md":       "markdown",
	".markdown": "markdown",
	".txt":      "text",
	".text":     "text",
}

// InferMetadata inspects a file's path (relative to the ingestion root) and
// its content and returns best-effort metadata.
func InferMetadata(relPath, content string) InferredMetadata {
	m := InferredMetadata{
		Title:    strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath)),
		Category: "general",
		Format:   "text",
	}

	if format, ok := textExtensions[strings.ToLower(filepath.Ext(relPath))]; ok {
		m.Format = format
	}
	if dir := filepath.Dir(relPath); dir != "." && dir != string(filepath.Separator) {
		// Immediate parent names the category: docs/billing/refunds.md → billing.
		m.Category = filepath.Base(dir)
	}
	if title := firstHeading(content); title != "" {
		m.Title = title
	}
	return m
}

// firstHeading returns the text of the first Markdown ATX heading, or "".
func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "#"); ok {
			return strings.TrimSpace(strings.TrimLeft(rest, "#"))
		}
	}
	return ""
}

// LoadDirectory walks root and returns a document per ingestible text file.
// Document IDs are the slash-separated relative path without the extension,
// so re-ingesting the same tree overwrites rather than duplicates points.
func LoadDirectory(root string) ([]rag.Document, error) {
	var docs []rag.Document

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden directories such as .git.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := textExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}

		content := string(raw)
		meta := InferMetadata(rel, content)
		id := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))

		docs = append(docs, rag.Document{
			ID:      id,
			Title:   meta.Title,
			Content: content,
			Metadata: map[string]string{
				"source":   filepath.ToSlash(rel),
				"category": meta.Category,
				"format":   meta.Format,
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: load %s: %w", root, err)
	}
	return docs, nil
}
