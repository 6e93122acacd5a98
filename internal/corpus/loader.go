// Package corpus loads the static document corpus consumed by the embedding
// store at startup. The corpus is read once; the service does not watch for
// file changes.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is a raw corpus entry: an identifier and its full text.
type Document struct {
	Source string
	Text   string
}

var supportedExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
}

// LoadDir reads every supported file directly under dir and returns one
// Document per file, sorted by source name. Sorted order keeps chunk order
// stable across restarts, which keeps retrieval tie-breaking reproducible.
func LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir %s: %w", dir, err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := supportedExtensions[ext]; !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read corpus file %s: %w", entry.Name(), err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		docs = append(docs, Document{Source: entry.Name(), Text: text})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}
