// Package catalog discovers query files and exposes them as a name -> query text mapping.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// QueryExtension is the suffix of discoverable query files.
const QueryExtension = ".sql"

// Query is one catalog entry.
type Query struct {
	Name string
	Path string
	Text string
}

// Catalog maps artifact names to queries.
type Catalog struct {
	queries map[string]Query
}

// New builds a catalog from an explicit name -> query text mapping.
func New(texts map[string]string) *Catalog {
	c := &Catalog{queries: make(map[string]Query, len(texts))}
	for name, text := range texts {
		c.queries[name] = Query{Name: name, Text: text}
	}
	return c
}

// Discover walks root and loads every *.sql file. A file at queries/revenue/total.sql
// becomes the entry "revenue_total". Two files mapping to the same name are an error.
func Discover(root string) (*Catalog, error) {
	c := &Catalog{queries: make(map[string]Query)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), QueryExtension) {
			return nil
		}
		name := NameFor(path)
		if prev, dup := c.queries[name]; dup {
			return fmt.Errorf("query name %s is produced by both %s and %s", name, prev.Path, path)
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read query %s: %w", path, err)
		}
		c.queries[name] = Query{Name: name, Path: path, Text: string(text)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover queries under %s: %w", root, err)
	}
	return c, nil
}

// NameFor derives the artifact name "<parent-folder>_<file-stem>".
func NameFor(path string) string {
	parent := filepath.Base(filepath.Dir(path))
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parent + "_" + stem
}

// Names returns the entry names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.queries))
	for name := range c.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the entry for name.
func (c *Catalog) Get(name string) (Query, bool) {
	q, ok := c.queries[name]
	return q, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.queries) }
