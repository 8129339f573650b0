// Package retrieval loads plain-text knowledge files, embeds them and serves
// permission-filtered similarity search to the knowledge agent.
package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Document is one blank-line separated chunk of a knowledge file.
// An empty Permission makes the chunk public.
type Document struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	ChunkID    int    `json:"chunk_id"`
	Content    string `json:"content"`
	Permission string `json:"permission,omitempty"`
	Keywords   string `json:"keywords,omitempty"`
}

// Ref renders the citation used in tool output, e.g. "hr.txt#2"
func (d Document) Ref() string {
	return fmt.Sprintf("%s#%d", d.Source, d.ChunkID)
}

// VisibleTo applies the permission rule: public documents are visible to
// everyone, the rest only to callers holding exactly that permission.
func (d Document) VisibleTo(permission string) bool {
	return d.Permission == "" || d.Permission == permission
}

var (
	blankLine    = regexp.MustCompile(`\n\s*\n`)
	docNamespace = uuid.MustParse("6f1c3b0e-8a4d-4e4b-9f43-5d2f0b7c1a10")
)

// ParseText splits text into chunks on blank lines and lifts the
// "权限:" / "关键词:" lines of each chunk into metadata.
func ParseText(source, text string) []Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var docs []Document
	idx := 0
	for _, block := range blankLine.Split(text, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		doc := Document{Source: source, ChunkID: idx}
		var content []string
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if v, ok := field(line, "权限"); ok {
				doc.Permission = v
			} else if v, ok := field(line, "关键词"); ok {
				doc.Keywords = v
			} else {
				content = append(content, line)
			}
		}
		doc.Content = strings.Join(content, "\n")
		doc.ID = uuid.NewSHA1(docNamespace, []byte(doc.Ref())).String()
		docs = append(docs, doc)
		idx++
	}
	return docs
}

// field matches "name:value" with either an ASCII or a full-width colon
func field(line, name string) (string, bool) {
	for _, sep := range []string{":", "："} {
		if v, ok := strings.CutPrefix(line, name+sep); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// LoadDir parses every *.txt file in dir, in file name order
func LoadDir(dir string) ([]Document, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var docs []Document
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, ParseText(filepath.Base(p), string(b))...)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no txt documents found in %s", dir)
	}
	return docs, nil
}
