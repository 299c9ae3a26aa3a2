package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Entry is one discovered research document reference. Entries arrive from
// external list-discovery collaborators; this package only loads and
// normalizes them, it never mutates an entry after loading.
type Entry struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary,omitempty"`
	Category      string   `json:"category,omitempty"`
	Categories    []string `json:"categoryList,omitempty"`
	Sources       []string `json:"sources,omitempty"`
	Analysts      []string `json:"analysts,omitempty"`
	PublishedAt   string   `json:"publishedAt,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
}

// Labels returns every category/source label attached to the entry, in a
// stable order. Used by the quality gate to derive key phrases.
func (e Entry) Labels() []string {
	out := make([]string, 0, 1+len(e.Categories)+len(e.Sources))
	if strings.TrimSpace(e.Category) != "" {
		out = append(out, e.Category)
	}
	out = append(out, e.Categories...)
	out = append(out, e.Sources...)
	return out
}

// Load reads a JSON array of entries from path. Entries without a URL are
// dropped; an entry without an ID gets one derived from its URL's last path
// segment so downstream audit files always have a stable name.
func Load(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.URL) == "" {
			continue
		}
		if strings.TrimSpace(e.ID) == "" {
			e.ID = fallbackID(e.URL)
		}
		out = append(out, e)
	}
	return out, nil
}

func fallbackID(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 && i+1 < len(trimmed) {
		trimmed = trimmed[i+1:]
	}
	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "entry"
	}
	return b.String()
}
