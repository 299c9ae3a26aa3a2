package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/fintelab/goharvest/internal/catalog"
	"github.com/fintelab/goharvest/internal/fulltext"
)

// manifestEntry is a compact record of one catalog entry's outcome.
type manifestEntry struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Type   string `json:"type,omitempty"`
	Via    string `json:"via,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
	Runes  int    `json:"runes,omitempty"`
	Pages  int    `json:"pages,omitempty"`
	Error  string `json:"error,omitempty"`
}

// runMeta captures high-level run details that aid reproducibility.
type runMeta struct {
	Date        string    `json:"date"`
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	GeneratedAt time.Time `json:"generated_at"`
}

// computeSHA256Hex returns a lowercase hex-encoded SHA-256 of the given text.
func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func buildManifestEntry(entry catalog.Entry, res *fulltext.Result) manifestEntry {
	return manifestEntry{
		ID:     entry.ID,
		URL:    entry.URL,
		Title:  entry.Title,
		Type:   res.Type,
		Via:    res.Meta.Via,
		SHA256: computeSHA256Hex(res.Text),
		Runes:  utf8.RuneCountInString(res.Text),
		Pages:  res.Meta.Pages,
	}
}

func failedManifestEntry(entry catalog.Entry, err error) manifestEntry {
	return manifestEntry{
		ID:    entry.ID,
		URL:   entry.URL,
		Title: entry.Title,
		Error: err.Error(),
	}
}

// writeManifest encodes a machine-readable manifest next to the extracted
// texts so a later run can audit what was fetched and how.
func writeManifest(outDir string, meta runMeta, entries []manifestEntry) error {
	payload := struct {
		Meta    runMeta         `json:"meta"`
		Entries []manifestEntry `json:"entries"`
	}{Meta: meta, Entries: entries}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "manifest.json"), data, 0o644)
}
