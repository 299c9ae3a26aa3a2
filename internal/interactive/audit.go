package interactive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLog is the structured per-attempt record: ordered steps, observed
// PDF-related network responses, console messages and the final outcome.
// One file per (run date, entry id), overwritten on retry.
type AuditLog struct {
	mu sync.Mutex

	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	EntryID   string    `json:"entryId"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	Config    string    `json:"config"`

	Steps           []Step            `json:"steps"`
	NetworkRequests []NetworkRequest  `json:"networkRequests"`
	ConsoleMessages []ConsoleMessage  `json:"consoleMessages"`

	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	ClickedSelector string `json:"clickedSelector,omitempty"`
	DetectedFormat  string `json:"detectedFormat,omitempty"`
	ContentType     string `json:"contentType,omitempty"`
}

// Step is one timestamped action in the attempt.
type Step struct {
	Action    string    `json:"action"`
	Selector  string    `json:"selector,omitempty"`
	URL       string    `json:"url,omitempty"`
	Path      string    `json:"path,omitempty"`
	Format    string    `json:"format,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NetworkRequest records a response that touched PDF content.
type NetworkRequest struct {
	URL         string    `json:"url"`
	Status      int       `json:"status"`
	ContentType string    `json:"contentType,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ConsoleMessage records one in-page console emission.
type ConsoleMessage struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func newAuditLog(entryID, date, rawURL, domain, configName string) *AuditLog {
	return &AuditLog{
		URL:       rawURL,
		Domain:    domain,
		EntryID:   entryID,
		Date:      date,
		Timestamp: time.Now().UTC(),
		Config:    configName,
	}
}

// AddStep appends an action record with the current timestamp. Safe for
// concurrent use: network/console observers feed the log while the attempt
// loop runs.
func (l *AuditLog) AddStep(step Step) {
	l.mu.Lock()
	defer l.mu.Unlock()
	step.Timestamp = time.Now().UTC()
	l.Steps = append(l.Steps, step)
}

// AddNetworkRequest appends one observed PDF-related response.
func (l *AuditLog) AddNetworkRequest(r NetworkRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.Timestamp = time.Now().UTC()
	l.NetworkRequests = append(l.NetworkRequests, r)
}

// AddConsoleMessage appends one console emission.
func (l *AuditLog) AddConsoleMessage(m ConsoleMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m.Timestamp = time.Now().UTC()
	l.ConsoleMessages = append(l.ConsoleMessages, m)
}

// Save writes the log to <dir>/<date>/<entryID>.json, overwriting any
// previous attempt for the same key.
func (l *AuditLog) Save(dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	date := l.Date
	if date == "" {
		date = "unknown"
	}
	entryID := l.EntryID
	if entryID == "" {
		entryID = "download"
	}
	target := filepath.Join(dir, date)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("audit log dir: %w", err)
	}
	raw, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("audit log marshal: %w", err)
	}
	path := filepath.Join(target, entryID+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("audit log write: %w", err)
	}
	return nil
}
