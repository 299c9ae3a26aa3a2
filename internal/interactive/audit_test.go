package interactive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestAuditLogSaveAndShape(t *testing.T) {
	dir := t.TempDir()
	audit := newAuditLog("entry-1", "2026-08-30", "https://example.com/pub/1", "example.com", "Example Research")
	audit.AddStep(Step{Action: "navigate", URL: "https://example.com/pub/1"})
	audit.AddStep(Step{Action: "click_attempt", Selector: ".download"})
	audit.AddNetworkRequest(NetworkRequest{URL: "https://example.com/x.pdf", Status: 200, ContentType: "application/pdf"})
	audit.AddConsoleMessage(ConsoleMessage{Type: "log", Text: "ready"})
	audit.Success = true
	audit.ClickedSelector = ".download"

	if err := audit.Save(dir); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "2026-08-30", "entry-1.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded AuditLog
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.EntryID != "entry-1" || decoded.Domain != "example.com" || decoded.Config != "Example Research" {
		t.Fatalf("decoded = %+v", &decoded)
	}
	if len(decoded.Steps) != 2 || decoded.Steps[0].Action != "navigate" {
		t.Fatalf("steps = %+v", decoded.Steps)
	}
	if len(decoded.NetworkRequests) != 1 || decoded.NetworkRequests[0].Status != 200 {
		t.Fatalf("networkRequests = %+v", decoded.NetworkRequests)
	}
	if !decoded.Success || decoded.ClickedSelector != ".download" {
		t.Fatalf("outcome fields = %+v", &decoded)
	}
	if decoded.Steps[0].Timestamp.IsZero() {
		t.Fatal("step timestamp not set")
	}
}

func TestAuditLogSaveDefaultsMissingKeys(t *testing.T) {
	dir := t.TempDir()
	audit := newAuditLog("", "", "https://example.com", "example.com", "x")
	if err := audit.Save(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "unknown", "download.json")); err != nil {
		t.Fatalf("fallback path missing: %v", err)
	}
}

func TestAuditLogConcurrentAppends(t *testing.T) {
	audit := newAuditLog("e", "d", "u", "h", "c")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audit.AddStep(Step{Action: "tick"})
			audit.AddConsoleMessage(ConsoleMessage{Type: "log", Text: "tick"})
		}()
	}
	wg.Wait()
	if len(audit.Steps) != 20 || len(audit.ConsoleMessages) != 20 {
		t.Fatalf("steps=%d console=%d, want 20/20", len(audit.Steps), len(audit.ConsoleMessages))
	}
}
