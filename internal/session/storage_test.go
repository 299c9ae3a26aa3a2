package session

import (
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/net/publicsuffix"
)

func writeState(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage_state.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleState = `{
	"cookies": [
		{"name": "session", "value": "abc", "domain": ".example.com", "path": "/", "expires": 4102444800, "httpOnly": true, "secure": true},
		{"name": "pref", "value": "ja", "domain": "research.example.com", "path": "/", "expires": -1}
	]
}`

func TestLoadStorageState(t *testing.T) {
	state, err := loadStorageState(writeState(t, sampleState))
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Cookies) != 2 {
		t.Fatalf("cookies = %d, want 2", len(state.Cookies))
	}
	if state.Cookies[0].Name != "session" || !state.Cookies[0].HTTPOnly {
		t.Fatalf("cookie = %+v", state.Cookies[0])
	}
}

func TestLoadStorageStateMalformed(t *testing.T) {
	if _, err := loadStorageState(writeState(t, "{broken")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBrowserCookies(t *testing.T) {
	state, err := loadStorageState(writeState(t, sampleState))
	if err != nil {
		t.Fatal(err)
	}
	params := state.browserCookies()
	if len(params) != 2 {
		t.Fatalf("params = %d", len(params))
	}
	if params[0].Domain != ".example.com" || !params[0].Secure {
		t.Fatalf("param = %+v", params[0])
	}
	if params[0].Expires == 0 {
		t.Fatal("positive expiry not mapped")
	}
	// Session cookies (expires <= 0) must stay session-scoped.
	if params[1].Expires != 0 {
		t.Fatalf("session cookie got expiry %v", params[1].Expires)
	}
}

func TestSeedJar(t *testing.T) {
	state, err := loadStorageState(writeState(t, sampleState))
	if err != nil {
		t.Fatal(err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		t.Fatal(err)
	}
	if err := state.seedJar(jar); err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse("https://research.example.com/publication/1")
	cookies := jar.Cookies(u)
	names := make(map[string]string, len(cookies))
	for _, c := range cookies {
		names[c.Name] = c.Value
	}
	if names["session"] != "abc" {
		t.Fatalf("domain cookie not served to subdomain: %v", names)
	}
	if names["pref"] != "ja" {
		t.Fatalf("host cookie missing: %v", names)
	}
}
