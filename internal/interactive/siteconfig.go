package interactive

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// SiteConfig is one externally supplied per-domain automation recipe: the
// ordered UI trigger selectors to click when no programmatic download path
// exists.
type SiteConfig struct {
	// Domain is a hostname substring match.
	Domain string `json:"domain"`
	// Name is the display name used in audit logs.
	Name string `json:"name"`
	// Selectors is the ordered trigger list, most likely first.
	Selectors []string `json:"selectors"`
}

// LoadSiteConfigs reads the JSON array of site configurations once at
// startup and validates every record.
func LoadSiteConfigs(path string) ([]SiteConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}
	var configs []SiteConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		return nil, fmt.Errorf("parse site config %s: %w", path, err)
	}
	for i, c := range configs {
		if strings.TrimSpace(c.Domain) == "" {
			return nil, fmt.Errorf("site config %s: record %d has no domain", path, i)
		}
		if len(c.Selectors) == 0 {
			return nil, fmt.Errorf("site config %s: record %d (%s) has no selectors", path, i, c.Domain)
		}
	}
	return configs, nil
}

// MatchSite returns the first configuration whose domain substring occurs in
// the URL's hostname. A miss is a first-class "unsupported" outcome for the
// caller, not an error here.
func MatchSite(configs []SiteConfig, rawURL string) (SiteConfig, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SiteConfig{}, false
	}
	host := u.Hostname()
	for _, c := range configs {
		if strings.Contains(host, c.Domain) {
			return c, true
		}
	}
	return SiteConfig{}, false
}
