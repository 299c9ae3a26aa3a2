package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// storageState mirrors the exported login state produced by the session
// acquisition tooling: a JSON document whose cookies are shared between the
// rendering and HTTP contexts.
type storageState struct {
	Cookies []storedCookie `json:"cookies"`
}

type storedCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

func loadStorageState(path string) (*storageState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read storage state: %w", err)
	}
	var state storageState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse storage state %s: %w", path, err)
	}
	return &state, nil
}

func (s *storageState) browserCookies() []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			param.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		out = append(out, param)
	}
	return out
}

// seedJar copies the stored cookies into the HTTP context's jar.
func (s *storageState) seedJar(jar *cookiejar.Jar) error {
	byOrigin := make(map[string][]*http.Cookie)
	for _, c := range s.Cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		origin := "https://" + host
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		byOrigin[origin] = append(byOrigin[origin], cookie)
	}
	for origin, cookies := range byOrigin {
		u, err := url.Parse(origin)
		if err != nil {
			return fmt.Errorf("cookie origin %s: %w", origin, err)
		}
		jar.SetCookies(u, cookies)
	}
	return nil
}
