// Package session owns the per-run browser rendering context and the
// lightweight HTTP context that shares its login session. Both are created
// once per run and released together on every exit path.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// Options configures the run session.
type Options struct {
	// StorageStatePath points at the exported login session (cookies).
	// Required: the portals serve nothing useful anonymously.
	StorageStatePath string
	Headless         bool
	// SlowMo inserts a delay between browser actions, useful when
	// observing a headful run.
	SlowMo time.Duration
	// ProxyServer is a scheme-less or scheme-full proxy address applied
	// to both contexts.
	ProxyServer   string
	ProxyUsername string
	ProxyPassword string
	// ExtraHeaders are sent with every HTTP-context request.
	ExtraHeaders map[string]string
	// HTTPTimeout bounds each HTTP-context request. Zero means 20s.
	HTTPTimeout time.Duration
}

// Session bundles the rendering browser and the HTTP client for one run.
type Session struct {
	Browser *rod.Browser
	// HTTP shares the login cookies with the browser but skips rendering
	// cost entirely. Preferred for PDF downloads and type probes.
	HTTP *http.Client

	launch *launcher.Launcher
}

// New launches the browser, loads the stored login state into both contexts
// and returns the ready session. Any partially created resource is released
// before an error is returned.
func New(opts Options) (*Session, error) {
	if opts.StorageStatePath == "" {
		return nil, fmt.Errorf("session: storage state path is required")
	}
	state, err := loadStorageState(opts.StorageStatePath)
	if err != nil {
		return nil, err
	}

	l := launcher.New().Headless(opts.Headless)
	if opts.ProxyServer != "" {
		l = l.Set(flags.ProxyServer, ensureProxyScheme(opts.ProxyServer))
	}
	controlURL, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if opts.SlowMo > 0 {
		browser = browser.SlowMotion(opts.SlowMo)
	}
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s := &Session{Browser: browser, launch: l}

	if opts.ProxyUsername != "" {
		waitAuth := browser.HandleAuth(opts.ProxyUsername, opts.ProxyPassword)
		go func() {
			if err := waitAuth(); err != nil {
				log.Debug().Err(err).Msg("proxy auth handler finished")
			}
		}()
	}

	if err := browser.SetCookies(state.browserCookies()); err != nil {
		s.Close()
		return nil, fmt.Errorf("seed browser cookies: %w", err)
	}

	client, err := newHTTPClient(opts, state)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.HTTP = client
	return s, nil
}

// With runs fn against a freshly created session and guarantees disposal on
// every exit path.
func With(opts Options, fn func(*Session) error) error {
	s, err := New(opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// NewPage opens one rendering page. Callers own the page and close it when
// the entry is done.
func (s *Session) NewPage(ctx context.Context) (*rod.Page, error) {
	page, err := s.Browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return page.Context(ctx), nil
}

// Close releases the browser process and its launcher state. Individual
// close failures are logged, never propagated: cleanup of one resource must
// not mask cleanup of the rest.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.Browser != nil {
		if err := s.Browser.Close(); err != nil {
			log.Warn().Err(err).Msg("browser close failed")
		}
		s.Browser = nil
	}
	if s.launch != nil {
		s.launch.Kill()
		s.launch.Cleanup()
		s.launch = nil
	}
	s.HTTP = nil
}

// newHTTPClient builds the lightweight HTTP context: same cookies, same
// proxy, same extra headers as the rendering context.
func newHTTPClient(opts Options, state *storageState) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if err := state.seedJar(jar); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyServer != "" {
		proxyURL, err := url.Parse(ensureProxyScheme(opts.ProxyServer))
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		if opts.ProxyUsername != "" {
			proxyURL.User = url.UserPassword(opts.ProxyUsername, opts.ProxyPassword)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	var rt http.RoundTripper = transport
	if len(opts.ExtraHeaders) > 0 {
		rt = &headerTransport{base: transport, headers: opts.ExtraHeaders}
	}
	return &http.Client{Jar: jar, Transport: rt, Timeout: timeout}, nil
}

// headerTransport applies the session's extra headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if clone.Header.Get(k) == "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}

func ensureProxyScheme(server string) string {
	u, err := url.Parse(server)
	if err == nil && u.Scheme != "" && u.Host != "" {
		return server
	}
	return "http://" + server
}
