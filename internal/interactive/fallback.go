// Package interactive drives an already-authenticated, remote-debuggable
// browser instance when no programmatic download path exists: it clicks the
// site's configured UI triggers and races capture strategies for the
// resulting bytes. The external browser is a shared resource; the fallback
// closes only what it opened.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fintelab/goharvest/internal/catalog"
)

// Classified failure outcomes.
var (
	// ErrUnsupportedSite means no site configuration matches the entry's
	// domain; the tier is unavailable, not failed.
	ErrUnsupportedSite = errors.New("no site configuration for domain")
	// ErrUnavailable means the remote-debugging endpoint is unreachable.
	ErrUnavailable = errors.New("remote debugging endpoint unavailable")
	// ErrNoCapture means every configured selector was exhausted without
	// producing bytes.
	ErrNoCapture = errors.New("no selector triggered a capture")
)

// Capture is a successful interactive attempt.
type Capture struct {
	// Path is the persisted artifact whose extension matches Format.
	Path        string
	Format      string
	ContentType string
	Bytes       int
	// Selector is the trigger that produced the capture.
	Selector string
}

// connection abstracts the attached browser so the attempt loop can be
// exercised without a live instance.
type connection interface {
	// OpenPage opens a fresh tab in the externally owned context.
	OpenPage() (page, error)
	// Pages lists every open tab, including ones the attempt did not
	// open itself.
	Pages() ([]page, error)
	// Close releases only resources this attempt created, never the
	// external browser.
	Close() error
}

// page is one driven tab.
type page interface {
	ID() string
	URL() string
	Navigate(url string, timeout time.Duration) error
	// Click waits for the selector to become visible and clicks it.
	Click(selector string, timeout time.Duration) error
	// Capture races the download-event, network-response and in-page
	// fetch strategies against one shared deadline.
	Capture(ctx context.Context, deadline time.Duration) ([]byte, string, error)
	// Observe feeds console and PDF-network events into the audit log
	// until the page closes.
	Observe(audit *AuditLog)
	Close() error
}

// Fallback owns the interactive tier's configuration.
type Fallback struct {
	// Host and Port locate the remote-debugging endpoint.
	Host string
	Port int
	// Sites is the loaded site configuration table.
	Sites []SiteConfig
	// SaveDir receives captured artifacts, grouped by run date.
	SaveDir string
	// LogDir receives audit logs, grouped by run date.
	LogDir string
	// NavigateTimeout bounds the initial navigation. Zero means 30s.
	NavigateTimeout time.Duration
	// SelectorTimeout bounds each trigger wait. Zero means 5s.
	SelectorTimeout time.Duration
	// CaptureTimeout is the shared deadline of one capture race. Zero
	// means 30s.
	CaptureTimeout time.Duration

	// dial overrides the connection factory in tests.
	dial func(ctx context.Context) (connection, error)
}

func (f *Fallback) endpoint() string {
	host := f.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := f.Port
	if port == 0 {
		port = 9222
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Available probes the endpoint's /json/version within a short timeout.
func (f *Fallback) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+f.endpoint()+"/json/version", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Run executes one interactive attempt for the entry. The audit log is
// written once per attempt regardless of outcome; every page the attempt
// opened is closed on every exit path.
func (f *Fallback) Run(ctx context.Context, entry catalog.Entry, date string) (*Capture, error) {
	u, err := url.Parse(entry.URL)
	if err != nil {
		return nil, fmt.Errorf("parse entry url: %w", err)
	}
	domain := u.Hostname()
	site, ok := MatchSite(f.Sites, entry.URL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSite, domain)
	}

	audit := newAuditLog(entry.ID, date, entry.URL, domain, site.Name)
	capture, err := f.attempt(ctx, entry, site, audit)
	if err != nil {
		audit.Success = false
		audit.Error = err.Error()
		audit.AddStep(Step{Action: "error", Error: err.Error()})
	} else {
		audit.Success = true
		audit.ClickedSelector = capture.Selector
		audit.DetectedFormat = capture.Format
		audit.ContentType = capture.ContentType
	}
	if saveErr := audit.Save(f.LogDir); saveErr != nil {
		log.Warn().Err(saveErr).Str("entry", entry.ID).Msg("audit log write failed")
	}
	return capture, err
}

func (f *Fallback) attempt(ctx context.Context, entry catalog.Entry, site SiteConfig, audit *AuditLog) (_ *Capture, retErr error) {
	dial := f.dial
	if dial == nil {
		dial = f.dialRod
	}
	conn, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// managed tracks every page this attempt opened or adopted; all of
	// them are closed on exit, the external browser never is.
	managed := make(map[string]page)
	defer func() {
		for id, p := range managed {
			if err := p.Close(); err != nil {
				log.Warn().Err(err).Str("page", id).Msg("page close failed")
			}
		}
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("connection close failed")
		}
	}()

	// Tabs that were already open belong to whoever else is using the
	// browser; they are never adopted and never closed.
	preexisting := make(map[string]struct{})
	if open, err := conn.Pages(); err == nil {
		for _, p := range open {
			preexisting[p.ID()] = struct{}{}
		}
	}

	initial, err := conn.OpenPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	managed[initial.ID()] = initial
	initial.Observe(audit)

	navTimeout := f.NavigateTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	selTimeout := f.SelectorTimeout
	if selTimeout <= 0 {
		selTimeout = 5 * time.Second
	}
	capTimeout := f.CaptureTimeout
	if capTimeout <= 0 {
		capTimeout = 30 * time.Second
	}

	audit.AddStep(Step{Action: "navigate", URL: entry.URL})
	if err := initial.Navigate(entry.URL, navTimeout); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", entry.URL, err)
	}

	current := initial
	var body []byte
	var contentType, clickedSelector string
	for _, selector := range site.Selectors {
		audit.AddStep(Step{Action: "click_attempt", Selector: selector})
		if err := current.Click(selector, selTimeout); err != nil {
			audit.AddStep(Step{Action: "click_failed", Selector: selector, Error: err.Error()})
			continue
		}

		captured, ct, err := current.Capture(ctx, capTimeout)
		if err != nil {
			log.Debug().Err(err).Str("selector", selector).Msg("capture race errored")
		}
		if len(captured) > 0 {
			body, contentType, clickedSelector = captured, ct, selector
			audit.AddStep(Step{Action: "capture", Selector: selector})
			break
		}

		// A click that spawns a new tab moves the download there; retry
		// the race against the new page and drop it only if it also
		// yields nothing.
		if newPage := f.adoptNewPage(conn, managed, preexisting); newPage != nil {
			audit.AddStep(Step{Action: "new_tab_detected", Selector: selector, URL: newPage.URL()})
			newPage.Observe(audit)
			captured, ct, err = newPage.Capture(ctx, capTimeout)
			if err != nil {
				log.Debug().Err(err).Str("selector", selector).Msg("new tab capture errored")
			}
			if len(captured) > 0 {
				body, contentType, clickedSelector = captured, ct, selector
				current = newPage
				audit.AddStep(Step{Action: "capture_new_tab", Selector: selector})
				break
			}
			audit.AddStep(Step{Action: "new_tab_closed_without_capture", Selector: selector})
			if err := newPage.Close(); err != nil {
				log.Warn().Err(err).Msg("new tab close failed")
			}
			delete(managed, newPage.ID())
			current = initial
			continue
		}
		audit.AddStep(Step{Action: "capture_not_detected", Selector: selector})
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%w (%d selectors tried)", ErrNoCapture, len(site.Selectors))
	}

	capture, err := f.persist(entry, audit, body, contentType, clickedSelector)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// adoptNewPage diffs the connection's open tabs against the managed and
// pre-existing sets and adopts the first genuinely new one.
func (f *Fallback) adoptNewPage(conn connection, managed map[string]page, preexisting map[string]struct{}) page {
	pages, err := conn.Pages()
	if err != nil {
		log.Debug().Err(err).Msg("page listing failed")
		return nil
	}
	for _, p := range pages {
		if _, ok := managed[p.ID()]; ok {
			continue
		}
		if _, ok := preexisting[p.ID()]; ok {
			continue
		}
		managed[p.ID()] = p
		return p
	}
	return nil
}

// persist writes the captured bytes to the save dir, sniffs the real format
// and renames the artifact's extension to match it.
func (f *Fallback) persist(entry catalog.Entry, audit *AuditLog, body []byte, contentType, selector string) (*Capture, error) {
	date := audit.Date
	if date == "" {
		date = "unknown"
	}
	dir := filepath.Join(f.SaveDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("capture dir: %w", err)
	}
	name := entry.ID
	if name == "" {
		name = "download"
	}

	format, sniffedType := SniffFormat(body)
	if contentType == "" {
		contentType = sniffedType
	}
	path := filepath.Join(dir, name+extensionFor(format))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, fmt.Errorf("capture write: %w", err)
	}
	audit.AddStep(Step{Action: "capture_saved", Path: path, Format: format})

	return &Capture{
		Path:        path,
		Format:      format,
		ContentType: contentType,
		Bytes:       len(body),
		Selector:    selector,
	}, nil
}
