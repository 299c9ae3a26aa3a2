package interactive

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/fintelab/goharvest/internal/extract"
)

// dialRod attaches to the externally running browser over the DevTools
// protocol. The connection is scoped to a cancellable context: closing it
// drops the websocket without touching the browser process.
func (f *Fallback) dialRod(ctx context.Context) (connection, error) {
	controlURL, err := launcher.ResolveURL(f.endpoint())
	if err != nil {
		return nil, fmt.Errorf("resolve control url: %w", err)
	}
	connCtx, cancel := context.WithCancel(ctx)
	browser := rod.New().ControlURL(controlURL).Context(connCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("attach browser: %w", err)
	}
	return &rodConn{browser: browser, cancel: cancel}, nil
}

type rodConn struct {
	browser *rod.Browser
	cancel  context.CancelFunc
}

func (c *rodConn) OpenPage() (page, error) {
	pg, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}
	return &rodPage{page: pg, browser: c.browser}, nil
}

func (c *rodConn) Pages() ([]page, error) {
	open, err := c.browser.Pages()
	if err != nil {
		return nil, err
	}
	out := make([]page, 0, len(open))
	for _, pg := range open {
		out = append(out, &rodPage{page: pg, browser: c.browser})
	}
	return out, nil
}

// Close drops the attachment. The browser belongs to whoever launched it
// and keeps running.
func (c *rodConn) Close() error {
	c.cancel()
	return nil
}

type rodPage struct {
	page    *rod.Page
	browser *rod.Browser
}

func (p *rodPage) ID() string { return string(p.page.TargetID) }

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Navigate(url string, timeout time.Duration) error {
	if err := p.page.Timeout(timeout).Navigate(url); err != nil {
		return err
	}
	if err := p.page.Timeout(timeout).WaitLoad(); err != nil {
		log.Debug().Err(err).Str("url", url).Msg("load wait expired")
	}
	return nil
}

func (p *rodPage) Click(selector string, timeout time.Duration) error {
	el, err := p.page.Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("wait %s: %w", selector, err)
	}
	if err := el.Timeout(timeout).WaitVisible(); err != nil {
		return fmt.Errorf("visible %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Capture races the three strategies: a native download event, a direct
// PDF network response, and an in-page authenticated re-fetch of the
// current URL.
func (p *rodPage) Capture(ctx context.Context, deadline time.Duration) ([]byte, string, error) {
	return raceCapture(ctx, deadline, []captureStrategy{
		p.downloadStrategy,
		p.networkStrategy,
		p.inlineFetchStrategy,
	})
}

// downloadStrategy waits for a browser download triggered by the click and
// reads the saved bytes back.
func (p *rodPage) downloadStrategy(ctx context.Context) ([]byte, string, error) {
	dir, err := os.MkdirTemp("", "goharvest-download-*")
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(dir)

	wait := p.browser.Context(ctx).WaitDownload(dir)
	info := wait()
	if info == nil {
		return nil, "", nil
	}
	body, err := os.ReadFile(filepath.Join(dir, info.GUID))
	if err != nil {
		return nil, "", fmt.Errorf("read download: %w", err)
	}
	return body, "", nil
}

// networkStrategy grabs the body of the first PDF response the page sees.
func (p *rodPage) networkStrategy(ctx context.Context) ([]byte, string, error) {
	pg := p.page.Context(ctx)
	var body []byte
	var contentType string
	pg.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		mime := strings.ToLower(e.Response.MIMEType)
		if !strings.Contains(mime, "pdf") {
			return false
		}
		res, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(pg)
		if err != nil {
			return false
		}
		buf := []byte(res.Body)
		if res.Base64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(res.Body)
			if err != nil {
				return false
			}
			buf = decoded
		}
		if len(buf) == 0 {
			return false
		}
		body = buf
		contentType = e.Response.MIMEType
		return true
	})()
	return body, contentType, nil
}

// inlineFetchStrategy re-fetches the current URL with the page's own
// credentials, for viewers that stream the document without a download.
func (p *rodPage) inlineFetchStrategy(ctx context.Context) ([]byte, string, error) {
	obj, err := p.page.Context(ctx).Eval(extract.InlineFetchJS)
	if err != nil {
		return nil, "", nil
	}
	body, err := base64.StdEncoding.DecodeString(obj.Value.Str())
	if err != nil || len(body) == 0 {
		return nil, "", nil
	}
	return body, "", nil
}

// Observe feeds console output and PDF-touching responses into the audit
// log until the page's context ends.
func (p *rodPage) Observe(audit *AuditLog) {
	pg := p.page
	go pg.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			audit.AddConsoleMessage(ConsoleMessage{
				Type: string(e.Type),
				Text: consoleText(e),
			})
		},
		func(e *proto.NetworkResponseReceived) {
			mime := strings.ToLower(e.Response.MIMEType)
			if !strings.Contains(e.Response.URL, ".pdf") && !strings.Contains(mime, "pdf") {
				return
			}
			audit.AddNetworkRequest(NetworkRequest{
				URL:         e.Response.URL,
				Status:      e.Response.Status,
				ContentType: e.Response.MIMEType,
			})
		},
	)()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

func consoleText(e *proto.RuntimeConsoleAPICalled) string {
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		parts = append(parts, arg.Value.String())
	}
	return strings.Join(parts, " ")
}
