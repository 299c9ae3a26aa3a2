// Package detect classifies a URL as PDF or HTML by network probing. It
// gathers evidence and never fails: the worst case is a low-confidence guess
// from the URL itself.
package detect

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Info is the detector's evidence record attached to every extraction
// result for traceability.
type Info struct {
	// Type is "pdf" or "html".
	Type string `json:"type"`
	// Via records how the classification was reached: "head", "get",
	// "url", or "fallback" when both probes failed. The orchestrator
	// rewrites it to "html->pdf" when the PDF fallback tier produced the
	// final result.
	Via         string `json:"via"`
	ContentType string `json:"contentType,omitempty"`
	Status      int    `json:"status,omitempty"`
}

const (
	TypePDF  = "pdf"
	TypeHTML = "html"
)

// DefaultTimeout bounds each probe request.
const DefaultTimeout = 20 * time.Second

// maxProbeRedirects caps redirect following during the GET probe. Portals
// that bounce through login redirects are classified from the URL instead.
const maxProbeRedirects = 2

var pdfSuffixRe = regexp.MustCompile(`(?i)\.pdf($|[?#])`)
var pdfFormatRe = regexp.MustCompile(`(?i)format=pdf`)

// InferTypeFromURL classifies from the URL's suffix and query string alone.
func InferTypeFromURL(rawURL string) string {
	if rawURL == "" {
		return TypeHTML
	}
	if pdfSuffixRe.MatchString(rawURL) || pdfFormatRe.MatchString(rawURL) {
		return TypePDF
	}
	return TypeHTML
}

// Detector probes URLs over a session-scoped HTTP client.
type Detector struct {
	// HTTPClient carries the run's cookies/proxy. When nil, detection
	// degrades to the URL heuristic immediately.
	HTTPClient *http.Client
	// Timeout bounds each probe. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Detect issues a HEAD probe, falls back to a GET when HEAD fails or is
// rejected with a client error (some portals reject HEAD but serve GET
// normally), and finally guesses from the URL. It never returns an error.
func (d *Detector) Detect(ctx context.Context, rawURL string) Info {
	if d == nil || d.HTTPClient == nil {
		return Info{Type: InferTypeFromURL(rawURL), Via: "url"}
	}

	head, headOK := d.probe(ctx, http.MethodHead, rawURL)
	if headOK {
		return head
	}
	if head.Status >= 400 && head.Status < 500 {
		get, getOK := d.probe(ctx, http.MethodGet, rawURL)
		if getOK {
			return get
		}
		status := get.Status
		if status == 0 {
			status = head.Status
		}
		return Info{Type: InferTypeFromURL(rawURL), Via: "fallback", Status: status}
	}
	get, getOK := d.probe(ctx, http.MethodGet, rawURL)
	if getOK {
		return get
	}
	return Info{Type: InferTypeFromURL(rawURL), Via: "url"}
}

// probe issues one request and classifies from its Content-Type. The bool
// result reports whether the probe produced a usable classification.
func (d *Detector) probe(ctx context.Context, method, rawURL string) (Info, bool) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return Info{}, false
	}
	client := d.probeClient()
	resp, err := client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Str("url", rawURL).Msg("type probe failed")
		return Info{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Info{Status: resp.StatusCode}, false
	}
	via := strings.ToLower(method)
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" {
		lower := strings.ToLower(contentType)
		if strings.Contains(lower, "pdf") {
			return Info{Type: TypePDF, Via: via, ContentType: contentType, Status: resp.StatusCode}, true
		}
		if strings.Contains(lower, "html") || strings.Contains(lower, "text/plain") {
			return Info{Type: TypeHTML, Via: via, ContentType: contentType, Status: resp.StatusCode}, true
		}
	}
	return Info{Type: InferTypeFromURL(rawURL), Via: via, ContentType: contentType, Status: resp.StatusCode}, true
}

// probeClient clones the session client to attach a redirect cap without
// mutating the shared instance.
func (d *Detector) probeClient() *http.Client {
	base := *d.HTTPClient
	base.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxProbeRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}
	return &base
}
