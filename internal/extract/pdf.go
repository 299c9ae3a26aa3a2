package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/fintelab/goharvest/internal/session"
)

// PDFResult is a successful PDF extraction. Buffer always holds the source
// bytes so downstream collaborators can persist the original document.
type PDFResult struct {
	Text   string
	Buffer []byte
	Meta   PDFMeta
}

// PDFMeta records provenance for a PDF extraction.
type PDFMeta struct {
	ContentType string `json:"contentType,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	Bytes       int    `json:"bytes"`
	DownloadURL string `json:"downloadUrl"`
}

// InlineFetchJS re-fetches the current URL inside the page with the page's
// own credentials and returns the body base64-encoded, empty on any
// failure. Used when no direct HTTP path to the bytes exists.
const InlineFetchJS = `async () => {
	try {
		const res = await fetch(window.location.href, { credentials: 'include' });
		if (!res.ok) return '';
		const buf = await res.arrayBuffer();
		const bytes = new Uint8Array(buf);
		let binary = '';
		const chunk = 0x8000;
		for (let i = 0; i < bytes.length; i += chunk) {
			binary += String.fromCharCode.apply(null, bytes.subarray(i, i + chunk));
		}
		return btoa(binary);
	} catch (e) {
		return '';
	}
}`

// PDFExtractor fetches and parses PDF bytes into text. It prefers the
// session's lightweight HTTP context; without one it navigates a rendering
// page and re-fetches the bytes in-page.
type PDFExtractor struct {
	HTTP *http.Client
	// Session enables the page-navigation fallback when HTTP is nil.
	Session *session.Session
	// Timeout bounds the download. Zero means 20s.
	Timeout time.Duration
}

// Extract downloads url and parses it. Non-2xx responses, empty bodies and
// unparseable documents all fail.
func (e *PDFExtractor) Extract(ctx context.Context, url string) (*PDFResult, error) {
	buf, contentType, err := e.download(ctx, url)
	if err != nil {
		return nil, err
	}
	text, pages, err := ParsePDF(buf)
	if err != nil {
		return nil, fmt.Errorf("parse pdf %s: %w", url, err)
	}
	return &PDFResult{
		Text:   text,
		Buffer: buf,
		Meta: PDFMeta{
			ContentType: contentType,
			Pages:       pages,
			Bytes:       len(buf),
			DownloadURL: url,
		},
	}, nil
}

func (e *PDFExtractor) download(ctx context.Context, url string) ([]byte, string, error) {
	if e.HTTP != nil {
		return e.downloadHTTP(ctx, url)
	}
	if e.Session != nil {
		return e.downloadViaPage(ctx, url)
	}
	return nil, "", fmt.Errorf("pdf download: no http client and no session")
}

func (e *PDFExtractor) downloadHTTP(ctx context.Context, url string) ([]byte, string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("pdf request %s: %w", url, err)
	}
	resp, err := e.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("pdf download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("pdf download %s: status %d", url, resp.StatusCode)
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("pdf body %s: %w", url, err)
	}
	if len(buf) == 0 {
		return nil, "", fmt.Errorf("pdf download %s: empty body", url)
	}
	return buf, resp.Header.Get("Content-Type"), nil
}

// downloadViaPage navigates a rendering page to the URL and pulls the bytes
// out with an in-page authenticated fetch.
func (e *PDFExtractor) downloadViaPage(ctx context.Context, url string) ([]byte, string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	page, err := e.Session.NewPage(ctx)
	if err != nil {
		return nil, "", err
	}
	defer page.Close()

	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return nil, "", fmt.Errorf("pdf navigate %s: %w", url, err)
	}
	obj, err := page.Timeout(timeout).Eval(InlineFetchJS)
	if err != nil {
		return nil, "", fmt.Errorf("pdf in-page fetch %s: %w", url, err)
	}
	buf, err := base64.StdEncoding.DecodeString(obj.Value.Str())
	if err != nil {
		return nil, "", fmt.Errorf("pdf in-page fetch %s: decode: %w", url, err)
	}
	if len(buf) == 0 {
		return nil, "", fmt.Errorf("pdf download %s: empty body", url)
	}
	return buf, pageContentType(page), nil
}

// ParsePDF runs a text-extraction pass over the PDF structure and strips
// null bytes. Shared by the direct, fallback and interactive tiers.
func ParsePDF(buf []byte) (string, int, error) {
	if len(buf) == 0 {
		return "", 0, fmt.Errorf("empty pdf content")
	}
	reader, err := pdf.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	text := strings.ReplaceAll(b.String(), "\x00", "")
	return strings.TrimSpace(text), pages, nil
}
