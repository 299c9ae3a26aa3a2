package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

// DefaultSelectors is the rendered-path cascade: specific publication-body
// selectors first, generic containers last.
var DefaultSelectors = []string{
	`[data-testid="publication-body"]`,
	".publication-body",
	".report-body",
	".reportBody",
	".article-body",
	"div.content-grid",
	"main.center",
	"article.front-page",
	"article.theme-container",
	"article.disclosure",
	"article",
	"#content",
	"#contents",
	".content",
	".main-content",
}

// ErrPDFContent signals that the navigated resource is a PDF and the caller
// should switch to the PDF extraction path.
var ErrPDFContent = errors.New("content type is pdf, html extraction skipped")

// richTextMinRunes is the rendered-text length at which a candidate's
// innerText wins over its raw textContent.
const richTextMinRunes = 300

// HTMLResult is a successful rendered extraction.
type HTMLResult struct {
	Text string
	// HTML is the winning candidate's markup, or the full page when the
	// static re-parse produced the text. Feeds the candidate generator.
	HTML string
	// FinalURL is the page URL after redirects, used to absolutize
	// scraped candidate links.
	FinalURL string
	Meta     HTMLMeta
}

// HTMLMeta records how the text was obtained.
type HTMLMeta struct {
	// Selector is the winning cascade selector, empty for the body
	// fallback.
	Selector string `json:"selector,omitempty"`
	// Via is the strategy path: "selector", "body" or "static".
	Via         string   `json:"via"`
	ContentType string   `json:"contentType,omitempty"`
	Page        PageMeta `json:"page"`
}

// HTMLExtractor renders a page and selects the best content block.
type HTMLExtractor struct {
	// Selectors overrides the cascade. Empty means DefaultSelectors.
	Selectors []string
	// NavigateTimeout bounds navigation. Zero means 20s.
	NavigateTimeout time.Duration
	// SelectorWait is the shared budget for waiting on cascade
	// selectors to appear. Zero means 5s.
	SelectorWait time.Duration
	// MinTextLength is the rune count under which the static re-parse
	// runs. Zero means 400.
	MinTextLength int
}

type candidatePayload struct {
	Selector    string `json:"selector"`
	InnerText   string `json:"innerText"`
	TextContent string `json:"textContent"`
	HTML        string `json:"html"`
}

type collectedPage struct {
	Results []candidatePayload `json:"results"`
	Body    *candidatePayload  `json:"body"`
}

const collectJS = `(selectors) => {
	const toPayload = (sel) => {
		const node = sel === 'body' ? document.body : document.querySelector(sel);
		if (!node) return null;
		return {
			selector: sel,
			innerText: node.innerText ? node.innerText.trim() : '',
			textContent: node.textContent ? node.textContent.trim() : '',
			html: node.innerHTML || ''
		};
	};
	const results = [];
	for (const sel of selectors) {
		const payload = toPayload(sel);
		if (payload && (payload.innerText || payload.textContent)) {
			results.push(payload);
		}
	}
	return { results, body: toPayload('body') };
}`

// Extract navigates page to url and returns the best content block per the
// cascade, falling back to a static re-parse of the raw page HTML when the
// rendered text is too short.
func (e *HTMLExtractor) Extract(page *rod.Page, url string) (*HTMLResult, error) {
	navTimeout := e.NavigateTimeout
	if navTimeout <= 0 {
		navTimeout = 20 * time.Second
	}
	selectorWait := e.SelectorWait
	if selectorWait <= 0 {
		selectorWait = 5 * time.Second
	}
	minText := e.MinTextLength
	if minText <= 0 {
		minText = 400
	}
	selectors := e.Selectors
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}

	if err := page.Timeout(navTimeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.Timeout(navTimeout).WaitLoad(); err != nil {
		// Slow pages keep loading assets forever; extraction proceeds
		// with whatever the DOM holds.
		log.Debug().Err(err).Str("url", url).Msg("load wait expired")
	}

	contentType := pageContentType(page)
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return nil, ErrPDFContent
	}
	if contentType == "" {
		contentType = "text/html"
	}

	if _, err := page.Eval(revealJS, RevealMarkers); err != nil {
		log.Debug().Err(err).Msg("reveal pass failed")
	}

	winner := waitForAnySelector(page, selectors, selectorWait)
	if winner != "" {
		log.Debug().Str("selector", winner).Msg("content selector appeared")
	}

	data, err := e.collect(page, selectors)
	if err != nil {
		return nil, fmt.Errorf("collect candidates: %w", err)
	}

	result := pickCandidate(data)
	if result == nil {
		return nil, fmt.Errorf("extract %s: no candidate produced text", url)
	}
	result.Meta.ContentType = contentType

	pageHTML, htmlErr := page.HTML()
	if htmlErr != nil {
		log.Debug().Err(htmlErr).Msg("page html unavailable")
	}

	if utf8.RuneCountInString(result.Text) < minText && pageHTML != "" {
		static, err := FromHTML(pageHTML, StaticOptions{
			Selectors: DefaultStaticSelectors,
			MinLength: minText / 2,
		})
		if err == nil && len(static.Text) > len(result.Text) {
			selector := result.Meta.Selector
			if selector == "" && len(static.Sections) > 0 {
				selector = static.Sections[0].Selector
			}
			result = &HTMLResult{
				Text: static.Text,
				HTML: pageHTML,
				Meta: HTMLMeta{Selector: selector, Via: "static", ContentType: contentType},
			}
		}
	}

	if result.HTML == "" {
		result.HTML = pageHTML
	}
	if info, err := page.Info(); err == nil {
		result.FinalURL = info.URL
	}
	if pageHTML != "" {
		if static, err := FromHTML(pageHTML, StaticOptions{}); err == nil {
			result.Meta.Page = static.Meta
		}
	}
	return result, nil
}

func (e *HTMLExtractor) collect(page *rod.Page, selectors []string) (*collectedPage, error) {
	obj, err := page.Eval(collectJS, selectors)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(obj.Value)
	if err != nil {
		return nil, err
	}
	var data collectedPage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// pickCandidate applies the cascade policy: first candidate whose rendered
// innerText is long enough, else the first with any text, else the body.
func pickCandidate(data *collectedPage) *HTMLResult {
	for _, c := range data.Results {
		text := c.TextContent
		if utf8.RuneCountInString(c.InnerText) >= richTextMinRunes {
			text = c.InnerText
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		return &HTMLResult{
			Text: normalizeWhitespace(text),
			HTML: c.HTML,
			Meta: HTMLMeta{Selector: c.Selector, Via: "selector"},
		}
	}
	if b := data.Body; b != nil {
		text := b.InnerText
		if text == "" {
			text = b.TextContent
		}
		if strings.TrimSpace(text) != "" {
			return &HTMLResult{
				Text: normalizeWhitespace(text),
				HTML: b.HTML,
				Meta: HTMLMeta{Via: "body"},
			}
		}
	}
	return nil
}

// waitForAnySelector walks the cascade sharing one deadline and returns the
// first selector that appears, or empty when the budget runs out.
func waitForAnySelector(page *rod.Page, selectors []string, budget time.Duration) string {
	deadline := time.Now().Add(budget)
	for _, selector := range selectors {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if el, err := page.Timeout(remaining).Element(selector); err == nil && el != nil {
			return selector
		}
	}
	return ""
}

func pageContentType(page *rod.Page) string {
	obj, err := page.Eval(`() => document.contentType || ''`)
	if err != nil {
		return ""
	}
	return obj.Value.Str()
}
