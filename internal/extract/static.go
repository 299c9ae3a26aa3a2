package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DefaultStaticSelectors is the cascade for the static re-parse path. It
// overlaps the rendered-path cascade but leads with the composed structural
// selectors that only a full document tree can match.
var DefaultStaticSelectors = []string{
	"div.content-grid > main.center > article.front-page",
	"main.center",
	"div.content-grid",
	"article.front-page",
	"article.theme-container",
	"article.disclosure",
	".theme-container",
	`[data-testid="publication-body"]`,
	"main",
	"article",
	"body",
}

// StaticOptions tunes a static parse.
type StaticOptions struct {
	// Selectors is the cascade to try in order. Empty means
	// DefaultStaticSelectors.
	Selectors []string
	// MinLength is the rune count at which a non-body candidate wins
	// outright. Zero means 400.
	MinLength int
}

// Section is one candidate block the cascade produced.
type Section struct {
	Selector string
	Text     string
}

// StaticResult is the outcome of a static parse.
type StaticResult struct {
	Text     string
	Sections []Section
	Meta     PageMeta
}

// PageMeta is page-level metadata harvested from meta tags and headings.
type PageMeta struct {
	Title       string `json:"title,omitempty"`
	Headline    string `json:"headline,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Author      string `json:"author,omitempty"`
}

// metaSelectors are the prioritized harvest lists; within each list the
// first non-empty value wins.
var (
	titleSelectors = []string{
		`meta[property="og:title"]`,
		`meta[name="twitter:title"]`,
		`meta[name="title"]`,
		`meta[itemprop="headline"]`,
		"title",
	}
	headlineSelectors = []string{
		"article h1", "main h1", ".headline", ".title", "h1",
	}
	publishedSelectors = []string{
		`meta[property="article:published_time"]`,
		`meta[name="pubdate"]`,
		`meta[name="publication_date"]`,
		`meta[name="date"]`,
		"time[datetime]",
	}
	authorSelectors = []string{
		`meta[name="author"]`,
		`meta[property="article:author"]`,
		".author", ".analyst", ".byline",
	}
)

// FromHTML extracts readable text from raw HTML without a browser: reveal
// policy first, boilerplate nodes stripped, then the selector cascade with
// first non-empty text as the floor and the first sufficiently long
// non-body candidate as the winner.
func FromHTML(rawHTML string, opts StaticOptions) (*StaticResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	revealStatic(doc)
	doc.Find("script, style, noscript, template, svg, iframe").Remove()

	selectors := opts.Selectors
	if len(selectors) == 0 {
		selectors = DefaultStaticSelectors
	}
	minLength := opts.MinLength
	if minLength <= 0 {
		minLength = 400
	}

	res := &StaticResult{Meta: harvestMeta(doc)}
	for _, selector := range selectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		text := normalizeWhitespace(node.Text())
		if text == "" {
			continue
		}
		res.Sections = append(res.Sections, Section{Selector: selector, Text: text})
		if selector != "body" && utf8.RuneCountInString(text) >= minLength {
			res.Text = text
			break
		}
	}

	if res.Text == "" {
		if len(res.Sections) > 0 {
			res.Text = res.Sections[0].Text
		} else {
			res.Text = normalizeWhitespace(doc.Find("body").Text())
		}
	}
	return res, nil
}

func harvestMeta(doc *goquery.Document) PageMeta {
	meta := PageMeta{
		Title:       pickFirst(doc, titleSelectors),
		PublishedAt: pickFirst(doc, publishedSelectors),
		Author:      pickFirst(doc, authorSelectors),
	}
	meta.Headline = meta.Title
	if meta.Headline == "" {
		meta.Headline = pickFirst(doc, headlineSelectors)
	}
	return meta
}

// pickFirst walks a prioritized selector list and returns the first
// non-empty value: the content attribute for meta tags, the datetime
// attribute for time elements, text content otherwise.
func pickFirst(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		if strings.HasPrefix(selector, "meta[") {
			if v, ok := node.Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
			continue
		}
		if strings.HasPrefix(selector, "time[") {
			if v, ok := node.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
			continue
		}
		if v := strings.TrimSpace(node.Text()); v != "" {
			return v
		}
	}
	return ""
}
