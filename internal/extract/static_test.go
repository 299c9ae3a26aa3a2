package extract

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFromHTMLSelectorCascade(t *testing.T) {
	body := strings.Repeat("report sentence. ", 60)
	html := `<html><body>
		<article class="front-page">` + body + `</article>
		<footer>ignored</footer>
	</body></html>`
	res, err := FromHTML(html, StaticOptions{MinLength: 100})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "report sentence.") {
		t.Fatalf("text = %q", res.Text)
	}
	if utf8.RuneCountInString(res.Text) < 100 {
		t.Fatalf("winner too short: %d runes", utf8.RuneCountInString(res.Text))
	}
	if strings.Contains(res.Text, "ignored") {
		t.Fatal("footer leaked into article extraction")
	}
}

func TestFromHTMLLaterSelectorWins(t *testing.T) {
	long := strings.Repeat("substantial body text. ", 50)
	html := `<html><body>
		<main class="center">short</main>
		<article class="theme-container">` + long + `</article>
	</body></html>`
	res, err := FromHTML(html, StaticOptions{MinLength: 100})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "substantial body text.") {
		t.Fatalf("text = %q, want the long later candidate", res.Text)
	}
	if res.Text == "short" {
		t.Fatal("short first candidate won over the threshold-crossing one")
	}
}

func TestFromHTMLFallsBackToFirstNonEmpty(t *testing.T) {
	html := `<html><body><main class="center">short but only</main></body></html>`
	res, err := FromHTML(html, StaticOptions{MinLength: 400})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "short but only") {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestFromHTMLStripsScriptAndStyle(t *testing.T) {
	html := `<html><body><article>
		visible text
		<script>var hidden = "scriptcontent";</script>
		<style>.x { color: red }</style>
	</article></body></html>`
	res, err := FromHTML(html, StaticOptions{MinLength: 5})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Text, "scriptcontent") || strings.Contains(res.Text, "color: red") {
		t.Fatalf("boilerplate leaked: %q", res.Text)
	}
}

func TestFromHTMLRevealsCollapsedContent(t *testing.T) {
	hidden := strings.Repeat("collapsed report body. ", 40)
	html := `<html><body><article class="theme-container">
		<div class="collapsible" style="display:none; max-height: 0">` + hidden + `</div>
	</article></body></html>`
	res, err := FromHTML(html, StaticOptions{MinLength: 100})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "collapsed report body.") {
		t.Fatalf("collapsed content not revealed: %q", res.Text)
	}
}

func TestFromHTMLHarvestsMeta(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Quarterly Strategy Note">
		<meta property="article:published_time" content="2026-08-28T09:00:00Z">
		<meta name="author" content="Research Desk">
		<title>fallback title</title>
	</head><body><article>body text here</article></body></html>`
	res, err := FromHTML(html, StaticOptions{MinLength: 5})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.Title != "Quarterly Strategy Note" {
		t.Fatalf("title = %q", res.Meta.Title)
	}
	if res.Meta.PublishedAt != "2026-08-28T09:00:00Z" {
		t.Fatalf("publishedAt = %q", res.Meta.PublishedAt)
	}
	if res.Meta.Author != "Research Desk" {
		t.Fatalf("author = %q", res.Meta.Author)
	}
	if res.Meta.Headline != "Quarterly Strategy Note" {
		t.Fatalf("headline = %q", res.Meta.Headline)
	}
}

func TestFromHTMLHeadlineFallsBackToH1(t *testing.T) {
	html := `<html><body><article><h1>Sector Heatmap</h1>content</article></body></html>`
	res, err := FromHTML(html, StaticOptions{MinLength: 5})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.Headline != "Sector Heatmap" {
		t.Fatalf("headline = %q", res.Meta.Headline)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "line one\r\n\r\n\r\n  line\ttwo  \n\n\n line three \n"
	got := normalizeWhitespace(in)
	want := "line one\n\nline two\n\nline three"
	if got != want {
		t.Fatalf("normalizeWhitespace = %q, want %q", got, want)
	}
}

func TestPickCandidatePrefersRichInnerText(t *testing.T) {
	rich := strings.Repeat("rendered text ", 30)
	data := &collectedPage{Results: []candidatePayload{{
		Selector:    ".report-body",
		InnerText:   rich,
		TextContent: "raw text content",
		HTML:        "<p>x</p>",
	}}}
	res := pickCandidate(data)
	if res == nil {
		t.Fatal("no candidate")
	}
	if !strings.Contains(res.Text, "rendered text") {
		t.Fatalf("text = %q, want innerText", res.Text)
	}
	if res.Meta.Selector != ".report-body" || res.Meta.Via != "selector" {
		t.Fatalf("meta = %+v", res.Meta)
	}
}

func TestPickCandidateShortInnerTextUsesTextContent(t *testing.T) {
	data := &collectedPage{Results: []candidatePayload{{
		Selector:    "article",
		InnerText:   "short",
		TextContent: "full text content of the node",
	}}}
	res := pickCandidate(data)
	if res == nil || res.Text != "full text content of the node" {
		t.Fatalf("res = %+v", res)
	}
}

func TestPickCandidateBodyFallback(t *testing.T) {
	data := &collectedPage{Body: &candidatePayload{
		Selector:  "body",
		InnerText: "body level text",
	}}
	res := pickCandidate(data)
	if res == nil || res.Meta.Via != "body" {
		t.Fatalf("res = %+v", res)
	}
}

func TestPickCandidateNothing(t *testing.T) {
	if res := pickCandidate(&collectedPage{}); res != nil {
		t.Fatalf("res = %+v, want nil", res)
	}
}
