// Package candidate derives likely companion-PDF URLs for a catalog entry:
// links scraped from the rendered page first, then platform-specific guesses
// synthesized from the entry's own URL.
package candidate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var pdfLinkRe = regexp.MustCompile(`(?i)\.pdf($|[?#])`)

// linkAttrs are the attributes that portals hang PDF references off.
var linkAttrs = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"[data-href]", "data-href"},
	{"[data-url]", "data-url"},
	{"[data-download]", "data-download"},
	{"iframe[src]", "src"},
}

// Collect returns a de-duplicated ordered candidate list. baseURL is the
// rendered page's final URL used to absolutize scraped links; rawHTML may be
// empty when no render succeeded, in which case only synthesized guesses are
// produced.
func Collect(baseURL, rawHTML, entryURL string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(candidate string) {
		if candidate == "" {
			return
		}
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	if baseURL == "" {
		baseURL = entryURL
	}
	for _, link := range scrapeLinks(rawHTML) {
		if abs := absolutePDF(baseURL, link); abs != "" {
			add(abs)
		}
	}
	for _, guess := range synthesize(entryURL) {
		add(guess)
	}
	return out
}

// scrapeLinks pulls every candidate-bearing attribute value out of the
// markup, in document order per attribute kind.
func scrapeLinks(rawHTML string) []string {
	if rawHTML == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var links []string
	for _, la := range linkAttrs {
		doc.Find(la.selector).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(la.attr); ok && strings.TrimSpace(v) != "" {
				links = append(links, strings.TrimSpace(v))
			}
		})
	}
	return links
}

// absolutePDF absolutizes href against base and keeps it only when it
// references a .pdf resource.
func absolutePDF(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := baseURL.ResolveReference(ref).String()
	if !pdfLinkRe.MatchString(abs) {
		return ""
	}
	return abs
}

// synthesize derives platform-specific guesses from the entry URL itself:
// a format=pdf variant, a sibling .file path, a /document/ substitution and
// a family of /download endpoints keyed off the final path segment.
func synthesize(entryURL string) []string {
	original, err := url.Parse(entryURL)
	if err != nil || original.Host == "" {
		return nil
	}
	originalParams := original.Query().Encode()
	buildURL := func(base, params string) string {
		parts := make([]string, 0, 2)
		if params != "" {
			parts = append(parts, params)
		}
		if originalParams != "" {
			parts = append(parts, originalParams)
		}
		if len(parts) == 0 {
			return base
		}
		return base + "?" + strings.Join(parts, "&")
	}

	var out []string

	if !original.Query().Has("format") {
		withFormat := *original
		q := withFormat.Query()
		q.Set("format", "pdf")
		withFormat.RawQuery = q.Encode()
		out = append(out, withFormat.String())
	}

	// Direct .file access returns the PDF on some platforms.
	segments := strings.Split(original.Path, "/")
	if last := segments[len(segments)-1]; last != "" {
		fileURL := *original
		stripped := regexp.MustCompile(`(?i)\.html?$`).ReplaceAllString(last, "")
		segments[len(segments)-1] = stripped + ".file"
		fileURL.Path = strings.Join(segments, "/")
		out = append(out, fileURL.String())
	}

	origin := original.Scheme + "://" + original.Host
	if strings.Contains(original.Path, "/publication/") {
		altPath := strings.Replace(original.Path, "/publication/", "/document/", 1)
		out = append(out, buildURL(origin+altPath, ""))
	}
	if original.RawQuery == "" {
		out = append(out, entryURL+".pdf")
	}

	trimmed := strings.Trim(original.Path, "/")
	if trimmed == "" {
		return out
	}
	pathSegments := strings.Split(trimmed, "/")
	id := pathSegments[len(pathSegments)-1]
	basePath := "/" + strings.Join(pathSegments[:len(pathSegments)-1], "/")
	if basePath == "/" {
		basePath = ""
	}
	downloadBase := origin + basePath + "/" + id
	out = append(out,
		buildURL(downloadBase+"/download", "format=pdf"),
		buildURL(downloadBase+"/download", "locale=ja&format=pdf"),
		buildURL(downloadBase+"/download", "component=body&format=pdf"),
		buildURL(downloadBase, "download=1&format=pdf"),
		buildURL(downloadBase, "format=pdf&download=1"),
		buildURL(origin+"/research/japi/publication/"+id+"/download", "format=pdf"),
		buildURL(origin+"/research/japi/publication/"+id+"/download", "locale=ja&format=pdf"),
		buildURL(origin+"/research/japi/publication/"+id+"/download", "component=body&format=pdf"),
	)
	return out
}
