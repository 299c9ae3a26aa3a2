package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RevealMarkers lists the class/attribute markers of collapsed or hidden
// content blocks. Portals collapse report bodies behind these and rely on
// their own script to expand them; the pipeline expands them directly so
// extraction never depends on site script executing.
var RevealMarkers = []string{
	".collapsible",
	".expand-button",
	".md-expandable",
	".non-expand-button",
	`[data-collapsed="true"]`,
	`[aria-expanded="false"]`,
}

// revealJS applies the reveal policy inside a live page: each marked node is
// forced visible and marked expanded regardless of the site's own state.
const revealJS = `(markers) => {
	for (const marker of markers) {
		for (const el of document.querySelectorAll(marker)) {
			el.classList.add('expanded');
			if (el.hasAttribute('hidden')) el.removeAttribute('hidden');
			if (el.style) {
				el.style.display = 'block';
				el.style.maxHeight = 'none';
				el.style.visibility = 'visible';
				el.style.opacity = '1';
			}
			el.setAttribute('aria-expanded', 'true');
		}
	}
	for (const el of document.querySelectorAll('[style*="display:none"], [style*="display: none"]')) {
		el.style.display = 'block';
	}
}`

// revealStatic applies the same policy to a statically parsed document so
// both extraction paths agree on what counts as visible.
func revealStatic(doc *goquery.Document) {
	sel := strings.Join(RevealMarkers, ", ")
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		s.AddClass("expanded")
		s.RemoveAttr("hidden")
		s.SetAttr("aria-expanded", "true")
		style, _ := s.Attr("style")
		s.SetAttr("style", mergeRevealStyle(style))
	})
}

func mergeRevealStyle(style string) string {
	kept := make([]string, 0, 4)
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(strings.SplitN(decl, ":", 2)[0]))
		switch prop {
		case "display", "max-height", "visibility", "opacity":
			continue
		}
		kept = append(kept, decl)
	}
	kept = append(kept, "display: block", "max-height: none", "visibility: visible", "opacity: 1")
	return strings.Join(kept, "; ")
}
