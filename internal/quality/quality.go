// Package quality decides whether extracted text is genuine report content.
// All judgments are pure functions over auditable pattern/threshold tables so
// the heuristics can be tuned without touching control flow.
package quality

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/fintelab/goharvest/internal/catalog"
)

// Thresholds for the two gates. Rune counts, not bytes, so Japanese and
// Latin text are measured alike.
const (
	// DisclosureMinRunes is the minimum length below which any text is
	// treated as a disclosure stub.
	DisclosureMinRunes = 400
	// disclosureBoilerplateMax rejects texts that match a disclosure
	// pattern but are still short enough to be legal-only pages.
	disclosureBoilerplateMax = 1500
	// likelyReportMinRunes is the minimum normalized length for a text to
	// plausibly be a full report.
	likelyReportMinRunes = 800
	// minPhraseRunes is the shortest key phrase worth matching on.
	minPhraseRunes = 4
)

// disclosurePatterns mark certification/legal-notice pages. Matched against
// trimmed (not normalized) text.
var disclosurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Appendix\s*A-?1`),
	regexp.MustCompile(`ディスクロージャー`),
	regexp.MustCompile(`重要なディスクロージャー`),
	regexp.MustCompile(`(?i)analyst certification`),
}

// offTopicPatterns mark text that is never report content regardless of
// length: privacy policies, seminar/webinar promos and similar boilerplate.
// Matched against normalized text.
var offTopicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`プライバシーポリシー`),
	regexp.MustCompile(`ご登録いただいたお客様`),
	regexp.MustCompile(`本企画の目的でのみ`),
	regexp.MustCompile(`セミナー`),
	regexp.MustCompile(`ウェビナー`),
	regexp.MustCompile(`(?i)nomuraholdings`),
	regexp.MustCompile(`(?i)privacy`),
}

// cutoffPatterns mark the start of the disclosure tail that trails genuine
// report bodies. TrimDisclosureTail cuts at the earliest match.
var cutoffPatterns = []*regexp.Regexp{
	regexp.MustCompile(`アナリスト\s*証明`),
	regexp.MustCompile(`重要なディスクロージャー`),
	regexp.MustCompile(`(?i)Appendix\s*A-?1`),
	regexp.MustCompile(`(?i)Analyst\s+Certification`),
}

// Normalize folds text for substring matching: NFKC (full/half width
// portals), all whitespace stripped, lowercased.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded := norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// DisclosureOnly reports whether text is a disclosure stub: too short to be
// a report, or a short legal/certification-only page.
func DisclosureOnly(text string) bool {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n < DisclosureMinRunes {
		return true
	}
	if n < disclosureBoilerplateMax {
		for _, p := range disclosurePatterns {
			if p.MatchString(trimmed) {
				return true
			}
		}
	}
	return false
}

// KeyPhrases derives short normalized phrases from the entry that a genuine
// rendition of it should contain: leading slices of the title, summary and
// category/source labels. The slice lengths are tunable heuristics, not
// correctness guarantees.
func KeyPhrases(entry catalog.Entry) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if utf8.RuneCountInString(s) < minPhraseRunes {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if title := Normalize(entry.Title); utf8.RuneCountInString(title) >= minPhraseRunes {
		add(leadingRunes(title, 20))
		add(leadingRunes(title, 8))
	}
	if summary := Normalize(entry.Summary); utf8.RuneCountInString(summary) >= 6 {
		add(leadingRunes(summary, 16))
	}
	for _, label := range entry.Labels() {
		if v := Normalize(label); utf8.RuneCountInString(v) >= minPhraseRunes {
			add(leadingRunes(v, 12))
		}
	}
	return out
}

// LikelyReportText reports whether text plausibly is the report the entry
// refers to. When the entry yields no usable key phrases the length and
// boilerplate checks alone decide.
func LikelyReportText(text string, entry catalog.Entry) bool {
	normalized := Normalize(text)
	if utf8.RuneCountInString(normalized) < likelyReportMinRunes {
		return false
	}
	for _, p := range offTopicPatterns {
		if p.MatchString(normalized) {
			return false
		}
	}
	phrases := KeyPhrases(entry)
	if len(phrases) == 0 {
		return true
	}
	for _, phrase := range phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// TrimDisclosureTail cuts text at the first disclosure-cutoff match so the
// persisted rendition ends with report content, not boilerplate.
func TrimDisclosureTail(text string) string {
	if text == "" {
		return text
	}
	cut := len(text)
	for _, p := range cutoffPatterns {
		if loc := p.FindStringIndex(text); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	return strings.TrimRightFunc(text[:cut], unicode.IsSpace)
}

func leadingRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
