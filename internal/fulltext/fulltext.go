// Package fulltext sequences the extraction tiers for one catalog entry:
// type detection, rendered-HTML extraction, PDF candidates, and finally the
// interactive browser fallback, with the quality gate between every tier.
package fulltext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/fintelab/goharvest/internal/candidate"
	"github.com/fintelab/goharvest/internal/catalog"
	"github.com/fintelab/goharvest/internal/detect"
	"github.com/fintelab/goharvest/internal/extract"
	"github.com/fintelab/goharvest/internal/interactive"
	"github.com/fintelab/goharvest/internal/quality"
)

// ErrDisclosureOnly reports that every extracted rendition was a disclosure
// stub. It surfaces as the terminal cause when no fallback tier recovered.
var ErrDisclosureOnly = errors.New("extracted text is disclosure boilerplate only")

// candidateMinRunes is the floor below which a PDF candidate is not even
// offered to the quality gate.
const candidateMinRunes = 400

// Result is the pipeline's sole output contract. Text is non-empty and has
// passed the quality gate; Buffer is set iff the source bytes were a PDF.
type Result struct {
	Text     string      `json:"text"`
	Buffer   []byte      `json:"-"`
	Type     string      `json:"type"`
	Meta     Meta        `json:"meta"`
	Detector detect.Info `json:"detector"`
}

// Meta aggregates per-strategy provenance.
type Meta struct {
	Selector    string           `json:"selector,omitempty"`
	Via         string           `json:"via"`
	ContentType string           `json:"contentType,omitempty"`
	DownloadURL string           `json:"downloadUrl,omitempty"`
	Pages       int              `json:"pages,omitempty"`
	Bytes       int              `json:"bytes,omitempty"`
	Page        extract.PageMeta `json:"page,omitempty"`
	// PDF carries the companion attachment's provenance when an HTML
	// result also secured the original document bytes.
	PDF *extract.PDFMeta `json:"pdf,omitempty"`
	// CapturePath points at the interactive tier's persisted artifact.
	CapturePath string `json:"capturePath,omitempty"`
}

// TypeDetector classifies an entry URL. Detection gathers evidence and
// never fails.
type TypeDetector interface {
	Detect(ctx context.Context, url string) detect.Info
}

// Renderer produces a rendered-HTML extraction for a URL, owning the page
// it opens for the attempt.
type Renderer interface {
	ExtractHTML(ctx context.Context, url string) (*extract.HTMLResult, error)
}

// PDFFetcher downloads and parses one PDF URL.
type PDFFetcher interface {
	Extract(ctx context.Context, url string) (*extract.PDFResult, error)
}

// InteractiveRunner is the remote-debugging tier.
type InteractiveRunner interface {
	Available(ctx context.Context) bool
	Run(ctx context.Context, entry catalog.Entry, date string) (*interactive.Capture, error)
}

// Orchestrator runs the tiers in order for each entry.
type Orchestrator struct {
	Detector TypeDetector
	HTML     Renderer
	PDF      PDFFetcher
	// Interactive enables the remote-debugging tier when non-nil.
	Interactive InteractiveRunner
	// Date labels audit logs and capture files for this run.
	Date string
	// RateWait is the pacing delay applied after every entry, success
	// or failure.
	RateWait time.Duration
	// AttachCompanionPDF also fetches the original document bytes after
	// a successful HTML extraction, best effort.
	AttachCompanionPDF bool
}

// FetchFullText produces the best available plain-text rendition for the
// entry or a terminal error naming the last concrete failure cause. Accepted
// texts have the trailing disclosure block removed.
func (o *Orchestrator) FetchFullText(ctx context.Context, entry catalog.Entry) (*Result, error) {
	defer o.pace(ctx)

	res, err := o.fetch(ctx, entry)
	if err != nil {
		return nil, err
	}
	res.Text = quality.TrimDisclosureTail(res.Text)
	return res, nil
}

func (o *Orchestrator) fetch(ctx context.Context, entry catalog.Entry) (*Result, error) {
	info := o.Detector.Detect(ctx, entry.URL)
	if info.Type == detect.TypePDF {
		pdfRes, err := o.PDF.Extract(ctx, entry.URL)
		if err != nil {
			return nil, fmt.Errorf("direct pdf extraction: %w", err)
		}
		return pdfResult(pdfRes, "direct", info), nil
	}

	htmlRes, htmlErr := o.HTML.ExtractHTML(ctx, entry.URL)
	if htmlErr == nil && !quality.DisclosureOnly(htmlRes.Text) {
		result := &Result{
			Text: htmlRes.Text,
			Type: detect.TypeHTML,
			Meta: Meta{
				Selector:    htmlRes.Meta.Selector,
				Via:         htmlRes.Meta.Via,
				ContentType: htmlRes.Meta.ContentType,
				Page:        htmlRes.Meta.Page,
			},
			Detector: info,
		}
		if o.AttachCompanionPDF {
			o.attachCompanion(ctx, entry, htmlRes, result)
		}
		return result, nil
	}

	lastCause := htmlErr
	if lastCause == nil {
		lastCause = ErrDisclosureOnly
	} else {
		log.Debug().Err(htmlErr).Str("entry", entry.ID).Msg("html extraction failed, trying pdf candidates")
	}

	if res := o.tryCandidates(ctx, entry, htmlRes, info, &lastCause); res != nil {
		return res, nil
	}
	if res := o.tryInteractive(ctx, entry, info, &lastCause); res != nil {
		return res, nil
	}
	return nil, fmt.Errorf("all extraction tiers exhausted for %s: %w", entry.URL, lastCause)
}

// attachCompanion is best-effort: a failure to secure the original PDF
// never invalidates a gated HTML result.
func (o *Orchestrator) attachCompanion(ctx context.Context, entry catalog.Entry, htmlRes *extract.HTMLResult, result *Result) {
	for _, cand := range o.candidates(entry, htmlRes) {
		pdfRes, err := o.PDF.Extract(ctx, cand)
		if err != nil {
			log.Debug().Err(err).Str("candidate", cand).Msg("companion pdf candidate failed")
			continue
		}
		if !acceptable(pdfRes.Text, entry) {
			continue
		}
		meta := pdfRes.Meta
		result.Buffer = pdfRes.Buffer
		result.Meta.PDF = &meta
		return
	}
}

// tryCandidates walks the generated PDF candidates and returns the first
// that passes both quality gates.
func (o *Orchestrator) tryCandidates(ctx context.Context, entry catalog.Entry, htmlRes *extract.HTMLResult, info detect.Info, lastCause *error) *Result {
	for _, cand := range o.candidates(entry, htmlRes) {
		pdfRes, err := o.PDF.Extract(ctx, cand)
		if err != nil {
			*lastCause = err
			continue
		}
		if !acceptable(pdfRes.Text, entry) {
			log.Debug().Str("candidate", cand).Msg("pdf candidate rejected by quality gate")
			continue
		}
		info.Via = "html->pdf"
		return pdfResult(pdfRes, "pdf-fallback", info)
	}
	return nil
}

// tryInteractive drives the remote browser and re-gates whatever bytes it
// captured through the same parsers as the programmatic tiers.
func (o *Orchestrator) tryInteractive(ctx context.Context, entry catalog.Entry, info detect.Info, lastCause *error) *Result {
	if o.Interactive == nil {
		return nil
	}
	if !o.Interactive.Available(ctx) {
		log.Debug().Str("entry", entry.ID).Msg("interactive endpoint unavailable, tier skipped")
		return nil
	}
	capture, err := o.Interactive.Run(ctx, entry, o.Date)
	if err != nil {
		*lastCause = err
		return nil
	}
	body, err := os.ReadFile(capture.Path)
	if err != nil {
		*lastCause = fmt.Errorf("read capture: %w", err)
		return nil
	}

	switch capture.Format {
	case interactive.FormatPDF:
		text, pages, err := extract.ParsePDF(body)
		if err != nil {
			*lastCause = fmt.Errorf("parse captured pdf: %w", err)
			return nil
		}
		if !acceptable(text, entry) {
			*lastCause = ErrDisclosureOnly
			return nil
		}
		info.Via = "html->pdf"
		return &Result{
			Text:   text,
			Buffer: body,
			Type:   detect.TypePDF,
			Meta: Meta{
				Via:         "interactive",
				ContentType: capture.ContentType,
				DownloadURL: entry.URL,
				Pages:       pages,
				Bytes:       len(body),
				CapturePath: capture.Path,
			},
			Detector: info,
		}
	case interactive.FormatHTML:
		static, err := extract.FromHTML(string(body), extract.StaticOptions{MinLength: 200})
		if err != nil {
			*lastCause = fmt.Errorf("parse captured html: %w", err)
			return nil
		}
		if !acceptable(static.Text, entry) {
			*lastCause = ErrDisclosureOnly
			return nil
		}
		info.Via = "html->pdf"
		return &Result{
			Text: static.Text,
			Type: detect.TypeHTML,
			Meta: Meta{
				Via:         "interactive-html",
				ContentType: capture.ContentType,
				DownloadURL: entry.URL,
				Bytes:       len(body),
				Page:        static.Meta,
				CapturePath: capture.Path,
			},
			Detector: info,
		}
	default:
		*lastCause = fmt.Errorf("interactive capture has unusable format %q", capture.Format)
		return nil
	}
}

func (o *Orchestrator) candidates(entry catalog.Entry, htmlRes *extract.HTMLResult) []string {
	baseURL, rawHTML := entry.URL, ""
	if htmlRes != nil {
		rawHTML = htmlRes.HTML
		if htmlRes.FinalURL != "" {
			baseURL = htmlRes.FinalURL
		}
	}
	return candidate.Collect(baseURL, rawHTML, entry.URL)
}

// acceptable applies both quality gates plus the minimum-length floor used
// for every PDF-tier candidate.
func acceptable(text string, entry catalog.Entry) bool {
	if utf8.RuneCountInString(text) <= candidateMinRunes {
		return false
	}
	return !quality.DisclosureOnly(text) && quality.LikelyReportText(text, entry)
}

// pace applies the fixed inter-entry delay, bounded by the run context.
func (o *Orchestrator) pace(ctx context.Context) {
	if o.RateWait <= 0 {
		return
	}
	select {
	case <-time.After(o.RateWait):
	case <-ctx.Done():
	}
}

func pdfResult(r *extract.PDFResult, via string, info detect.Info) *Result {
	return &Result{
		Text:   r.Text,
		Buffer: r.Buffer,
		Type:   detect.TypePDF,
		Meta: Meta{
			Via:         via,
			ContentType: r.Meta.ContentType,
			DownloadURL: r.Meta.DownloadURL,
			Pages:       r.Meta.Pages,
			Bytes:       r.Meta.Bytes,
		},
		Detector: info,
	}
}
