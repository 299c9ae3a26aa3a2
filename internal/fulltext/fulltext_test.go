package fulltext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fintelab/goharvest/internal/catalog"
	"github.com/fintelab/goharvest/internal/detect"
	"github.com/fintelab/goharvest/internal/extract"
	"github.com/fintelab/goharvest/internal/interactive"
)

type fakeDetector struct {
	info detect.Info
}

func (d *fakeDetector) Detect(_ context.Context, _ string) detect.Info { return d.info }

type fakeRenderer struct {
	res *extract.HTMLResult
	err error
}

func (r *fakeRenderer) ExtractHTML(_ context.Context, _ string) (*extract.HTMLResult, error) {
	return r.res, r.err
}

type fakePDF struct {
	results map[string]*extract.PDFResult
	calls   []string
}

func (p *fakePDF) Extract(_ context.Context, url string) (*extract.PDFResult, error) {
	p.calls = append(p.calls, url)
	if res, ok := p.results[url]; ok {
		return res, nil
	}
	return nil, errors.New("download failed: " + url)
}

type fakeInteractive struct {
	available bool
	capture   *interactive.Capture
	err       error
	ran       bool
}

func (i *fakeInteractive) Available(_ context.Context) bool { return i.available }

func (i *fakeInteractive) Run(_ context.Context, _ catalog.Entry, _ string) (*interactive.Capture, error) {
	i.ran = true
	return i.capture, i.err
}

var testEntry = catalog.Entry{
	ID:    "e1",
	URL:   "https://research.example.com/publication/e1",
	Title: "Quarterly semiconductor supply outlook",
}

// reportText builds a body that passes both quality gates for testEntry.
func reportText() string {
	return "Quarterly semiconductor supply outlook. " + strings.Repeat("Foundry utilization keeps recovering. ", 60)
}

func pdfResultFor(text string) *extract.PDFResult {
	return &extract.PDFResult{
		Text:   text,
		Buffer: []byte("%PDF-1.7 stub"),
		Meta:   extract.PDFMeta{ContentType: "application/pdf", Pages: 3, Bytes: 13},
	}
}

func TestFetchFullTextDirectPDF(t *testing.T) {
	o := &Orchestrator{
		Detector: &fakeDetector{info: detect.Info{Type: detect.TypePDF, Via: "head"}},
		PDF: &fakePDF{results: map[string]*extract.PDFResult{
			testEntry.URL: pdfResultFor(reportText()),
		}},
	}
	res, err := o.FetchFullText(context.Background(), testEntry)
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != detect.TypePDF || res.Meta.Via != "direct" {
		t.Fatalf("res = %+v", res)
	}
	if len(res.Buffer) == 0 {
		t.Fatal("pdf buffer missing")
	}
	if res.Detector.Via != "head" {
		t.Fatalf("detector = %+v", res.Detector)
	}
}

func TestFetchFullTextHTMLSuccess(t *testing.T) {
	o := &Orchestrator{
		Detector: &fakeDetector{info: detect.Info{Type: detect.TypeHTML, Via: "head"}},
		HTML: &fakeRenderer{res: &extract.HTMLResult{
			Text: reportText(),
			Meta: extract.HTMLMeta{Selector: ".report-body", Via: "selector"},
		}},
	}
	res, err := o.FetchFullText(context.Background(), testEntry)
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != detect.TypeHTML || res.Meta.Selector != ".report-body" {
		t.Fatalf("res = %+v", res)
	}
	if res.Buffer != nil {
		t.Fatal("html result must not carry a pdf buffer")
	}
}

func TestFetchFullTextDisclosureFallsToCandidates(t *testing.T) {
	pdfURL := testEntry.URL + "?format=pdf"
	pdf := &fakePDF{results: map[string]*extract.PDFResult{
		pdfURL: pdfResultFor(reportText()),
	}}
	o := &Orchestrator{
		Detector: &fakeDetector{info: detect.Info{Type: detect.TypeHTML, Via: "get"}},
		HTML: &fakeRenderer{res: &extract.HTMLResult{
			Text: "certification stub",
			HTML: "<html><body>no links</body></html>",
		}},
		PDF: pdf,
	}
	res, err := o.FetchFullText(context.Background(), testEntry)
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.Via != "pdf-fallback" {
		t.Fatalf("via = %q", res.Meta.Via)
	}
	if res.Detector.Via != "html->pdf" {
		t.Fatalf("detector via = %q", res.Detector.Via)
	}
	if len(pdf.calls) == 0 || pdf.calls[0] != pdfURL {
		t.Fatalf("candidate order wrong: %v", pdf.calls)
	}
}

func TestFetchFullTextScrapedLinkPreferred(t *testing.T) {
	scraped := "https://cdn.example.com/e1.pdf"
	pdf := &fakePDF{results: map[string]*extract.PDFResult{
		scraped: pdfResultFor(reportText()),
	}}
	o := &Orchestrator{
		Detector: &fakeDetector{info: detect.Info{Type: detect.TypeHTML}},
		HTML: &fakeRenderer{res: &extract.HTMLResult{
			Text:     "stub",
			HTML:     `<a href="https://cdn.example.com/e1.pdf">pdf</a>`,
			FinalURL: "https://research.example.com/publication/e1?view=full",
		}},
		PDF: pdf,
	}
	res, err := o.FetchFullText(context.Background(), testEntry)
	if err != nil {
		t.Fatal(err)
	}
	if pdf.calls[0] != scraped {
		t.Fatalf("scraped link not tried first: %v", pdf.calls)
	}
	if res.Meta.Via != "pdf-fallback" {
		t.Fatalf("via = %q", res.Meta.Via)
	}
}

func TestFetchFullTextRejectsDisclosurePDFCandidates(t *testing.T) {
	pdfURL := testEntry.URL + "?format=pdf"
	pdf := &fakePDF{results: map[string]*extract.PDFResult{
		pdfURL: pdfResultFor("short disclosure stub"),
	}}
	o := &Orchestrator{
		Detector: &fakeDetector{info: detect.Info{Type: detect.TypeHTML}},
		HTML:     &fakeRenderer{err: errors.New("render crashed")},
		PDF:      pdf,
	}
	_, err := o.FetchFullText(context.Background(), testEntry)
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if !strings.Contains(err.Error(), "all extraction tiers exhausted") {
		t.Fatalf("err = %v", err)
	}
	if len(pdf.calls) == 0 {
		t.Fatal("candidates never tried")
	}
}

func TestFetchFullTextInteractivePDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "e1.pdf")
	if err := os.WriteFile(path, []byte("%PDF-garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	inter := &fakeInteractive{
		available: true,
		capture:   &interactive.Capture{Path: path, Format: interactive.FormatPDF, ContentType: "application/pdf"},
	}
	o := &Orchestrator{
		Detector:    &fakeDetector{info: detect.Info{Type: detect.TypeHTML}},
		HTML:        &fakeRenderer{err: errors.New("render crashed")},
		PDF:         &fakePDF{},
		Interactive: inter,
	}
	_, err := o.FetchFullText(context.Background(), testEntry)
	if err == nil {
		t.Fatal("unparseable capture must not succeed")
	}
	if !inter.ran {
		t.Fatal("interactive tier not attempted")
	}
	if !strings.Contains(err.Error(), "parse captured pdf") {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchFullTextInteractiveHTML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "e1.html")
	body := "<html><body><article>" + reportText() + "</article></body></html>"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	inter := &fakeInteractive{
		available: true,
		capture:   &interactive.Capture{Path: path, Format: interactive.FormatHTML, ContentType: "text/html"},
	}
	o := &Orchestrator{
		Detector:    &fakeDetector{info: detect.Info{Type: detect.TypeHTML}},
		HTML:        &fakeRenderer{err: errors.New("render crashed")},
		PDF:         &fakePDF{},
		Interactive: inter,
	}
	res, err := o.FetchFullText(context.Background(), testEntry)
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.Via != "interactive-html" || res.Type != detect.TypeHTML {
		t.Fatalf("res meta = %+v", res.Meta)
	}
	if res.Meta.CapturePath != path {
		t.Fatalf("capturePath = %q", res.Meta.CapturePath)
	}
	if !strings.Contains(res.Text, "Foundry utilization") {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestFetchFullTextInteractiveSkippedWhenUnavailable(t *testing.T) {
	inter := &fakeInteractive{available: false}
	o := &Orchestrator{
		Detector:    &fakeDetector{info: detect.Info{Type: detect.TypeHTML}},
		HTML:        &fakeRenderer{err: errors.New("render crashed")},
		PDF:         &fakePDF{},
		Interactive: inter,
	}
	_, err := o.FetchFullText(context.Background(), testEntry)
	if err == nil {
		t.Fatal("expected error")
	}
	if inter.ran {
		t.Fatal("interactive tier must be skipped when endpoint is down")
	}
}

func TestFetchFullTextTrimsDisclosureTail(t *testing.T) {
	text := reportText() + "\nAnalyst Certification\nWe certify..."
	o := &Orchestrator{
		Detector: &fakeDetector{info: detect.Info{Type: detect.TypeHTML}},
		HTML:     &fakeRenderer{res: &extract.HTMLResult{Text: text}},
	}
	res, err := o.FetchFullText(context.Background(), testEntry)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Text, "Analyst Certification") {
		t.Fatalf("disclosure tail not trimmed: %q", res.Text)
	}
}

func TestAttachCompanionPDFIsBestEffort(t *testing.T) {
	o := &Orchestrator{
		Detector: &fakeDetector{info: detect.Info{Type: detect.TypeHTML}},
		HTML: &fakeRenderer{res: &extract.HTMLResult{
			Text: reportText(),
		}},
		PDF:                &fakePDF{},
		AttachCompanionPDF: true,
	}
	res, err := o.FetchFullText(context.Background(), testEntry)
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.PDF != nil || res.Buffer != nil {
		t.Fatal("failed companion fetch must leave the html result untouched")
	}
}

func TestAttachCompanionPDFSuccess(t *testing.T) {
	pdfURL := testEntry.URL + "?format=pdf"
	o := &Orchestrator{
		Detector: &fakeDetector{info: detect.Info{Type: detect.TypeHTML}},
		HTML:     &fakeRenderer{res: &extract.HTMLResult{Text: reportText()}},
		PDF: &fakePDF{results: map[string]*extract.PDFResult{
			pdfURL: pdfResultFor(reportText()),
		}},
		AttachCompanionPDF: true,
	}
	res, err := o.FetchFullText(context.Background(), testEntry)
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.PDF == nil || len(res.Buffer) == 0 {
		t.Fatalf("companion pdf not attached: %+v", res.Meta)
	}
	if res.Type != detect.TypeHTML {
		t.Fatal("companion attach must not change the result type")
	}
}
