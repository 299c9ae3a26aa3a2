package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fintelab/goharvest/internal/catalog"
	"github.com/fintelab/goharvest/internal/detect"
	"github.com/fintelab/goharvest/internal/extract"
	"github.com/fintelab/goharvest/internal/fulltext"
	"github.com/fintelab/goharvest/internal/interactive"
	"github.com/fintelab/goharvest/internal/session"
)

// ErrNoDocuments is returned when the run produced zero usable full texts.
// Per the exit code policy this condition maps to a non-zero process exit.
var ErrNoDocuments = errors.New("no documents extracted")

type App struct {
	cfg  Config
	sess *session.Session
	orch *fulltext.Orchestrator
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.Date == "" {
		cfg.Date = time.Now().Format("2006-01-02")
	}

	sess, err := session.New(session.Options{
		StorageStatePath: cfg.StorageStatePath,
		Headless:         cfg.Headless,
		SlowMo:           cfg.SlowMo,
		ProxyServer:      cfg.ProxyServer,
		ProxyUsername:    cfg.ProxyUsername,
		ProxyPassword:    cfg.ProxyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}

	orch := &fulltext.Orchestrator{
		Detector: &detect.Detector{HTTPClient: sess.HTTP},
		HTML: &fulltext.SessionRenderer{
			Session:   sess,
			Extractor: &extract.HTMLExtractor{MinTextLength: cfg.MinTextLength},
		},
		PDF:                &extract.PDFExtractor{HTTP: sess.HTTP, Session: sess},
		Date:               cfg.Date,
		RateWait:           cfg.RateWait,
		AttachCompanionPDF: cfg.AttachPDF,
	}

	if cfg.InteractiveEnable {
		sites, err := interactive.LoadSiteConfigs(cfg.SiteConfigPath)
		if err != nil {
			sess.Close()
			return nil, fmt.Errorf("load site configs: %w", err)
		}
		orch.Interactive = &interactive.Fallback{
			Host:    cfg.InteractiveHost,
			Port:    cfg.InteractivePort,
			Sites:   sites,
			SaveDir: cfg.InteractiveSaveDir,
			LogDir:  cfg.InteractiveLogDir,
		}
	}

	return &App{cfg: cfg, sess: sess, orch: orch}, nil
}

func (a *App) Close() {
	a.sess.Close()
}

// Run walks the catalog sequentially, retrying each entry up to MaxAttempts
// times, and writes text, companion PDFs and the run manifest under
// <output>/<date>/. One failed entry never aborts the run.
func (a *App) Run(ctx context.Context) error {
	entries, err := catalog.Load(a.cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info().Int("entries", len(entries)).Str("date", a.cfg.Date).Msg("catalog loaded")

	outDir := filepath.Join(a.cfg.OutputDir, a.cfg.Date)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	records := make([]manifestEntry, 0, len(entries))
	succeeded := 0
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info().Int("n", i+1).Str("id", entry.ID).Str("title", entry.Title).Msg("extracting")

		res, err := a.extractWithRetry(ctx, entry)
		if err != nil {
			log.Warn().Err(err).Str("id", entry.ID).Msg("entry failed; continuing")
			records = append(records, failedManifestEntry(entry, err))
			continue
		}
		rec, err := a.persist(outDir, entry, res)
		if err != nil {
			log.Warn().Err(err).Str("id", entry.ID).Msg("persist failed; continuing")
			records = append(records, failedManifestEntry(entry, err))
			continue
		}
		records = append(records, rec)
		succeeded++
	}

	if err := writeManifest(outDir, runMeta{
		Date:        a.cfg.Date,
		Total:       len(entries),
		Succeeded:   succeeded,
		Failed:      len(entries) - succeeded,
		GeneratedAt: time.Now().UTC(),
	}, records); err != nil {
		log.Warn().Err(err).Msg("manifest write failed")
	}

	log.Info().Int("succeeded", succeeded).Int("failed", len(entries)-succeeded).Str("out", outDir).Msg("run complete")
	if succeeded == 0 && len(entries) > 0 {
		return ErrNoDocuments
	}
	return nil
}

func (a *App) extractWithRetry(ctx context.Context, entry catalog.Entry) (*fulltext.Result, error) {
	attempts := a.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := a.orch.FetchFullText(ctx, entry)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		if attempt < attempts {
			log.Debug().Err(err).Str("id", entry.ID).Int("attempt", attempt).Msg("retrying entry")
		}
	}
	return nil, lastErr
}

// persist writes <id>.txt and, when the source bytes were a PDF, <id>.pdf
// next to it.
func (a *App) persist(outDir string, entry catalog.Entry, res *fulltext.Result) (manifestEntry, error) {
	textPath := filepath.Join(outDir, entry.ID+".txt")
	if err := os.WriteFile(textPath, []byte(res.Text), 0o644); err != nil {
		return manifestEntry{}, fmt.Errorf("write text: %w", err)
	}
	if len(res.Buffer) > 0 {
		pdfPath := filepath.Join(outDir, entry.ID+".pdf")
		if err := os.WriteFile(pdfPath, res.Buffer, 0o644); err != nil {
			return manifestEntry{}, fmt.Errorf("write pdf: %w", err)
		}
	}
	return buildManifestEntry(entry, res), nil
}
