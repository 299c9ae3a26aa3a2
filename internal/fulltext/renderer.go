package fulltext

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fintelab/goharvest/internal/extract"
	"github.com/fintelab/goharvest/internal/session"
)

// SessionRenderer runs rendered-HTML extraction against a live browser
// session. Each call opens a fresh page and closes it before returning, so
// one slow or wedged entry never leaks a tab into the next.
type SessionRenderer struct {
	Session   *session.Session
	Extractor *extract.HTMLExtractor
}

func (r *SessionRenderer) ExtractHTML(ctx context.Context, url string) (*extract.HTMLResult, error) {
	page, err := r.Session.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("page close failed")
		}
	}()
	return r.Extractor.Extract(page, url)
}
