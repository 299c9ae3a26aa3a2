package interactive

import (
	"context"
	"sync"
	"time"
)

// captureStrategy is one way to obtain the clicked-for bytes: a download
// event, a PDF network response, or an in-page authenticated fetch. A
// strategy returns (nil, "", nil) when it observed nothing before its
// context ended.
type captureStrategy func(ctx context.Context) (body []byte, contentType string, err error)

type captureOutcome struct {
	body        []byte
	contentType string
	err         error
}

// raceCapture runs every strategy against one shared deadline and returns
// the first that produces non-empty bytes. The remaining strategies are
// cancelled and awaited before returning so none is left dangling. When no
// strategy produces bytes it returns the last non-nil strategy error.
func raceCapture(ctx context.Context, deadline time.Duration, strategies []captureStrategy) ([]byte, string, error) {
	if len(strategies) == 0 {
		return nil, "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	outcomes := make(chan captureOutcome, len(strategies))
	var wg sync.WaitGroup
	for _, strategy := range strategies {
		wg.Add(1)
		go func(s captureStrategy) {
			defer wg.Done()
			body, contentType, err := s(ctx)
			outcomes <- captureOutcome{body: body, contentType: contentType, err: err}
		}(strategy)
	}

	var lastErr error
	var winner *captureOutcome
	for i := 0; i < len(strategies); i++ {
		o := <-outcomes
		if o.err != nil {
			lastErr = o.err
			continue
		}
		if len(o.body) > 0 && winner == nil {
			winner = &o
			cancel()
		}
	}
	wg.Wait()

	if winner != nil {
		return winner.body, winner.contentType, nil
	}
	return nil, "", lastErr
}
