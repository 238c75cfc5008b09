package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/mida-project/mission-cli/internal/model"
	"github.com/mida-project/mission-cli/internal/resilience"
)

// FeedSource pulls raw records from an HTTP JSON endpoint. Requests are
// rate limited per feed so scraping stays polite toward institutional
// sites, and transient upstream failures are retried with backoff.
type FeedSource struct {
	sourceID string
	url      string
	client   *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewFeed creates a FeedSource. A zero timeout defaults to 30 seconds and
// a zero rate to 1 request per second.
func NewFeed(sourceID, url string, timeout time.Duration, ratePerSec float64) *FeedSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger(sourceID, "fetch")
	return &FeedSource{
		sourceID: sourceID,
		url:      url,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), 1),
		retry:    retry,
	}
}

// WithRetry overrides the feed's retry policy.
func (s *FeedSource) WithRetry(cfg resilience.RetryConfig) *FeedSource {
	s.retry = cfg
	return s
}

func (s *FeedSource) Name() string { return "feed:" + s.sourceID }

func (s *FeedSource) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "source: rate limit wait")
	}

	var records []model.RawRecord
	err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		records, err = s.fetchOnce(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range records {
		if records[i].SourceID == "" {
			records[i].SourceID = s.sourceID
		}
		if records[i].FetchedAt.IsZero() {
			records[i].FetchedAt = now
		}
	}
	return records, nil
}

func (s *FeedSource) fetchOnce(ctx context.Context) ([]model.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: build feed request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(
			eris.Wrapf(err, "source: fetch feed %s", s.sourceID), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ferr := eris.Errorf("source: feed %s returned %d", s.sourceID, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(ferr, resp.StatusCode)
		}
		return nil, ferr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, resilience.NewTransientError(
			eris.Wrapf(err, "source: read feed %s", s.sourceID), 0)
	}

	var records []model.RawRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, eris.Wrapf(err, "source: parse feed %s", s.sourceID)
	}
	return records, nil
}
