package booksearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
	"github.com/bookshelfapp/bookshelf-server/internal/metrics"
	"github.com/bookshelfapp/bookshelf-server/internal/ratelimit"
)

// Source is the external catalog. *googlebooks.Client satisfies it.
type Source interface {
	Search(ctx context.Context, params googlebooks.SearchParams) (*googlebooks.SearchResult, error)
}

// CachedSource is a Source that can answer from a local cache. Cache hits
// are served without spending upstream quota.
type CachedSource interface {
	Source
	Cached(ctx context.Context, params googlebooks.SearchParams) (*googlebooks.SearchResult, bool)
}

// Stage is a state of the two-stage fetch.
type Stage int

const (
	StagePrimary Stage = iota
	StageFallback
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePrimary:
		return "primary"
	case StageFallback:
		return "fallback"
	default:
		return "done"
	}
}

// FetchConfig bounds what the fetcher asks for and when it falls back.
type FetchConfig struct {
	MaxResults   int           // result-count parameter per query
	MinUsable    int           // usable records below which the fallback stage runs
	RetryBackoff time.Duration // fixed wait before the single transient retry
	Fields       string        // field restriction; googlebooks.DefaultFields when empty
	// CallTimeout bounds one shared upstream call, retry included. It is
	// independent of any single caller's context.
	CallTimeout time.Duration
}

const defaultCallTimeout = 30 * time.Second

// Record is a raw source record tagged with its position in the merged fetch.
type Record struct {
	googlebooks.Volume
	FetchIndex int
}

// FetchResult is the merged outcome of one or two stages.
type FetchResult struct {
	Records []Record
	Stages  []Stage // stages that returned records, in order
	// FallbackErr is set when the fallback stage failed after a successful
	// primary stage; Records then hold the primary results only.
	FallbackErr error
}

// Degraded reports whether a later stage failed and earlier results were kept.
func (r *FetchResult) Degraded() bool { return r.FallbackErr != nil }

// Fetcher runs the Primary → Fallback → Done state machine against a Source.
type Fetcher struct {
	source Source
	quota  *ratelimit.Quota
	cfg    FetchConfig
	group  singleflight.Group
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher. The quota is shared by every request in the process.
func NewFetcher(source Source, quota *ratelimit.Quota, cfg FetchConfig, logger *slog.Logger) *Fetcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 40
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{
		source: source,
		quota:  quota,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Fetch executes plan. usable decides which records count toward MinUsable.
// An error is returned only when the primary stage fails; a failed fallback
// degrades to the primary results.
func (f *Fetcher) Fetch(ctx context.Context, plan Plan, usable func(googlebooks.Volume) bool) (*FetchResult, error) {
	result := &FetchResult{}
	merged := newMerger()

	state := StagePrimary
	var next SearchQuery
	for state != StageDone {
		switch state {
		case StagePrimary:
			vols, err := f.fetchStage(ctx, StagePrimary, plan.Primary())
			if err != nil {
				return nil, err
			}
			merged.add(vols)
			result.Stages = append(result.Stages, StagePrimary)

			state = StageDone
			if n := merged.count(usable); n < f.cfg.MinUsable {
				if fb, ok := plan.Fallback(); ok {
					f.logger.Debug("sparse primary results, running fallback",
						"usable", n, "min_usable", f.cfg.MinUsable, "query", fb.Expression())
					next, state = fb, StageFallback
				}
			}

		case StageFallback:
			vols, err := f.fetchStage(ctx, StageFallback, next)
			if err != nil {
				f.logger.Warn("fallback fetch failed, keeping primary results",
					"query", next.Expression(), "kept", len(merged.records), "error", err)
				result.FallbackErr = err
			} else {
				merged.add(vols)
				result.Stages = append(result.Stages, StageFallback)
			}
			state = StageDone
		}
	}

	result.Records = merged.records
	return result, nil
}

// fetchStage collapses identical concurrent queries into one upstream call.
// The shared call runs detached from the caller that started it; every
// caller waits on its own ctx, so one canceled request never fails the others.
func (f *Fetcher) fetchStage(ctx context.Context, stage Stage, q SearchQuery) ([]googlebooks.Volume, error) {
	params := googlebooks.SearchParams{
		Query:        q.Expression(),
		LangRestrict: q.Language().Tag(),
		MaxResults:   f.cfg.MaxResults,
		Fields:       f.cfg.Fields,
	}
	key := params.Query + "\x00" + params.LangRestrict + "\x00" + strconv.Itoa(params.MaxResults)

	if vols, ok := f.cached(ctx, params); ok {
		return vols, nil
	}

	ch := f.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.CallTimeout)
		defer cancel()
		return f.fetchWithRetry(callCtx, params)
	})

	select {
	case <-ctx.Done():
		return nil, classify(stage, ctx.Err())
	case res := <-ch:
		if res.Shared {
			f.logger.Debug("joined in-flight catalog request", "query", params.Query)
		}
		if res.Err != nil {
			return nil, classify(stage, res.Err)
		}
		return res.Val.([]googlebooks.Volume), nil
	}
}

// cached consults the source's cache ahead of the quota.
func (f *Fetcher) cached(ctx context.Context, params googlebooks.SearchParams) ([]googlebooks.Volume, bool) {
	cs, ok := f.source.(CachedSource)
	if !ok {
		return nil, false
	}
	res, ok := cs.Cached(ctx, params)
	if !ok {
		return nil, false
	}
	metrics.IncUpstream("cached")
	return res.Volumes, true
}

// fetchWithRetry retries exactly once, and only for transport failures.
func (f *Fetcher) fetchWithRetry(ctx context.Context, params googlebooks.SearchParams) ([]googlebooks.Volume, error) {
	for attempt := 1; ; attempt++ {
		if f.quota != nil {
			if err := f.quota.Acquire(ctx); err != nil {
				if errors.Is(err, ratelimit.ErrExhausted) {
					return nil, err
				}
				// the limiter also fails early when the wait would outlast ctx
				return nil, fmt.Errorf("%w: waiting for quota: %v", googlebooks.ErrTimeout, err)
			}
		}

		res, err := f.source.Search(ctx, params)
		if err == nil {
			if res.Cached {
				metrics.IncUpstream("cached")
			} else {
				metrics.IncUpstream("ok")
			}
			return res.Volumes, nil
		}
		metrics.IncUpstream(resultLabel(err))

		if attempt == 1 && googlebooks.IsTransient(err) {
			f.logger.Warn("transient catalog failure, retrying once",
				"query", params.Query, "backoff", f.cfg.RetryBackoff, "error", err)
			if f.quota != nil {
				f.quota.RecordRetry()
			}
			metrics.IncUpstreamRetry()
			if sleepErr := f.sleep(ctx, f.cfg.RetryBackoff); sleepErr != nil {
				return nil, fmt.Errorf("%w: during retry backoff: %v", googlebooks.ErrTimeout, sleepErr)
			}
			continue
		}

		var apiErr *googlebooks.Error
		if errors.Is(err, googlebooks.ErrRateLimited) && f.quota != nil {
			var retryAfter time.Duration
			if errors.As(err, &apiErr) {
				retryAfter = apiErr.RetryAfter
			}
			f.quota.RecordThrottled(retryAfter)
		}
		return nil, err
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, googlebooks.ErrTimeout):
		return "timeout"
	case errors.Is(err, googlebooks.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, googlebooks.ErrTransport):
		return "transport"
	default:
		return "upstream"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// merger unions stages, collapsing records that repeat an identifier.
// Records without an identifier are kept; the filter drops them later.
type merger struct {
	seen    map[string]struct{}
	records []Record
}

func newMerger() *merger {
	return &merger{seen: make(map[string]struct{})}
}

func (m *merger) add(vols []googlebooks.Volume) {
	for _, v := range vols {
		if v.ID != "" {
			if _, dup := m.seen[v.ID]; dup {
				continue
			}
			m.seen[v.ID] = struct{}{}
		}
		m.records = append(m.records, Record{Volume: v, FetchIndex: len(m.records)})
	}
}

func (m *merger) count(usable func(googlebooks.Volume) bool) int {
	if usable == nil {
		return len(m.records)
	}
	n := 0
	for _, r := range m.records {
		if usable(r.Volume) {
			n++
		}
	}
	return n
}
