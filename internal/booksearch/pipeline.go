// Package booksearch turns free-text book searches into ranked, paginated
// records: normalize, fetch (with fallback), filter, score, sort, paginate,
// present. Only the fetch stage blocks; every other stage is pure.
package booksearch

import (
	"context"
	"log/slog"

	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
)

// PipelineConfig holds presentation defaults.
type PipelineConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	MinCompleteness float64
}

// Request is one search as received from a caller.
type Request struct {
	Text     string
	Author   string
	Language Language
	Page     int
	PageSize int
	Sort     SortMode
}

// Response is one page of results.
type Response struct {
	Page[PresentationRecord]
	Sort     SortMode
	Stages   []Stage
	Degraded bool
}

// Pipeline wires the stages together. It is safe for concurrent use.
type Pipeline struct {
	fetcher *Fetcher
	scorer  Scorer
	cfg     PipelineConfig
	logger  *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(fetcher *Fetcher, scorer Scorer, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 12
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{fetcher: fetcher, scorer: scorer, cfg: cfg, logger: logger}
}

// Search runs one request. Validation failures are returned before anything
// is fetched. A failed primary fetch returns a *TimeoutError, *RateLimitError
// or *UpstreamError matching ErrSearchFailed; a failed fallback fetch is
// reported through Degraded.
func (p *Pipeline) Search(ctx context.Context, req Request) (*Response, error) {
	plan, err := Normalize(Input{Text: req.Text, Author: req.Author, Language: req.Language})
	if err != nil {
		return nil, err
	}
	mode := req.Sort
	if mode == "" {
		mode = SortRelevance
	}
	if _, err := ParseSortMode(string(mode)); err != nil {
		return nil, err
	}

	lang := plan.Primary().Language()
	fetched, err := p.fetcher.Fetch(ctx, plan, func(v googlebooks.Volume) bool {
		return Usable(v, lang)
	})
	if err != nil {
		return nil, err
	}

	candidates := Filter(fetched.Records, lang, p.cfg.MinCompleteness)
	ranked := Rank(candidates, plan.Primary(), p.scorer, mode)
	page := Paginate(ranked, req.Page, p.pageSize(req.PageSize))

	p.logger.Debug("search ranked",
		"query", plan.Primary().Expression(),
		"fetched", len(fetched.Records),
		"candidates", len(candidates),
		"page", page.Page,
		"degraded", fetched.Degraded())

	return &Response{
		Page: Page[PresentationRecord]{
			Items:      PresentAll(page.Items),
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalCount: page.TotalCount,
			TotalPages: page.TotalPages,
		},
		Sort:     mode,
		Stages:   fetched.Stages,
		Degraded: fetched.Degraded(),
	}, nil
}

func (p *Pipeline) pageSize(requested int) int {
	switch {
	case requested <= 0:
		return p.cfg.DefaultPageSize
	case requested > p.cfg.MaxPageSize:
		return p.cfg.MaxPageSize
	default:
		return requested
	}
}
