package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bookshelfapp/bookshelf-server/internal/booksearch"
	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/metrics"
	"github.com/bookshelfapp/bookshelf-server/internal/validation"
)

// User-facing search messages.
const (
	MessageSearchFailed = "No results found, try again."
	MessageNoResults    = "No books matched your search."
	MessageDegraded     = "Some results may be missing, try again later."
)

// Searcher runs one catalog search. *booksearch.Pipeline satisfies it.
type Searcher interface {
	Search(ctx context.Context, req booksearch.Request) (*booksearch.Response, error)
}

// SearchRequest is a catalog search as received from a client.
type SearchRequest struct {
	Query    string `json:"q" validate:"max=256"`
	Author   string `json:"author" validate:"max=256"`
	Language string `json:"language" validate:"max=32"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size" validate:"gte=0"`
	Sort     string `json:"sort" validate:"omitempty,oneof=relevance year author"`
}

// SearchResult is what a client renders. It is always returned, even when
// the search failed; Failed and Message explain the empty page.
type SearchResult struct {
	Items      []booksearch.PresentationRecord `json:"items"`
	Page       int                             `json:"page"`
	PageSize   int                             `json:"page_size"`
	TotalPages int                             `json:"total_pages"`
	TotalCount int                             `json:"total_count"`
	Sort       string                          `json:"sort"`
	Failed     bool                            `json:"failed"`
	Degraded   bool                            `json:"degraded"`
	Message    string                          `json:"message,omitempty"`
	TraceID    string                          `json:"trace_id"`
}

// SearchService runs catalog searches and turns every failure into a
// renderable result.
type SearchService struct {
	searcher  Searcher
	validator *validation.Validator
	logger    *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(searcher Searcher, validator *validation.Validator, logger *slog.Logger) *SearchService {
	return &SearchService{
		searcher:  searcher,
		validator: validator,
		logger:    logger,
	}
}

// Search never fails: validation errors come back as an empty page with an
// explanation, fetch failures as Failed with MessageSearchFailed.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) *SearchResult {
	start := time.Now()
	traceID := uuid.NewString()
	log := s.logger.With("trace_id", traceID)

	result := &SearchResult{
		Items:   []booksearch.PresentationRecord{},
		Page:    max(req.Page, 1),
		Sort:    string(booksearch.SortRelevance),
		TraceID: traceID,
	}

	outcome := s.run(ctx, req, result, log)
	metrics.IncSearch(outcome)
	metrics.ObserveSearchDuration(time.Since(start))

	return result
}

func (s *SearchService) run(ctx context.Context, req SearchRequest, result *SearchResult, log *slog.Logger) string {
	if err := s.validator.Validate(req); err != nil {
		result.Message = validationMessage(err)
		return metrics.OutcomeInvalid
	}
	lang, err := booksearch.ParseLanguage(req.Language)
	if err != nil {
		result.Message = validationMessage(err)
		return metrics.OutcomeInvalid
	}

	resp, err := s.searcher.Search(ctx, booksearch.Request{
		Text:     req.Query,
		Author:   req.Author,
		Language: lang,
		Page:     req.Page,
		PageSize: req.PageSize,
		Sort:     booksearch.SortMode(req.Sort),
	})
	if err != nil {
		if domainerrors.CodeOf(err) == domainerrors.CodeValidation {
			result.Message = validationMessage(err)
			return metrics.OutcomeInvalid
		}
		log.Warn("catalog search failed", "query", req.Query, "author", req.Author, "error", err)
		result.Failed = true
		result.Message = MessageSearchFailed
		return metrics.OutcomeFailed
	}

	result.Items = resp.Items
	result.Page = resp.Page.Page
	result.PageSize = resp.PageSize
	result.TotalPages = resp.TotalPages
	result.TotalCount = resp.TotalCount
	result.Sort = string(resp.Sort)
	result.Degraded = resp.Degraded

	switch {
	case resp.Degraded:
		log.Warn("search degraded to primary results", "query", req.Query, "total", resp.TotalCount)
		result.Message = MessageDegraded
		return metrics.OutcomeDegraded
	case resp.TotalCount == 0:
		result.Message = MessageNoResults
		return metrics.OutcomeEmpty
	default:
		log.Debug("search completed", "query", req.Query, "total", resp.TotalCount, "stages", len(resp.Stages))
		return metrics.OutcomeOK
	}
}

func validationMessage(err error) string {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
