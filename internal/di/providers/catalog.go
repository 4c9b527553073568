package providers

import (
	"github.com/samber/do/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/booksearch"
	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
	"github.com/bookshelfapp/bookshelf-server/internal/config"
	"github.com/bookshelfapp/bookshelf-server/internal/logger"
	"github.com/bookshelfapp/bookshelf-server/internal/ratelimit"
)

// ProvideQuota provides the process-wide upstream request budget.
func ProvideQuota(i do.Injector) (*ratelimit.Quota, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return ratelimit.New(ratelimit.Config{
		RPS:        cfg.Catalog.RPS,
		Burst:      cfg.Catalog.Burst,
		DailyLimit: cfg.Catalog.DailyLimit,
	}), nil
}

// ProvideCatalogClient provides the Google Books client, cached when the
// response cache is enabled.
func ProvideCatalogClient(i do.Injector) (*googlebooks.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*ResponseCacheHandle](i)

	opts := googlebooks.Options{
		BaseURL: cfg.Catalog.BaseURL,
		APIKey:  cfg.Catalog.APIKey,
		Timeout: cfg.Catalog.Timeout,
		Logger:  log.Logger,
	}
	if cacheHandle.ResponseCache != nil {
		opts.Cache = cacheHandle.ResponseCache
	}

	log.Info("Catalog client configured",
		"base_url", cfg.Catalog.BaseURL,
		"timeout", cfg.Catalog.Timeout,
		"api_key_set", cfg.Catalog.APIKey != "",
	)

	return googlebooks.New(opts), nil
}

// ProvidePipeline provides the book search pipeline.
func ProvidePipeline(i do.Injector) (*booksearch.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*googlebooks.Client](i)
	quota := do.MustInvoke[*ratelimit.Quota](i)

	fetcher := booksearch.NewFetcher(client, quota, booksearch.FetchConfig{
		MaxResults:   cfg.Catalog.MaxResults,
		MinUsable:    cfg.Catalog.MinUsable,
		RetryBackoff: cfg.Catalog.RetryBackoff,
	}, log.Logger)

	return booksearch.NewPipeline(fetcher, booksearch.NewScorer(booksearch.DefaultWeights()), booksearch.PipelineConfig{
		DefaultPageSize: cfg.Search.PageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		MinCompleteness: cfg.Search.MinCompleteness,
	}, log.Logger), nil
}
