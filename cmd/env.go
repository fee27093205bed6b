package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/doctrove/enrich-cli/internal/catalog"
	"github.com/doctrove/enrich-cli/internal/llmcache"
	"github.com/doctrove/enrich-cli/internal/model"
	"github.com/doctrove/enrich-cli/internal/orchestrator"
	"github.com/doctrove/enrich-cli/internal/processor"
	"github.com/doctrove/enrich-cli/internal/resilience"
	"github.com/doctrove/enrich-cli/internal/rules"
	"github.com/doctrove/enrich-cli/internal/store"
	"github.com/doctrove/enrich-cli/pkg/llm"
	"github.com/doctrove/enrich-cli/pkg/paperless"
)

// enrichEnv bundles everything a processing command needs.
type enrichEnv struct {
	client paperless.Client
	proc   *processor.Processor
	orch   *orchestrator.Orchestrator
	opts   model.ProcessingOptions
}

// initStore opens and migrates the run-history database.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildEnrichment wires the clients, the catalog snapshot, and the
// pipeline. The snapshot is loaded once here and shared by all workers
// for the life of the command.
func buildEnrichment(ctx context.Context) (*enrichEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := paperless.NewClient(cfg.Paperless.BaseURL, cfg.Paperless.Token,
		paperless.WithRateLimit(cfg.Paperless.RateLimitRPS),
		paperless.WithPageSize(cfg.Paperless.PageSize),
	)
	provider := llm.NewAnthropic(cfg.Anthropic.Key)

	ruleSet := rules.DefaultRules()
	if cfg.Rules.File != "" {
		var err error
		ruleSet, err = rules.LoadFile(cfg.Rules.File)
		if err != nil {
			return nil, eris.Wrap(err, "load tag rules")
		}
	}
	engine, err := rules.NewEngine(ruleSet)
	if err != nil {
		return nil, eris.Wrap(err, "compile tag rules")
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("paperless", "catalog bootstrap")

	snap := catalog.NewSnapshot()
	tags, err := resilience.DoVal(ctx, retryCfg, client.ListTags)
	if err != nil {
		return nil, eris.Wrap(err, "load tag catalog")
	}
	snap.LoadTags(tags)
	corrs, err := resilience.DoVal(ctx, retryCfg, client.ListCorrespondents)
	if err != nil {
		return nil, eris.Wrap(err, "load correspondent catalog")
	}
	snap.LoadCorrespondents(corrs)
	zap.L().Info("catalog loaded",
		zap.Int("tags", snap.Len(catalog.KindTag)),
		zap.Int("correspondents", snap.Len(catalog.KindCorrespondent)),
	)

	opts := cfg.Processing.Options()
	resolver := catalog.NewResolver(client, snap, "", catalog.WithAliases(cfg.Catalog.Aliases))
	cache := llmcache.New(opts.CacheTTL)
	models := processor.Models{
		Default:   cfg.Anthropic.Model,
		Summary:   cfg.Anthropic.SonnetModel,
		MaxTokens: int64(cfg.Anthropic.MaxTokens),
	}
	proc := processor.New(client, provider, engine, resolver, snap, cache, models, opts)
	orch := orchestrator.New(proc, opts, resilience.DefaultRetryConfig())

	return &enrichEnv{client: client, proc: proc, orch: orch, opts: opts}, nil
}
