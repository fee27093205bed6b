// Package processor runs the per-document enrichment pipeline: fetch,
// skip checks, the model stages, catalog resolution, and a single
// batched write-back. A document either completes every applicable
// stage and is updated once, or it fails without touching the server.
package processor

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/doctrove/enrich-cli/internal/catalog"
	"github.com/doctrove/enrich-cli/internal/llmcache"
	"github.com/doctrove/enrich-cli/internal/model"
	"github.com/doctrove/enrich-cli/internal/resilience"
	"github.com/doctrove/enrich-cli/internal/rules"
	"github.com/doctrove/enrich-cli/pkg/llm"
	"github.com/doctrove/enrich-cli/pkg/paperless"
)

// Marker tag colors: green for processed, red for action required.
const (
	processedTagColor = "#2ecc71"
	actionTagColor    = "#e74c3c"
)

const minContentLength = 10

const defaultMaxTokens = 1024

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Models selects which model serves the stages and the per-call output
// budget. Summary, when set, is a stronger model used for the summary
// stage; every other stage runs on Default.
type Models struct {
	Default   string
	Summary   string
	MaxTokens int64
}

// Processor enriches one document at a time. It is safe for concurrent
// use; the snapshot and resolver are shared across workers.
type Processor struct {
	paperless paperless.Client
	provider  llm.Provider
	rules     *rules.Engine
	resolver  *catalog.Resolver
	snapshot  *catalog.Snapshot
	cache     *llmcache.Cache
	opts      model.ProcessingOptions
	models    Models
}

// New creates a Processor. The snapshot must already be loaded with the
// server's tags and correspondents.
func New(
	client paperless.Client,
	provider llm.Provider,
	ruleEngine *rules.Engine,
	resolver *catalog.Resolver,
	snapshot *catalog.Snapshot,
	cache *llmcache.Cache,
	models Models,
	opts model.ProcessingOptions,
) *Processor {
	if models.MaxTokens <= 0 {
		models.MaxTokens = defaultMaxTokens
	}
	return &Processor{
		paperless: client,
		provider:  provider,
		rules:     ruleEngine,
		resolver:  resolver,
		snapshot:  snapshot,
		cache:     cache,
		opts:      opts,
		models:    models,
	}
}

// stageModel picks the model for a stage. Summaries synthesize rather
// than extract, so they get the stronger model when one is configured.
func (p *Processor) stageModel(stage string) string {
	if stage == "summary" && p.models.Summary != "" {
		return p.models.Summary
	}
	return p.models.Default
}

// Process runs the full pipeline for one document. The returned result
// is always non-nil; a non-nil error means no write-back happened and
// the caller decides whether to retry.
func (p *Processor) Process(ctx context.Context, documentID int) (*model.ProcessingResult, error) {
	start := time.Now()
	log := zap.L().With(zap.Int("document_id", documentID))
	result := &model.ProcessingResult{DocumentID: documentID, Outcome: model.OutcomeFailed}

	fail := func(err error) (*model.ProcessingResult, error) {
		result.Errors = append(result.Errors, err.Error())
		result.Elapsed = time.Since(start)
		return result, err
	}

	doc, err := p.paperless.GetDocument(ctx, documentID)
	if err != nil {
		return fail(eris.Wrap(err, "processor: fetch document"))
	}

	if p.opts.SkipIfProcessed && p.hasProcessedTag(doc) {
		log.Info("document already enriched, skipping")
		result.Success = true
		result.Outcome = model.OutcomeSkipped
		result.Elapsed = time.Since(start)
		return result, nil
	}

	content := strings.TrimSpace(doc.Content)
	if len(content) < minContentLength {
		// The list/detail payload sometimes omits OCR text that the
		// content endpoint still has.
		downloaded, dlErr := p.paperless.DownloadContent(ctx, documentID)
		if dlErr != nil {
			return fail(eris.Wrap(dlErr, "processor: download content"))
		}
		content = strings.TrimSpace(downloaded)
	}
	if len(content) < minContentLength {
		return fail(resilience.NewValidationError(
			"processor: document %d content is empty or too short (%d chars)", documentID, len(content)))
	}

	language := detectLanguage(content)
	log.Debug("content ready",
		zap.Int("content_length", len(content)),
		zap.String("language", language),
	)

	// Stage helper: logs duration and keeps going only while err is nil.
	var stageErr error
	runStage := func(name string, fn func() error) {
		if stageErr != nil {
			return
		}
		stageStart := time.Now()
		if err := fn(); err != nil {
			stageErr = eris.Wrapf(err, "processor: stage %s", name)
			log.Error("stage failed",
				zap.String("stage", name),
				zap.Duration("elapsed", time.Since(stageStart)),
				zap.Error(err),
			)
			return
		}
		log.Debug("stage complete",
			zap.String("stage", name),
			zap.Duration("elapsed", time.Since(stageStart)),
		)
	}

	if p.opts.EnableTitle && p.shouldGenerateTitle(doc) {
		runStage("title", func() error {
			resp, err := p.callModel(ctx, "title", titlePrompt(content, language), titleSchema(), result)
			if err != nil {
				return err
			}
			result.Title = truncateRunes(strings.TrimSpace(resp.String("title")), 128)
			return nil
		})
	}

	if p.opts.EnableMetadata {
		runStage("metadata", func() error {
			resp, err := p.callModel(ctx, "metadata", metadataPrompt(content, language), metadataSchema(), result)
			if err != nil {
				return err
			}
			result.Metadata = resp.Fields
			return nil
		})
	}

	if p.opts.EnableTagging && p.shouldGenerateTags(doc) {
		runStage("tags", func() error {
			tags, err := p.generateTags(ctx, content, language, result)
			if err != nil {
				return err
			}
			result.Tags = tags
			return nil
		})
	}

	if p.opts.EnableCategorize {
		runStage("categorize", func() error {
			resp, err := p.callModel(ctx, "categorize",
				categorizePrompt(content, nil, language), categorizeSchema(defaultDocumentTypes), result)
			if err != nil {
				return err
			}
			result.DocumentType = resp.String("document_type")
			return nil
		})
	}

	if p.opts.EnableSummary {
		runStage("summary", func() error {
			resp, err := p.callModel(ctx, "summary",
				summaryPrompt(content, p.opts.SummaryMaxLength, p.opts.SummaryStyle, language), summarySchema(), result)
			if err != nil {
				return err
			}
			result.Summary = truncateRunes(strings.TrimSpace(resp.String("summary")), p.opts.SummaryMaxLength)
			return nil
		})
	}

	runStage("update", func() error {
		return p.writeBack(ctx, doc, result)
	})

	result.Elapsed = time.Since(start)
	if stageErr != nil {
		result.Errors = append(result.Errors, stageErr.Error())
		return result, stageErr
	}

	result.Success = true
	result.Outcome = model.OutcomeSucceeded
	log.Info("document enriched",
		zap.String("title", result.Title),
		zap.Int("tags", len(result.Tags)),
		zap.String("correspondent", result.Correspondent),
		zap.Duration("elapsed", result.Elapsed),
		zap.Int("tokens", result.TokensUsed),
		zap.Float64("cost_usd", result.Cost),
	)
	return result, nil
}

// hasProcessedTag checks the document's tag IDs against the marker tag.
func (p *Processor) hasProcessedTag(doc *paperless.Document) bool {
	marker, ok := p.snapshot.Lookup(catalog.KindTag, catalog.NormalizeTag(p.opts.ProcessedTag))
	if !ok {
		return false
	}
	for _, id := range doc.Tags {
		if id == marker.ID {
			return true
		}
	}
	return false
}

// shouldGenerateTitle applies the title skip policy: a title that was
// filled in by a human is kept; one that still equals the scanner's
// filename is not worth keeping.
func (p *Processor) shouldGenerateTitle(doc *paperless.Document) bool {
	if !p.opts.SkipIfTitleExists {
		return true
	}
	return doc.Title == "" || doc.Title == doc.OriginalFileName
}

func (p *Processor) shouldGenerateTags(doc *paperless.Document) bool {
	if !p.opts.SkipIfTagsExist {
		return true
	}
	return len(doc.Tags) == 0
}

// generateTags merges rule-based and model tags, deduplicates on slug
// form, and caps the list.
func (p *Processor) generateTags(ctx context.Context, content, language string, result *model.ProcessingResult) ([]string, error) {
	set := make(map[string]struct{})

	if p.opts.UseRuleBasedTagging && p.rules != nil {
		for _, tag := range p.rules.Match(content) {
			set[tag] = struct{}{}
		}
	}

	if p.opts.UseLLMTagging {
		existing := make([]string, 0, p.snapshot.Len(catalog.KindTag))
		for _, e := range p.snapshot.Entries(catalog.KindTag) {
			existing = append(existing, e.Name)
		}
		sort.Strings(existing)

		resp, err := p.callModel(ctx, "tags",
			tagPrompt(content, existing, p.opts.MaxTagsPerDocument, language), tagSchema(), result)
		if err != nil {
			return nil, err
		}
		raw, _ := resp.Fields["tags"].([]any)
		for _, v := range raw {
			obj, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if conf, _ := obj["confidence"].(float64); conf < p.opts.TagConfidenceThreshold {
				continue
			}
			name, _ := obj["name"].(string)
			if slug := catalog.NormalizeTag(name); slug != "" {
				set[slug] = struct{}{}
			}
		}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if len(tags) > p.opts.MaxTagsPerDocument {
		tags = tags[:p.opts.MaxTagsPerDocument]
	}
	return tags, nil
}

// callModel runs one structured extraction through the response cache.
// A cache hit replays the previous fields at zero token cost.
func (p *Processor) callModel(ctx context.Context, stage, prompt string, schema llm.Schema, result *model.ProcessingResult) (*llm.StructuredResponse, error) {
	modelID := p.stageModel(stage)
	key := llmcache.Fingerprint(stage, modelID, prompt)
	if cached, ok := p.cache.Get(key); ok {
		if fields, ok := cached.(map[string]any); ok {
			return &llm.StructuredResponse{Fields: fields, Model: modelID}, nil
		}
	}

	resp, err := p.provider.Complete(ctx, llm.StructuredRequest{
		Stage:     stage,
		Model:     modelID,
		MaxTokens: p.models.MaxTokens,
		Prompt:    prompt,
		Schema:    schema,
	})
	if err != nil {
		return nil, err
	}

	result.TokensUsed += int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	result.Cost += resp.Cost
	p.cache.Set(key, resp.Fields, 0)
	return resp, nil
}

// writeBack applies every change in one PATCH: title, the union of
// existing and new tag IDs plus marker tags, the resolved
// correspondent, and the document date.
func (p *Processor) writeBack(ctx context.Context, doc *paperless.Document, result *model.ProcessingResult) error {
	var update paperless.DocumentUpdate

	if result.Title != "" && result.Title != doc.Title {
		update.Title = &result.Title
	}

	tagIDs := make(map[int]struct{}, len(doc.Tags)+len(result.Tags)+2)
	for _, id := range doc.Tags {
		tagIDs[id] = struct{}{}
	}

	for _, tag := range result.Tags {
		match, err := p.resolver.ResolveTag(ctx, tag)
		if err != nil {
			if errors.Is(err, catalog.ErrUnusableName) {
				continue
			}
			return err
		}
		tagIDs[match.Entry.ID] = struct{}{}
	}

	processed, err := p.resolver.ResolveTagColored(ctx, p.opts.ProcessedTag, processedTagColor)
	if err != nil {
		return err
	}
	tagIDs[processed.Entry.ID] = struct{}{}

	if requiresAction, _ := result.Metadata["requires_action"].(bool); requiresAction {
		action, err := p.resolver.ResolveTagColored(ctx, p.opts.ActionTag, actionTagColor)
		if err != nil {
			return err
		}
		tagIDs[action.Entry.ID] = struct{}{}
	}

	update.Tags = make([]int, 0, len(tagIDs))
	for id := range tagIDs {
		update.Tags = append(update.Tags, id)
	}
	sort.Ints(update.Tags)

	if name, _ := result.Metadata["correspondent"].(string); strings.TrimSpace(name) != "" {
		match, err := p.resolver.ResolveCorrespondent(ctx, name)
		if err != nil && !errors.Is(err, catalog.ErrUnusableName) {
			return err
		}
		if err == nil {
			id := match.Entry.ID
			update.Correspondent = &id
			result.Correspondent = match.Entry.Name
		}
	}

	if date, _ := result.Metadata["document_date"].(string); isoDateRe.MatchString(date) {
		update.CreatedDate = &date
	}

	_, err = p.paperless.UpdateDocument(ctx, doc.ID, update)
	return err
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
