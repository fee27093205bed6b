package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/doctrove/enrich-cli/internal/resilience"
	"github.com/doctrove/enrich-cli/pkg/paperless"
)

// Matching thresholds. Tags are short slugs so they need a tighter match
// than multi-word correspondent names. Candidates scoring within the
// margin of the leader are treated as equally plausible and ranked by
// recorded usage, since picking between them by a hair of edit distance
// is a coin flip.
const (
	tagThreshold  = 0.84
	corrThreshold = 0.75
	scoreMargin   = 0.1

	// substring containment only counts for names long enough to not
	// match by accident
	minSubstringLen = 4
)

// ErrUnusableName is returned when a proposed name normalizes to
// nothing, e.g. punctuation-only model output.
var ErrUnusableName = eris.New("catalog: name is empty after normalization")

// API is the subset of the Paperless client the resolver creates
// entities through.
type API interface {
	CreateTag(ctx context.Context, name, color string) (*paperless.Tag, error)
	CreateCorrespondent(ctx context.Context, name string) (*paperless.Correspondent, error)
}

// Match is the outcome of resolving one proposed name.
type Match struct {
	Entry   Entry
	Method  string // "exact", "alias", "substring", "similar", "created"
	Score   float64
	Created bool
}

// Resolver maps proposed names onto existing catalog entities, creating
// new ones only when nothing matches. Creation is deduplicated per
// normalized name across concurrent workers.
type Resolver struct {
	api      API
	snap     *Snapshot
	group    singleflight.Group
	tagColor string
	retry    resilience.RetryConfig
	aliases  map[Kind]map[string]string // normalized synonym -> normalized canonical
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithAliases installs a synonym-to-canonical-name mapping consulted
// after exact matching fails. Keys and values are normalized per
// namespace, so "Telekom" -> "Deutsche Telekom" works for
// correspondents and "bill" -> "invoice" works for tags.
func WithAliases(aliases map[string]string) ResolverOption {
	return func(r *Resolver) {
		for syn, canonical := range aliases {
			if s, c := NormalizeTag(syn), NormalizeTag(canonical); s != "" && c != "" {
				r.aliases[KindTag][s] = c
			}
			if s, c := NormalizeName(syn), NormalizeName(canonical); s != "" && c != "" {
				r.aliases[KindCorrespondent][s] = c
			}
		}
	}
}

// WithRetry overrides the retry policy applied to creation calls.
func WithRetry(cfg resilience.RetryConfig) ResolverOption {
	return func(r *Resolver) { r.retry = cfg }
}

// NewResolver creates a resolver over a loaded snapshot. tagColor is
// applied to tags the resolver creates; pass "" for the server default.
func NewResolver(api API, snap *Snapshot, tagColor string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		api:      api,
		snap:     snap,
		tagColor: tagColor,
		retry:    resilience.DefaultRetryConfig(),
		aliases: map[Kind]map[string]string{
			KindTag:           {},
			KindCorrespondent: {},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// aliasLookup follows the alias table to a canonical snapshot entry.
func (r *Resolver) aliasLookup(kind Kind, norm string) (Entry, bool) {
	canonical, ok := r.aliases[kind][norm]
	if !ok {
		return Entry{}, false
	}
	return r.snap.Lookup(kind, canonical)
}

// ResolveTag resolves one proposed tag name to a tag ID.
func (r *Resolver) ResolveTag(ctx context.Context, name string) (Match, error) {
	return r.ResolveTagColored(ctx, name, r.tagColor)
}

// ResolveTagColored is ResolveTag with an explicit color for the case
// where the tag has to be created. Marker tags use fixed colors.
func (r *Resolver) ResolveTagColored(ctx context.Context, name, color string) (Match, error) {
	slug := NormalizeTag(name)
	if slug == "" {
		return Match{}, ErrUnusableName
	}

	if e, ok := r.snap.Lookup(KindTag, slug); ok {
		return Match{Entry: e, Method: "exact", Score: 1}, nil
	}

	if e, ok := r.aliasLookup(KindTag, slug); ok {
		return Match{Entry: e, Method: "alias", Score: 1}, nil
	}

	if best, score, ok := r.bestSimilar(KindTag, slug, tagThreshold); ok {
		return Match{Entry: best, Method: "similar", Score: score}, nil
	}

	return r.createOnce(ctx, KindTag, slug, func(ctx context.Context) (Entry, error) {
		tag, err := r.api.CreateTag(ctx, slug, color)
		if err != nil {
			return Entry{}, err
		}
		return Entry{ID: tag.ID, Name: tag.Name, Normalized: slug}, nil
	})
}

// ResolveCorrespondent resolves a proposed correspondent name. The
// cascade is exact, then alias, then substring containment, then
// similarity; only when every stage fails is a correspondent created.
func (r *Resolver) ResolveCorrespondent(ctx context.Context, name string) (Match, error) {
	norm := NormalizeName(name)
	if norm == "" {
		return Match{}, ErrUnusableName
	}

	if e, ok := r.snap.Lookup(KindCorrespondent, norm); ok {
		return Match{Entry: e, Method: "exact", Score: 1}, nil
	}

	if e, ok := r.aliasLookup(KindCorrespondent, norm); ok {
		return Match{Entry: e, Method: "alias", Score: 1}, nil
	}

	if len(norm) >= minSubstringLen {
		if e, ok := r.bestSubstring(norm); ok {
			return Match{Entry: e, Method: "substring", Score: 1}, nil
		}
	}

	if best, score, ok := r.bestSimilar(KindCorrespondent, norm, corrThreshold); ok {
		return Match{Entry: best, Method: "similar", Score: score}, nil
	}

	display := strings.TrimSpace(name)
	return r.createOnce(ctx, KindCorrespondent, norm, func(ctx context.Context) (Entry, error) {
		corr, err := r.api.CreateCorrespondent(ctx, display)
		if err != nil {
			return Entry{}, err
		}
		return Entry{ID: corr.ID, Name: corr.Name, Normalized: norm}, nil
	})
}

// bestSubstring finds an existing correspondent whose normalized name
// contains the query or is contained by it. Among several candidates
// the highest-usage one wins.
func (r *Resolver) bestSubstring(norm string) (Entry, bool) {
	var candidates []Entry
	for _, e := range r.snap.Entries(KindCorrespondent) {
		if len(e.Normalized) < minSubstringLen {
			continue
		}
		if strings.Contains(e.Normalized, norm) || strings.Contains(norm, e.Normalized) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return Entry{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Usage != candidates[j].Usage {
			return candidates[i].Usage > candidates[j].Usage
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0], true
}

// bestSimilar scans a namespace for the closest entry scoring at least
// threshold. When several candidates score within scoreMargin of the
// leader, the one with more recorded usages wins, names breaking ties.
func (r *Resolver) bestSimilar(kind Kind, norm string, threshold float64) (Entry, float64, bool) {
	type scored struct {
		entry Entry
		score float64
	}
	var (
		candidates []scored
		top        float64
	)
	for _, e := range r.snap.Entries(kind) {
		if score := Similarity(norm, e.Normalized); score >= threshold {
			candidates = append(candidates, scored{entry: e, score: score})
			if score > top {
				top = score
			}
		}
	}
	if len(candidates) == 0 {
		return Entry{}, 0, false
	}

	var (
		best       scored
		havePick   bool
		contenders int
	)
	for _, c := range candidates {
		if top-c.score > scoreMargin {
			continue
		}
		contenders++
		if !havePick ||
			c.entry.Usage > best.entry.Usage ||
			(c.entry.Usage == best.entry.Usage && c.entry.Name < best.entry.Name) {
			best, havePick = c, true
		}
	}
	if contenders > 1 {
		zap.L().Debug("ambiguous catalog match resolved by usage",
			zap.String("kind", string(kind)),
			zap.String("name", norm),
			zap.String("picked", best.entry.Normalized),
			zap.Float64("score", best.score),
			zap.Int("candidates", contenders),
		)
	}
	return best.entry, best.score, true
}

// createOnce creates an entity at most once per normalized name, no
// matter how many workers ask concurrently. The snapshot is re-checked
// inside the flight so a create that lost the race reuses the winner.
func (r *Resolver) createOnce(ctx context.Context, kind Kind, norm string, create func(context.Context) (Entry, error)) (Match, error) {
	key := string(kind) + ":" + norm
	v, err, _ := r.group.Do(key, func() (any, error) {
		if e, ok := r.snap.Lookup(kind, norm); ok {
			return Match{Entry: e, Method: "exact", Score: 1}, nil
		}
		retry := r.retry
		retry.OnRetry = resilience.RetryLogger("paperless", "create "+string(kind))
		e, err := resilience.DoVal(ctx, retry, create)
		if err != nil {
			return nil, err
		}
		e = r.snap.Insert(kind, e)
		zap.L().Info("catalog entity created",
			zap.String("kind", string(kind)),
			zap.String("name", e.Name),
			zap.Int("id", e.ID),
		)
		return Match{Entry: e, Method: "created", Score: 1, Created: true}, nil
	})
	if err != nil {
		return Match{}, eris.Wrapf(err, "catalog: create %s %q", kind, norm)
	}
	return v.(Match), nil
}
