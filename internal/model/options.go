package model

import "time"

// ProcessingOptions is the immutable configuration snapshot for a run.
// It is passed by value into every processor invocation and never mutated
// mid-run.
type ProcessingOptions struct {
	// Feature toggles.
	EnableTitle         bool
	EnableTagging       bool
	EnableMetadata      bool
	EnableCategorize    bool
	EnableSummary       bool
	UseRuleBasedTagging bool
	UseLLMTagging       bool

	// Thresholds.
	TagConfidenceThreshold float64
	MaxTagsPerDocument     int

	// Skip policies.
	SkipIfProcessed   bool
	SkipIfTitleExists bool
	SkipIfTagsExist   bool
	ProcessedTag      string
	ActionTag         string

	// Summary settings.
	SummaryMaxLength int
	SummaryStyle     string // "concise", "detailed", "bullet_points"

	// Retry / concurrency.
	RetryLimit      int
	MaxConcurrency  int
	DocumentTimeout time.Duration
	CacheTTL        time.Duration
	GracePeriod     time.Duration
}

// DefaultOptions returns the processing defaults used by the CLI.
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{
		EnableTitle:            true,
		EnableTagging:          true,
		EnableMetadata:         true,
		EnableCategorize:       true,
		EnableSummary:          false,
		UseRuleBasedTagging:    true,
		UseLLMTagging:          true,
		TagConfidenceThreshold: 0.7,
		MaxTagsPerDocument:     10,
		SkipIfProcessed:        true,
		SkipIfTitleExists:      true,
		SkipIfTagsExist:        false,
		ProcessedTag:           "enriched",
		ActionTag:              "action-required",
		SummaryMaxLength:       500,
		SummaryStyle:           "concise",
		RetryLimit:             3,
		MaxConcurrency:         5,
		DocumentTimeout:        5 * time.Minute,
		CacheTTL:               time.Hour,
		GracePeriod:            5 * time.Second,
	}
}
