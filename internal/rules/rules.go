// Package rules implements pattern-based tagging. Rules run before any
// model call so obvious document classes (invoices, bank statements,
// tax mail) are tagged deterministically and for free.
package rules

import (
	"os"
	"regexp"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Rule maps a content pattern to the tags it implies.
type Rule struct {
	Pattern         string   `yaml:"pattern"`
	Tags            []string `yaml:"tags"`
	CaseInsensitive bool     `yaml:"case_insensitive"`

	re *regexp.Regexp
}

// Engine matches document content against a compiled rule set.
type Engine struct {
	rules []Rule
}

// DefaultRules covers the document classes of typical household mail,
// with German and English trigger words.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: `\b(invoice|rechnung|factura)\b`, Tags: []string{"invoice", "financial"}, CaseInsensitive: true},
		{Pattern: `\b(receipt|quittung|bon)\b`, Tags: []string{"receipt", "financial"}, CaseInsensitive: true},
		{Pattern: `\b(bank statement|kontoauszug)\b`, Tags: []string{"bank-statement", "financial"}, CaseInsensitive: true},
		{Pattern: `\b(contract|vertrag)\b`, Tags: []string{"contract"}, CaseInsensitive: true},
		{Pattern: `\b(insurance|versicherung)\b`, Tags: []string{"insurance"}, CaseInsensitive: true},
		{Pattern: `\b(tax|steuer|finanzamt)\b`, Tags: []string{"tax", "important"}, CaseInsensitive: true},
		{Pattern: `\b(electricity|strom|energie)\b`, Tags: []string{"utility", "electricity"}, CaseInsensitive: true},
		{Pattern: `\b(water|wasser)\b`, Tags: []string{"utility", "water"}, CaseInsensitive: true},
	}
}

// NewEngine compiles a rule set. Invalid patterns fail loudly rather
// than matching nothing.
func NewEngine(rules []Rule) (*Engine, error) {
	compiled := make([]Rule, 0, len(rules))
	for i, r := range rules {
		pattern := r.Pattern
		if r.CaseInsensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "rules: compile rule %d (%s)", i, r.Pattern)
		}
		r.re = re
		compiled = append(compiled, r)
	}
	return &Engine{rules: compiled}, nil
}

// customRulesFile is the YAML shape of a user rule file.
type customRulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile reads extra rules from a YAML file and appends them to the
// defaults.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	var file customRulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "rules: parse %s", path)
	}
	rules := DefaultRules()
	rules = append(rules, file.Rules...)
	zap.L().Info("custom tag rules loaded",
		zap.String("path", path),
		zap.Int("count", len(file.Rules)),
	)
	return rules, nil
}

// Match returns the sorted, deduplicated tags of every rule whose
// pattern occurs in content.
func (e *Engine) Match(content string) []string {
	set := make(map[string]struct{})
	for _, r := range e.rules {
		if r.re.MatchString(content) {
			for _, tag := range r.Tags {
				set[tag] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
