// Package catalog resolves model-proposed tag and correspondent names
// against the names that already exist on the server, so enrichment
// reuses entities instead of spawning near-duplicates.
package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists entity suffixes stripped from correspondent names
// before matching. German forms first since most scanned mail is German.
var legalSuffixes = []string{
	" gmbh & co. kg", " gmbh & co kg",
	" gmbh", " mbh", " ag", " kg", " ohg", " ug", " e.v.", " ev", " se",
	" llc", " l.l.c.", " inc", " inc.", " incorporated",
	" corp", " corp.", " corporation",
	" ltd", " ltd.", " limited", " co", " co.", " plc",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

var tagCharRe = regexp.MustCompile(`[^a-z0-9_-]`)

// foldDiacritics strips combining marks so "München" and "Muenchen"-style
// variants at least agree on the base letters.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName standardizes a correspondent name for matching by:
//  1. Trimming whitespace
//  2. Lowercasing and folding diacritics
//  3. Removing common legal suffixes (GmbH, AG, Inc, Ltd, ...)
//  4. Stripping punctuation
//  5. Collapsing runs of spaces
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToLower(name)
	name = foldDiacritics(name)

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", " ",
		"-", " ",
		"/", " ",
		"(", " ",
		")", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// NormalizeTag converts a proposed tag name to slug form: lowercase,
// diacritics folded, spaces to hyphens, everything outside [a-z0-9_-]
// dropped. Returns "" for names that do not survive normalization
// (including single-character leftovers, which are noise from the model).
func NormalizeTag(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = foldDiacritics(slug)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = tagCharRe.ReplaceAllString(slug, "")
	slug = strings.Trim(slug, "-")
	if len(slug) <= 1 {
		return ""
	}
	return slug
}
