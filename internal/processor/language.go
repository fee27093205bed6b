package processor

import "strings"

// Function words with high document frequency in each language. The
// counts of these in the first few hundred words separate German from
// English scans reliably enough for prompt selection.
var germanStopwords = map[string]struct{}{
	"der": {}, "die": {}, "das": {}, "und": {}, "für": {}, "fur": {},
	"mit": {}, "von": {}, "nicht": {}, "eine": {}, "ein": {}, "ist": {},
	"sie": {}, "ihre": {}, "ihr": {}, "wir": {}, "bitte": {}, "sehr": {},
	"betrag": {}, "rechnung": {}, "datum": {}, "geehrte": {}, "zum": {},
	"zur": {}, "bei": {}, "auf": {}, "dem": {}, "den": {}, "des": {},
}

var englishStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "not": {},
	"this": {}, "that": {}, "your": {}, "you": {}, "are": {}, "have": {},
	"please": {}, "amount": {}, "invoice": {}, "date": {}, "dear": {},
	"will": {}, "our": {}, "was": {}, "has": {}, "been": {}, "payment": {},
}

const languageSampleWords = 300

// detectLanguage guesses "de" or "en" from stopword frequency. English
// is the default when the signal is weak, matching the prompt fallback.
func detectLanguage(content string) string {
	words := strings.Fields(strings.ToLower(content))
	if len(words) > languageSampleWords {
		words = words[:languageSampleWords]
	}

	var de, en int
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if _, ok := germanStopwords[w]; ok {
			de++
		}
		if _, ok := englishStopwords[w]; ok {
			en++
		}
	}
	if de > en {
		return "de"
	}
	return "en"
}
