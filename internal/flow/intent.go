package flow

import "strings"

// Intent classifies free text the user sent where a photo or a yes/no answer
// was expected.
type Intent int

// Recognized intents, from cue-word matching only. Anything unmatched is
// IntentOther and falls through to the current state's else branch.
const (
	IntentOther Intent = iota
	IntentQuestion
	IntentPriceObjection
	IntentThanks
)

// Classifier maps free text to an Intent. The flow takes it as a dependency
// so stricter or fuzzier matching can be substituted without touching the
// transition logic.
type Classifier func(text string) Intent

// Cue-word sets. Matching is deliberately substring/whole-token based, not
// fuzzy: unrecognized input must fall through, never silently advance.
var (
	questionTokens     = []string{"що", "як", "чому", "коли", "навіщо", "чи", "скільки"}
	priceObjectionCues = []string{"чому", "дорого", "дешев", "знижк", "можна"}
)

const thanksCue = "дякую"

// DefaultClassifier applies the cue-word rules in priority order: thanks,
// then question markers, then price-objection cues.
func DefaultClassifier(text string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return IntentOther
	}
	if strings.Contains(normalized, thanksCue) {
		return IntentThanks
	}
	if strings.Contains(normalized, "?") || containsToken(normalized, questionTokens) {
		return IntentQuestion
	}
	for _, cue := range priceObjectionCues {
		if strings.Contains(normalized, cue) {
			return IntentPriceObjection
		}
	}
	return IntentOther
}

func containsToken(normalized string, tokens []string) bool {
	for _, word := range strings.Fields(normalized) {
		word = strings.Trim(word, ".,!?:;")
		for _, token := range tokens {
			if word == token {
				return true
			}
		}
	}
	return false
}

// Affirmative and negative token sets for the price reconfirmation state.
// These are wider than the exact "так" required by the confirm states.
var (
	reconfirmAffirmatives = map[string]struct{}{
		"так":    {},
		"згоден": {},
		"згодна": {},
		"ок":     {},
		"добре":  {},
	}
	reconfirmNegatives = map[string]struct{}{
		"ні":          {},
		"не згоден":   {},
		"не згодна":   {},
		"відмовляюсь": {},
	}
)

// isExactYes reports whether text is exactly the affirmative token, ignoring
// case and surrounding whitespace. Used by ConfirmData and ConfirmPrice.
func isExactYes(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "так")
}

// isReconfirmAffirmative matches the affirmative set of ReconfirmPrice.
func isReconfirmAffirmative(text string) bool {
	_, ok := reconfirmAffirmatives[normalizeToken(text)]
	return ok
}

// isReconfirmNegative matches the negative set of ReconfirmPrice.
func isReconfirmNegative(text string) bool {
	_, ok := reconfirmNegatives[normalizeToken(text)]
	return ok
}

func normalizeToken(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
