package flow

import "testing"

func TestDefaultClassifier(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"Чому потрібне фото?", IntentQuestion},
		{"що це за бот", IntentQuestion},
		{"скільки це коштує", IntentQuestion},
		{"а можна без фото", IntentPriceObjection}, // "можна" cue, no question marker
		{"дорого", IntentPriceObjection},
		{"дешевше не буде", IntentPriceObjection},
		{"знижку дасте", IntentPriceObjection},
		{"Дякую", IntentThanks},
		{"дуже дякую вам", IntentThanks},
		{"привіт", IntentOther},
		{"ні", IntentOther},
		{"Створити ще один поліс", IntentOther},
		{"", IntentOther},
		{"   ", IntentOther},
	}
	for _, tc := range cases {
		if got := DefaultClassifier(tc.text); got != tc.want {
			t.Errorf("DefaultClassifier(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestQuestionMarkAlwaysQuestion(t *testing.T) {
	// A question mark wins over objection cues.
	if got := DefaultClassifier("можна дешевше?"); got != IntentQuestion {
		t.Errorf("expected IntentQuestion for text with ?, got %v", got)
	}
}

func TestIsExactYes(t *testing.T) {
	for _, text := range []string{"так", "Так", "ТАК", "  так  "} {
		if !isExactYes(text) {
			t.Errorf("expected %q to be exact yes", text)
		}
	}
	for _, text := range []string{"так!", "так, все вірно", "згоден", "yes", "ні", ""} {
		if isExactYes(text) {
			t.Errorf("expected %q NOT to be exact yes", text)
		}
	}
}

func TestReconfirmSetsAreWiderThanExactYes(t *testing.T) {
	// Every exact yes is in the affirmative set, but not vice versa.
	wider := []string{"згоден", "згодна", "ок", "добре"}
	for _, text := range wider {
		if !isReconfirmAffirmative(text) {
			t.Errorf("expected %q in reconfirm affirmative set", text)
		}
		if isExactYes(text) {
			t.Errorf("%q must not satisfy the exact-yes rule", text)
		}
	}
	if !isReconfirmAffirmative("Так") {
		t.Errorf("exact yes must also satisfy the reconfirm set")
	}
}

func TestIsReconfirmNegative(t *testing.T) {
	for _, text := range []string{"ні", "Ні", "не згоден", "відмовляюсь"} {
		if !isReconfirmNegative(text) {
			t.Errorf("expected %q in reconfirm negative set", text)
		}
	}
	// Free text with a negative word inside is NOT a negative: it must fall
	// through to the completion fallback instead of ending the conversation.
	for _, text := range []string{"чому дорого", "ні дякую за таке", "не знаю"} {
		if isReconfirmNegative(text) {
			t.Errorf("expected %q NOT to match the negative set", text)
		}
	}
}
