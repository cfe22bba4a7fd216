package intent

import (
	"testing"
)

func TestVocabularySortedUnique(t *testing.T) {
	patterns := []Pattern{
		{ID: "p1", IntentTag: "a", Text: "registration deadline"},
		{ID: "p2", IntentTag: "a", Text: "deadline for registration"},
	}

	vocab := Vocabulary(patterns)
	seen := make(map[string]bool)
	for i, term := range vocab {
		if seen[term] {
			t.Errorf("duplicate term %q in vocabulary", term)
		}
		seen[term] = true
		if i > 0 && vocab[i-1] >= term {
			t.Errorf("vocabulary not sorted: %q before %q", vocab[i-1], term)
		}
	}
	for _, term := range Normalize("registration deadline for") {
		if !seen[term] {
			t.Errorf("vocabulary missing term %q", term)
		}
	}
}

func TestVocabularyGrowsWithUnrelatedPattern(t *testing.T) {
	base := []Pattern{{ID: "p1", IntentTag: "admission_dates", Text: "registration deadline"}}
	extended := append([]Pattern{}, base...)
	extended = append(extended, Pattern{ID: "p2", IntentTag: "library", Text: "library opening hours"})

	small := Vocabulary(base)
	large := Vocabulary(extended)

	if len(large) <= len(small) {
		t.Fatalf("vocabulary did not grow: %d -> %d", len(small), len(large))
	}
	inLarge := make(map[string]bool)
	for _, term := range large {
		inLarge[term] = true
	}
	for _, term := range Normalize("library opening hours") {
		if !inLarge[term] {
			t.Errorf("new pattern term %q missing from grown vocabulary", term)
		}
	}
}

func TestScoreBOWNormalizesByQueryLength(t *testing.T) {
	patterns := []Pattern{{ID: "p1", IntentTag: "admission_dates", Text: "registration deadline"}}

	// Query has five tokens, two of which appear in the pattern.
	ranked := ScoreBOW("what is the registration deadline", patterns)
	if len(ranked) != 1 {
		t.Fatalf("got %d candidates, want 1", len(ranked))
	}
	if got, want := ranked[0].Score, 2.0/5.0; got != want {
		t.Errorf("score = %v, want %v", got, want)
	}
	if ranked[0].IntentTag != "admission_dates" {
		t.Errorf("tag = %q, want admission_dates", ranked[0].IntentTag)
	}
}

func TestPredictBOWExactMatch(t *testing.T) {
	patterns := []Pattern{
		{ID: "p1", IntentTag: "admission_dates", Text: "what is the registration deadline"},
		{ID: "p2", IntentTag: "fees", Text: "how much are tuition fees"},
	}

	c, ok := PredictBOW("what is the registration deadline", patterns, 0.7)
	if !ok {
		t.Fatal("expected a match")
	}
	if c.IntentTag != "admission_dates" {
		t.Errorf("tag = %q, want admission_dates", c.IntentTag)
	}
	if c.Score != 1.0 {
		t.Errorf("score = %v, want 1.0 for an exact match", c.Score)
	}
}

func TestPredictBOWThresholdBoundary(t *testing.T) {
	// Query of two tokens sharing exactly one with the pattern: 0.5.
	patterns := []Pattern{{ID: "p1", IntentTag: "admission_dates", Text: "deadline extension"}}

	if _, ok := PredictBOW("deadline tomorrow", patterns, 0.5); !ok {
		t.Error("score equal to threshold must be accepted")
	}
	if _, ok := PredictBOW("deadline tomorrow", patterns, 0.51); ok {
		t.Error("score below threshold must be rejected")
	}
}

func TestScoreBOWEmptyCorpus(t *testing.T) {
	ranked := ScoreBOW("anything at all", nil)
	if len(ranked) != 0 {
		t.Fatalf("got %d candidates for empty corpus, want 0", len(ranked))
	}
	if _, ok := PredictBOW("anything at all", nil, 0.0); ok {
		t.Error("empty corpus must never produce a match")
	}
}

func TestScoreBOWPunctuationOnlyQuery(t *testing.T) {
	patterns := []Pattern{{ID: "p1", IntentTag: "admission_dates", Text: "registration deadline"}}

	ranked := ScoreBOW("?!...", patterns)
	for _, c := range ranked {
		if c.Score != 0 {
			t.Errorf("punctuation-only query scored %v against %q, want 0", c.Score, c.IntentTag)
		}
	}
	if _, ok := PredictBOW("?!...", patterns, 0.0); !ok {
		// Score 0 still meets a 0.0 threshold; the resolver guards empty
		// queries before scoring. This documents the pure-scorer contract.
		t.Error("zero score should satisfy a zero threshold")
	}
}

func TestScoreBOWDeterministicTieBreak(t *testing.T) {
	a := Pattern{ID: "p-aaa", IntentTag: "first", Text: "registration deadline"}
	b := Pattern{ID: "p-zzz", IntentTag: "second", Text: "registration deadline"}

	for _, patterns := range [][]Pattern{{a, b}, {b, a}} {
		ranked := ScoreBOW("registration deadline", patterns)
		if len(ranked) != 2 {
			t.Fatalf("got %d candidates, want 2", len(ranked))
		}
		if ranked[0].Score != ranked[1].Score {
			t.Fatalf("scores differ for identical patterns: %v", ranked)
		}
		if ranked[0].ID != "p-aaa" {
			t.Errorf("tie not broken by pattern ID: got %q first", ranked[0].ID)
		}
	}
}

func TestScoreBOWPerPatternScoreIndependent(t *testing.T) {
	target := Pattern{ID: "p1", IntentTag: "admission_dates", Text: "registration deadline"}
	query := "registration deadline"

	alone := ScoreBOW(query, []Pattern{target})
	withOther := ScoreBOW(query, []Pattern{
		target,
		{ID: "p2", IntentTag: "library", Text: "library opening hours"},
	})

	var targetScore float64
	for _, c := range withOther {
		if c.ID == "p1" {
			targetScore = c.Score
		}
	}
	if alone[0].Score != targetScore {
		t.Errorf("pattern score changed when unrelated pattern added: %v vs %v",
			alone[0].Score, targetScore)
	}
}
