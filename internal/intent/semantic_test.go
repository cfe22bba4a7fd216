package intent

import (
	"math"
	"testing"
)

func TestCosineSymmetry(t *testing.T) {
	a := []float32{0.3, -1.2, 0.8, 2.1}
	b := []float32{1.0, 0.5, -0.4, 0.9}

	if got, want := Cosine(a, b), Cosine(b, a); got != want {
		t.Errorf("cosine not symmetric: %v vs %v", got, want)
	}
}

func TestCosineSelfSimilarity(t *testing.T) {
	a := []float32{0.3, -1.2, 0.8, 2.1}
	if got := Cosine(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Cosine(a, a) = %v, want ~1.0", got)
	}
}

func TestCosineZeroVector(t *testing.T) {
	a := []float32{1, 2, 3}
	zero := []float32{0, 0, 0}

	for _, got := range []float64{Cosine(a, zero), Cosine(zero, a), Cosine(zero, zero)} {
		if got != 0 {
			t.Errorf("cosine with zero vector = %v, want 0", got)
		}
		if math.IsNaN(got) {
			t.Error("cosine with zero vector returned NaN")
		}
	}
}

func TestCosineOrthogonal(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors scored %v, want 0", got)
	}
}

func TestScoreSemanticSkipsMismatchedDimensions(t *testing.T) {
	records := []EmbeddingRecord{
		{ID: "e1", IntentTag: "admission_dates", Embedding: []float32{1, 0, 0}},
		{ID: "e2", IntentTag: "broken", Embedding: []float32{1, 0}},
		{ID: "e3", IntentTag: "fees", Embedding: []float32{0, 1, 0}},
	}

	ranked := ScoreSemantic([]float32{1, 0, 0}, records)
	if len(ranked) != 2 {
		t.Fatalf("got %d candidates, want 2 (malformed record skipped)", len(ranked))
	}
	if ranked[0].IntentTag != "admission_dates" {
		t.Errorf("top tag = %q, want admission_dates", ranked[0].IntentTag)
	}
}

func TestPredictSemanticThresholdBoundary(t *testing.T) {
	// Parallel axis vectors score exactly 1.0.
	records := []EmbeddingRecord{{ID: "e1", IntentTag: "admission_dates", Embedding: []float32{3, 0}}}

	if _, ok := PredictSemantic([]float32{1, 0}, records, 1.0); !ok {
		t.Error("similarity equal to threshold must be accepted")
	}
}

func TestPredictSemanticBelowThreshold(t *testing.T) {
	records := []EmbeddingRecord{{ID: "e1", IntentTag: "admission_dates", Embedding: []float32{0, 1}}}

	if c, ok := PredictSemantic([]float32{1, 0}, records, 0.5); ok {
		t.Errorf("orthogonal vector matched with score %v", c.Score)
	}
}

func TestPredictSemanticEmptyCorpus(t *testing.T) {
	if _, ok := PredictSemantic([]float32{1, 0}, nil, 0.0); ok {
		t.Error("empty corpus must never produce a match")
	}
}

func TestScoreSemanticDuplicateRecords(t *testing.T) {
	// A backfill run twice can leave duplicate records for one pattern.
	// Top-1 selection must be unaffected.
	records := []EmbeddingRecord{
		{ID: "e1", IntentTag: "admission_dates", Embedding: []float32{1, 0}},
		{ID: "e2", IntentTag: "admission_dates", Embedding: []float32{1, 0}},
		{ID: "e3", IntentTag: "fees", Embedding: []float32{0.9, 0.1}},
	}

	ranked := ScoreSemantic([]float32{1, 0}, records)
	if len(ranked) != 3 {
		t.Fatalf("got %d candidates, want 3", len(ranked))
	}
	if ranked[0].IntentTag != "admission_dates" || ranked[1].IntentTag != "admission_dates" {
		t.Errorf("duplicates should occupy the top ranks: %v", ranked)
	}
}
