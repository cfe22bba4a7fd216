package intent

import (
	"log/slog"
	"math"
)

// Cosine returns the cosine similarity of two vectors, accumulating in
// float64 to limit rounding drift. A zero-magnitude vector or a length
// mismatch yields 0, never NaN.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, aSq, bSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aSq += float64(a[i]) * float64(a[i])
		bSq += float64(b[i]) * float64(b[i])
	}
	norm := math.Sqrt(aSq) * math.Sqrt(bSq)
	if norm == 0 {
		return 0
	}
	return dot / norm
}

// ScoreSemantic scores queryVec against each embedding record by
// cosine similarity. Records whose vectors have a different
// dimensionality than the query are skipped with a warning rather
// than aborting the scan; one malformed record must not prevent
// matching against the rest.
//
// Ranking is score descending with record ID as the tie-break key.
func ScoreSemantic(queryVec []float32, records []EmbeddingRecord) []Candidate {
	candidates := make([]Candidate, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) != len(queryVec) {
			slog.Warn("skipping embedding record with mismatched dimensions",
				"record_id", r.ID, "got", len(r.Embedding), "want", len(queryVec))
			continue
		}
		candidates = append(candidates, Candidate{
			ID:        r.ID,
			IntentTag: r.IntentTag,
			Score:     Cosine(queryVec, r.Embedding),
		})
	}
	rankCandidates(candidates)
	return candidates
}

// PredictSemantic returns the top-ranked semantic candidate if its
// similarity reaches threshold (inclusive).
func PredictSemantic(queryVec []float32, records []EmbeddingRecord, threshold float64) (Candidate, bool) {
	ranked := ScoreSemantic(queryVec, records)
	if len(ranked) > 0 && ranked[0].Score >= threshold {
		return ranked[0], true
	}
	return Candidate{}, false
}
