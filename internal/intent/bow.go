package intent

import (
	"sort"
)

// Vocabulary returns the sorted set of unique normalized terms across
// all patterns. It is rebuilt on every lexical scoring call and never
// cached, so concurrent requests share no state. The lexicographic
// order is not needed for the dot product but keeps vector layouts
// reproducible across runs.
func Vocabulary(patterns []Pattern) []string {
	seen := make(map[string]struct{})
	var vocab []string
	for _, p := range patterns {
		for _, term := range Normalize(p.Text) {
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				vocab = append(vocab, term)
			}
		}
	}
	sort.Strings(vocab)
	return vocab
}

// bagOfWords builds a binary presence vector over vocab: position i is
// 1 if term i appears anywhere in terms. Repeated occurrences do not
// increase the value.
func bagOfWords(terms []string, vocab []string) []uint8 {
	present := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		present[t] = struct{}{}
	}
	vec := make([]uint8, len(vocab))
	for i, w := range vocab {
		if _, ok := present[w]; ok {
			vec[i] = 1
		}
	}
	return vec
}

// ScoreBOW scores query against every pattern by normalized term
// overlap: the dot product of the binary query and pattern vectors
// (count of shared vocabulary terms) divided by the number of
// normalized query tokens. A query that normalizes to zero tokens
// scores 0 against every pattern.
//
// Candidates are ranked by score descending; equal scores are ordered
// by pattern ID so the ranking does not depend on corpus iteration
// order.
func ScoreBOW(query string, patterns []Pattern) []Candidate {
	vocab := Vocabulary(patterns)
	queryTerms := Normalize(query)
	queryVec := bagOfWords(queryTerms, vocab)

	candidates := make([]Candidate, 0, len(patterns))
	for _, p := range patterns {
		patternVec := bagOfWords(Normalize(p.Text), vocab)

		shared := 0
		for i := range vocab {
			if queryVec[i] == 1 && patternVec[i] == 1 {
				shared++
			}
		}

		score := 0.0
		if len(queryTerms) > 0 {
			score = float64(shared) / float64(len(queryTerms))
		}
		candidates = append(candidates, Candidate{ID: p.ID, IntentTag: p.IntentTag, Score: score})
	}

	rankCandidates(candidates)
	return candidates
}

// PredictBOW returns the top-ranked lexical candidate if its score
// reaches threshold (inclusive). The second return value is false when
// no pattern clears the bar.
func PredictBOW(query string, patterns []Pattern, threshold float64) (Candidate, bool) {
	ranked := ScoreBOW(query, patterns)
	if len(ranked) > 0 && ranked[0].Score >= threshold {
		return ranked[0], true
	}
	return Candidate{}, false
}

// rankCandidates sorts by score descending, breaking ties by candidate
// ID ascending.
func rankCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
}
