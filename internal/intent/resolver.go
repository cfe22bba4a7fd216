package intent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrEmptyQuery is returned when the query is empty or whitespace.
// This is the one condition the resolver surfaces as an error: it
// indicates malformed input, not an unmatched intent.
var ErrEmptyQuery = errors.New("empty query")

// Embedder produces a fixed-length vector for a piece of text. Model
// identifies the embedding model so stored vectors from a different
// model are never compared against the query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Resolver orchestrates the two matching strategies: semantic
// similarity first, bag-of-words overlap as the fallback when the
// embedding corpus is incomplete or the provider is down. A semantic
// hit short-circuits; scores are never blended.
//
// All collaborators are passed in explicitly; the resolver holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	embedder Embedder
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil embedder disables the semantic
// tier entirely (lexical-only matching).
func NewResolver(embedder Embedder) *Resolver {
	return &Resolver{embedder: embedder, logger: slog.Default()}
}

// Resolve classifies query against the two corpora. Provider failures
// are logged and degrade to lexical matching; they never fail the
// request. When neither strategy clears its threshold the returned
// Match has MethodNone and an empty tag.
func (r *Resolver) Resolve(ctx context.Context, query string, records []EmbeddingRecord, patterns []Pattern, semanticThreshold, lexicalThreshold float64) (Match, error) {
	if strings.TrimSpace(query) == "" {
		return Match{}, ErrEmptyQuery
	}

	if r.embedder != nil {
		vec, err := r.embedder.Embed(ctx, query)
		switch {
		case err != nil:
			r.logger.Warn("embedding provider failed, falling back to lexical matching", "error", err)
		case len(vec) == 0:
			r.logger.Warn("embedding provider returned an empty vector, falling back to lexical matching")
		default:
			if c, ok := PredictSemantic(vec, r.filterByModel(records), semanticThreshold); ok {
				return Match{IntentTag: c.IntentTag, Confidence: c.Score, Method: MethodSemantic}, nil
			}
		}
	}

	if c, ok := PredictBOW(query, patterns, lexicalThreshold); ok {
		return Match{IntentTag: c.IntentTag, Confidence: c.Score, Method: MethodBOW}, nil
	}

	return Match{Method: MethodNone}, nil
}

// filterByModel drops records produced by a different embedding model
// than the active provider's; comparing vectors across models is
// meaningless. Records with no recorded model are kept for
// compatibility with corpora written before the model column existed.
func (r *Resolver) filterByModel(records []EmbeddingRecord) []EmbeddingRecord {
	model := r.embedder.Model()
	if model == "" {
		return records
	}

	kept := records[:0:0]
	for _, rec := range records {
		if rec.Model != "" && rec.Model != model {
			r.logger.Warn("skipping embedding record from different model",
				"record_id", rec.ID, "record_model", rec.Model, "provider_model", model)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}
