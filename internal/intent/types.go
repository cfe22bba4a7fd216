package intent

// Pattern is one example utterance belonging to an intent.
type Pattern struct {
	ID        string
	IntentTag string
	Text      string
}

// EmbeddingRecord is a cached semantic vector for a pattern text,
// tagged with the model that produced it.
type EmbeddingRecord struct {
	ID          string
	IntentTag   string
	PatternText string
	Embedding   []float32
	Model       string
}

// Candidate pairs an intent tag with a match score. ID identifies the
// pattern or embedding record that produced the score and doubles as
// the deterministic tie-break key when scores are equal.
type Candidate struct {
	ID        string
	IntentTag string
	Score     float64
}

// Method identifies which matching strategy produced a Match.
type Method string

const (
	MethodSemantic Method = "semantic"
	MethodBOW      Method = "bow"
	MethodNone     Method = "none"
)

// Match is the outcome of intent resolution. An empty IntentTag with
// MethodNone means no candidate cleared its threshold; callers map it
// to a fallback response, never to an error.
type Match struct {
	IntentTag  string
	Confidence float64
	Method     Method
}

// Default confidence thresholds. The lexical bar is stricter because
// term overlap is a noisier signal than embedding similarity.
const (
	DefaultSemanticThreshold = 0.5
	DefaultLexicalThreshold  = 0.7
)
