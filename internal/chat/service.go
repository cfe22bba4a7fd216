// Package chat orchestrates a classify request end to end: resolve the
// intent of a user message, pick a canned response for it and record
// the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/faqbot/internal/intent"
	"github.com/kalambet/faqbot/internal/storage"
)

// ErrEmptyMessage is returned for an empty or whitespace-only user
// message. It maps to a client error, never to "unmatched".
var ErrEmptyMessage = errors.New("empty message")

// Settings keys for operator-tunable thresholds.
const (
	SemanticThresholdKey = "threshold"
	LexicalThresholdKey  = "lexical_threshold"
)

const fallbackMessage = "I'm sorry, I didn't quite understand that. Could you please rephrase your question?"
const missingResponseMessage = "I found the intent but have no response configured."

// Store is the subset of storage the chat service needs.
type Store interface {
	ListEmbeddings() ([]storage.Embedding, error)
	ListPatterns() ([]storage.Pattern, error)
	ListResponsesByIntent(tag string) ([]storage.Response, error)
	GetSetting(key string) (string, error)
	SaveChatLog(l storage.ChatLog) error
}

// Reply is the outcome of one classify request.
type Reply struct {
	Message    string
	IntentTag  string
	Confidence float64
	Method     intent.Method
}

// Service classifies user messages. Corpora are loaded fresh from the
// store on every call; nothing mutable is shared between requests.
type Service struct {
	store             Store
	resolver          *intent.Resolver
	semanticThreshold float64
	lexicalThreshold  float64
	logger            *slog.Logger
}

// NewService creates a Service. Threshold arguments are the defaults
// used when the settings table has no override; values <= 0 fall back
// to the package defaults.
func NewService(store Store, resolver *intent.Resolver, semanticThreshold, lexicalThreshold float64) *Service {
	if semanticThreshold <= 0 {
		semanticThreshold = intent.DefaultSemanticThreshold
	}
	if lexicalThreshold <= 0 {
		lexicalThreshold = intent.DefaultLexicalThreshold
	}
	return &Service{
		store:             store,
		resolver:          resolver,
		semanticThreshold: semanticThreshold,
		lexicalThreshold:  lexicalThreshold,
		logger:            slog.Default(),
	}
}

// Classify resolves the intent of message and returns the response
// text for it. A store read failure is fatal for the request: the
// caller must be able to distinguish "checked and no match" from
// "couldn't check".
func (s *Service) Classify(ctx context.Context, message string) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{}, ErrEmptyMessage
	}

	semanticThreshold := s.settingFloat(SemanticThresholdKey, s.semanticThreshold)
	lexicalThreshold := s.settingFloat(LexicalThresholdKey, s.lexicalThreshold)

	embeddings, err := s.store.ListEmbeddings()
	if err != nil {
		return Reply{}, fmt.Errorf("loading embedding corpus: %w", err)
	}
	patterns, err := s.store.ListPatterns()
	if err != nil {
		return Reply{}, fmt.Errorf("loading pattern corpus: %w", err)
	}

	match, err := s.resolver.Resolve(ctx, message,
		toRecords(embeddings), toPatterns(patterns), semanticThreshold, lexicalThreshold)
	if err != nil {
		return Reply{}, err
	}
	s.logger.Debug("intent resolved",
		"method", match.Method, "intent", match.IntentTag, "confidence", match.Confidence)

	reply := Reply{
		IntentTag:  match.IntentTag,
		Confidence: match.Confidence,
		Method:     match.Method,
	}

	matched := false
	if match.IntentTag != "" {
		responses, err := s.store.ListResponsesByIntent(match.IntentTag)
		if err != nil {
			return Reply{}, fmt.Errorf("loading responses for %s: %w", match.IntentTag, err)
		}
		if len(responses) > 0 {
			reply.Message = responses[rand.IntN(len(responses))].Text
			matched = true
		} else {
			reply.Message = missingResponseMessage
		}
	} else {
		reply.Message = fallbackMessage
	}

	logTag := match.IntentTag
	if logTag == "" {
		logTag = "unknown"
	}
	if err := s.store.SaveChatLog(storage.ChatLog{
		ID:         uuid.New().String(),
		Query:      message,
		Response:   reply.Message,
		IntentTag:  logTag,
		Matched:    matched,
		Method:     string(match.Method),
		Confidence: match.Confidence,
	}); err != nil {
		s.logger.Error("failed to write chat log", "error", err)
	}

	return reply, nil
}

// settingFloat reads a float setting, falling back to def when the key
// is absent or unparseable. A store error here is deliberately
// non-fatal: a missing threshold row should not take the chatbot down.
func (s *Service) settingFloat(key string, def float64) float64 {
	v, err := s.store.GetSetting(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read setting, using default", "key", key, "error", err)
		}
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		s.logger.Warn("unparseable setting value, using default", "key", key, "value", v)
		return def
	}
	return f
}

func toRecords(embeddings []storage.Embedding) []intent.EmbeddingRecord {
	records := make([]intent.EmbeddingRecord, len(embeddings))
	for i, e := range embeddings {
		records[i] = intent.EmbeddingRecord{
			ID:          e.ID,
			IntentTag:   e.IntentTag,
			PatternText: e.PatternText,
			Embedding:   e.Vector,
			Model:       e.Model,
		}
	}
	return records
}

func toPatterns(patterns []storage.Pattern) []intent.Pattern {
	result := make([]intent.Pattern, len(patterns))
	for i, p := range patterns {
		result[i] = intent.Pattern{ID: p.ID, IntentTag: p.IntentTag, Text: p.Text}
	}
	return result
}
