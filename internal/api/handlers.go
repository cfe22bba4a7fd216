// Package api exposes the chatbot over HTTP: a public chat endpoint
// plus a bearer-protected admin surface for managing the FAQ corpus.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/faqbot/internal/backfill"
	"github.com/kalambet/faqbot/internal/chat"
	"github.com/kalambet/faqbot/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Syncer triggers an embedding backfill sweep.
type Syncer interface {
	Sync() (int, error)
}

type Deps struct {
	Store *storage.Store
	Chat  *chat.Service
	Token string

	// Backfill is optional; without it POST /admin/backfill returns 503
	// and pattern creation skips the embed job (lexical-only mode).
	Backfill Syncer
}

// NewHandler builds the full HTTP router. Chat and health are public,
// everything under /admin requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/chat", handleChat(deps))

	r.Route("/admin", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/intents", handleListIntents(deps))
		r.Post("/intents", handleCreateIntent(deps))
		r.Delete("/intents/{tag}", handleDeleteIntent(deps))

		r.Get("/intents/{tag}/patterns", handleListPatterns(deps))
		r.Post("/intents/{tag}/patterns", handleCreatePattern(deps))
		r.Delete("/patterns/{id}", handleDeletePattern(deps))

		r.Get("/intents/{tag}/responses", handleListResponses(deps))
		r.Post("/intents/{tag}/responses", handleCreateResponse(deps))
		r.Delete("/responses/{id}", handleDeleteResponse(deps))

		r.Get("/settings/{key}", handleGetSetting(deps))
		r.Put("/settings/{key}", handlePutSetting(deps))

		r.Get("/stats", handleStats(deps))
		r.Get("/logs", handleListLogs(deps))
		r.Post("/backfill", handleBackfill(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response   string  `json:"response"`
	Intent     string  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		reply, err := deps.Chat.Classify(r.Context(), req.Message)
		if errors.Is(err, chat.ErrEmptyMessage) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required and must not be empty")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to classify message: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			Response:   reply.Message,
			Intent:     reply.IntentTag,
			Confidence: reply.Confidence,
			Method:     string(reply.Method),
		})
	}
}

type IntentRequest struct {
	Tag         string `json:"tag"`
	Description string `json:"description"`
}

func handleCreateIntent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req IntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Tag = strings.TrimSpace(req.Tag)
		if req.Tag == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "tag is required")
			return
		}

		if err := deps.Store.CreateIntent(storage.Intent{
			Tag:         req.Tag,
			Description: req.Description,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create intent: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"tag": req.Tag, "status": "created"})
	}
}

func handleListIntents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intents, err := deps.Store.ListIntents()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list intents: %v", err)
			return
		}
		if intents == nil {
			intents = []storage.Intent{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(intents)
	}
}

func handleDeleteIntent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")

		err := deps.Store.DeleteIntent(tag)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "intent not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete intent: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

type TextRequest struct {
	Text string `json:"text"`
}

func handleCreatePattern(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req TextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		if _, err := deps.Store.GetIntent(tag); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "intent not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get intent: %v", err)
			return
		}

		id := uuid.New().String()
		if err := deps.Store.CreatePattern(storage.Pattern{
			ID:        id,
			IntentTag: tag,
			Text:      req.Text,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create pattern: %v", err)
			return
		}

		status := "created"
		if deps.Backfill != nil {
			if err := backfill.EnqueuePattern(deps.Store, id); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue embed job: %v", err)
				return
			}
			status = "created, embedding queued"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": id, "status": status})
	}
}

func handleListPatterns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		patterns, err := deps.Store.ListPatternsByIntent(tag)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list patterns: %v", err)
			return
		}
		if patterns == nil {
			patterns = []storage.Pattern{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(patterns)
	}
}

func handleDeletePattern(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeletePattern(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "pattern not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete pattern: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleCreateResponse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req TextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		if _, err := deps.Store.GetIntent(tag); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "intent not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get intent: %v", err)
			return
		}

		id := uuid.New().String()
		if err := deps.Store.CreateResponse(storage.Response{
			ID:        id,
			IntentTag: tag,
			Text:      req.Text,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create response: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "created"})
	}
}

func handleListResponses(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		responses, err := deps.Store.ListResponsesByIntent(tag)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list responses: %v", err)
			return
		}
		if responses == nil {
			responses = []storage.Response{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(responses)
	}
}

func handleDeleteResponse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteResponse(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "response not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete response: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleGetSetting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		value, err := deps.Store.GetSetting(key)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "setting not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get setting: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"key": key, "value": value})
	}
}

type SettingRequest struct {
	Value string `json:"value"`
}

func handlePutSetting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req SettingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		// Threshold settings must stay numeric or the chat service will
		// silently fall back to defaults.
		if key == chat.SemanticThresholdKey || key == chat.LexicalThresholdKey {
			if _, err := strconv.ParseFloat(strings.TrimSpace(req.Value), 64); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "value for %s must be a number", key)
				return
			}
		}

		if err := deps.Store.SetSetting(key, req.Value); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save setting: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"key": key, "value": req.Value})
	}
}

type Stats struct {
	Intents    int `json:"intents"`
	Patterns   int `json:"patterns"`
	Embeddings int `json:"embeddings"`
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intents, err := deps.Store.ListIntents()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list intents: %v", err)
			return
		}
		patterns, err := deps.Store.ListPatterns()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list patterns: %v", err)
			return
		}
		embeddings, err := deps.Store.CountEmbeddings()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count embeddings: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Stats{
			Intents:    len(intents),
			Patterns:   len(patterns),
			Embeddings: embeddings,
		})
	}
}

func handleListLogs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		logs, err := deps.Store.RecentChatLogs(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list chat logs: %v", err)
			return
		}
		if logs == nil {
			logs = []storage.ChatLog{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(logs)
	}
}

func handleBackfill(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Backfill == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "embedding provider not configured")
			return
		}

		queued, err := deps.Backfill.Sync()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to sync embeddings: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"queued": queued})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
