// Package backfill keeps the embedding corpus in sync with the pattern
// table. Patterns are embedded asynchronously through the job queue so
// admin writes never block on the embedding provider.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/faqbot/internal/storage"
)

// JobTypeEmbedPattern is the queue job type processed by the Worker.
const JobTypeEmbedPattern = "embed_pattern"

// Store abstracts the storage operations the worker needs.
type Store interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	EnqueueJob(job storage.Job) error
	GetPattern(id string) (storage.Pattern, error)
	ListPatternsWithoutEmbeddings() ([]storage.Pattern, error)
	HasEmbeddingForPattern(intentTag, text string) (bool, error)
	SaveEmbedding(e storage.Embedding) error
}

// Embedder generates embeddings for pattern text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// BatchEmbedder is implemented by providers that can embed a slice of
// texts concurrently. SyncNow uses it for the synchronous path.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Worker processes embed_pattern jobs from the SQLite job queue.
type Worker struct {
	store    Store
	embedder Embedder
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store Store, embedder Embedder, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single embed_pattern job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeEmbedPattern})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type embedPayload struct {
	PatternID string `json:"pattern_id"`
}

// EnqueuePattern queues a pattern for asynchronous embedding.
func EnqueuePattern(store Store, patternID string) error {
	payload, err := json.Marshal(embedPayload{PatternID: patternID})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	return store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeEmbedPattern,
		PayloadJSON: string(payload),
	})
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload embedPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	pattern, err := w.store.GetPattern(payload.PatternID)
	if err != nil {
		return fmt.Errorf("loading pattern %s: %w", payload.PatternID, err)
	}

	// A pattern can be queued more than once, e.g. a backfill sweep
	// racing an admin create. The second embed would only overwrite an
	// identical vector, so skip it.
	exists, err := w.store.HasEmbeddingForPattern(pattern.IntentTag, pattern.Text)
	if err != nil {
		return fmt.Errorf("checking existing embedding: %w", err)
	}
	if exists {
		return nil
	}

	vec, err := w.embedder.Embed(ctx, pattern.Text)
	if err != nil {
		return fmt.Errorf("embedding pattern: %w", err)
	}

	if err := w.store.SaveEmbedding(storage.Embedding{
		ID:          uuid.New().String(),
		IntentTag:   pattern.IntentTag,
		PatternText: pattern.Text,
		Vector:      vec,
		Model:       w.embedder.Model(),
	}); err != nil {
		return fmt.Errorf("saving embedding: %w", err)
	}

	return nil
}

// Sync enqueues an embed_pattern job for every pattern without a cached
// embedding and returns the number of jobs queued.
func (w *Worker) Sync() (int, error) {
	patterns, err := w.store.ListPatternsWithoutEmbeddings()
	if err != nil {
		return 0, fmt.Errorf("listing patterns without embeddings: %w", err)
	}
	for _, p := range patterns {
		if err := EnqueuePattern(w.store, p.ID); err != nil {
			return 0, fmt.Errorf("enqueueing pattern %s: %w", p.ID, err)
		}
	}
	return len(patterns), nil
}

// SyncNow embeds every missing pattern synchronously, bypassing the job
// queue. Used by the CLI backfill command where the caller wants to see
// the result before exiting.
func SyncNow(ctx context.Context, store Store, embedder BatchEmbedder) (int, error) {
	patterns, err := store.ListPatternsWithoutEmbeddings()
	if err != nil {
		return 0, fmt.Errorf("listing patterns without embeddings: %w", err)
	}
	if len(patterns) == 0 {
		return 0, nil
	}

	texts := make([]string, len(patterns))
	for i, p := range patterns {
		texts[i] = p.Text
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding patterns: %w", err)
	}

	for i, p := range patterns {
		if err := store.SaveEmbedding(storage.Embedding{
			ID:          uuid.New().String(),
			IntentTag:   p.IntentTag,
			PatternText: p.Text,
			Vector:      vectors[i],
			Model:       embedder.Model(),
		}); err != nil {
			return 0, fmt.Errorf("saving embedding for pattern %s: %w", p.ID, err)
		}
	}
	return len(patterns), nil
}
