package storage

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// SaveEmbedding stores one embedding record. The vector is serialized
// as a little-endian float32 blob.
func (s *Store) SaveEmbedding(e Embedding) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO embeddings (id, intent_tag, pattern_text, embedding, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.IntentTag, e.PatternText, encodeFloat32s(e.Vector), e.Model,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// ListEmbeddings returns all embedding records. A record whose blob
// fails to decode is skipped with a warning; one corrupt row must not
// prevent the rest of the corpus from being scanned.
func (s *Store) ListEmbeddings() ([]Embedding, error) {
	rows, err := s.db.Query(`
		SELECT id, intent_tag, pattern_text, embedding, model, created_at
		FROM embeddings ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Embedding
	for rows.Next() {
		var e Embedding
		var blob []byte
		var createdAt string
		if err := rows.Scan(&e.ID, &e.IntentTag, &e.PatternText, &blob, &e.Model, &createdAt); err != nil {
			return nil, err
		}
		vec, err := decodeFloat32s(blob)
		if err != nil {
			slog.Warn("skipping embedding record with corrupt vector", "record_id", e.ID, "error", err)
			continue
		}
		e.Vector = vec
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", e.ID, err)
		}
		e.CreatedAt = t
		results = append(results, e)
	}
	return results, rows.Err()
}

// HasEmbeddingForPattern reports whether an embedding record already
// exists for the given pattern text and intent tag.
func (s *Store) HasEmbeddingForPattern(intentTag, text string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM embeddings WHERE pattern_text = ? AND intent_tag = ?`,
		text, intentTag).Scan(&count)
	return count > 0, err
}

// CountEmbeddings returns the number of stored embedding records.
func (s *Store) CountEmbeddings() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&count)
	return count, err
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a float32
// slice. A length that is not a multiple of 4 indicates corruption.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
