package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
)

// rrfK is the reciprocal rank fusion constant (§4.2: "reciprocal rank fusion
// with constant 60").
const rrfK = 60

// Fusion weights applied to each index's RRF contribution before summing
// (§4.2: "configured vector:lexical weights of 0.7:0.3, domain-tuned").
const (
	vectorWeight  = 0.7
	lexicalWeight = 0.3
)

// Search runs FTS5 lexical search and HNSW vector search and fuses the two
// ranked lists via weighted reciprocal rank fusion.
func (s *Service) Search(ctx context.Context, queryText string, queryVec []float32, k int) ([]SearchResult, error) {
	lexHits, err := s.lexicalSearch(ctx, queryText, k)
	if err != nil {
		return nil, fmt.Errorf("document: lexical search: %w", err)
	}

	var vecHits []VectorHit
	if s.vector != nil && queryVec != nil {
		vecHits, err = s.vector.Search(queryVec, k)
		if err != nil {
			// Vector search degrading never fails the whole query — lexical
			// results alone still satisfy search().
			vecHits = nil
		}
	}

	return fuse(lexHits, vecHits, k), nil
}

type lexicalHit struct {
	chunkID string
	paperID string
	snippet string
}

func (s *Service) lexicalSearch(ctx context.Context, queryText string, k int) ([]lexicalHit, error) {
	if queryText == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.paper_id, snippet(chunk_fts, 0, '', '', '...', 24) AS snippet
		FROM chunk_fts
		JOIN chunk c ON c.id = chunk_fts.id
		WHERE chunk_fts MATCH ?
		ORDER BY bm25(chunk_fts)
		LIMIT ?
	`, queryText, k)
	if err != nil {
		return nil, nil //nolint:nilerr // malformed FTS5 query treated as no results
	}
	defer rows.Close()

	var hits []lexicalHit
	for rows.Next() {
		var h lexicalHit
		if err := rows.Scan(&h.chunkID, &h.paperID, &h.snippet); err != nil {
			return nil, fmt.Errorf("document: scan lexical hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func fuse(lexHits []lexicalHit, vecHits []VectorHit, k int) []SearchResult {
	type docInfo struct {
		paperID string
		snippet string
	}
	scores := make(map[string]float64)
	docs := make(map[string]docInfo)

	for rank, h := range lexHits {
		scores[h.chunkID] += lexicalWeight / float64(rrfK+rank+1)
		docs[h.chunkID] = docInfo{paperID: h.paperID, snippet: h.snippet}
	}
	for rank, h := range vecHits {
		scores[h.ChunkID] += vectorWeight / float64(rrfK+rank+1)
		if _, ok := docs[h.ChunkID]; !ok {
			docs[h.ChunkID] = docInfo{}
		}
	}

	type ranked struct {
		chunkID string
		score   float64
	}
	all := make([]ranked, 0, len(scores))
	for id, score := range scores {
		all = append(all, ranked{chunkID: id, score: score})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	out := make([]SearchResult, 0, min(k, len(all)))
	for i := 0; i < len(all) && i < k; i++ {
		info := docs[all[i].chunkID]
		out = append(out, SearchResult{
			ChunkID:    all[i].chunkID,
			PaperID:    info.paperID,
			FusedScore: all[i].score,
			Snippet:    info.snippet,
		})
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// decodeEmbedding deserializes a JSON TEXT vector back to []float32.
func decodeEmbedding(raw sql.NullString) ([]float32, error) {
	if !raw.Valid {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw.String), &vec); err != nil {
		return nil, fmt.Errorf("document: decode embedding: %w", err)
	}
	return vec, nil
}
