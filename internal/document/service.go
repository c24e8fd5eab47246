package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oncotarget/engine/pkg/uuid"
)

// Service persists Papers and Chunks and keeps the vector index in sync.
type Service struct {
	db     *sql.DB
	vector *VectorIndex
}

// NewService creates a document Service. vector may be shared across
// services that need the same in-process ANN graph.
func NewService(db *sql.DB, vector *VectorIndex) *Service {
	return &Service{db: db, vector: vector}
}

// NewPaperInput carries the fields needed to insert a Paper with its Chunks.
type NewPaperInput struct {
	DOI           *string
	PubMedID      *string
	PMCID         *string
	Title         string
	Abstract      *string
	AuthorsJSON   string
	Journal       *string
	PublishedAt   *time.Time
	Source        string
	RetrievalTier int
	AbstractSimhash *uint64
	RawPayload    []byte
	Chunks        []NewChunkInput
}

// NewChunkInput is a single chunk to insert alongside its Paper.
type NewChunkInput struct {
	SectionType    SectionType
	SectionHeading *string
	Content        string
	TokenCount     int
	PageNumber     *int
	Embedding      []float32
}

// InsertPaper atomically inserts a Paper and all of its Chunks: either every
// chunk becomes queryable or none does (§4.2 guarantee). The FTS5 index is
// kept in sync by triggers; the vector index is updated after commit for any
// chunk that already carries an embedding.
func (s *Service) InsertPaper(ctx context.Context, input NewPaperInput) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("document: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	paperID := uuid.NewV7().String()
	now := time.Now().UTC()

	if input.AuthorsJSON == "" {
		input.AuthorsJSON = "[]"
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO paper (
			id, doi, pubmed_id, pmc_id, title, abstract, authors_json, journal,
			published_at, source, retrieval_tier, parse_status, abstract_simhash,
			raw_payload, ingested_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		paperID, input.DOI, input.PubMedID, input.PMCID, input.Title, input.Abstract,
		input.AuthorsJSON, input.Journal, input.PublishedAt, input.Source,
		input.RetrievalTier, string(ParseStatusParsed), input.AbstractSimhash,
		input.RawPayload, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("document: insert paper: %w", err)
	}

	type pendingEmbed struct {
		chunkID string
		vec     []float32
	}
	var toEmbed []pendingEmbed

	for i, c := range input.Chunks {
		chunkID := uuid.NewV7().String()
		var embJSON any
		status := EmbeddingStatusPending
		if c.Embedding != nil {
			b, err := json.Marshal(c.Embedding)
			if err != nil {
				return "", fmt.Errorf("document: marshal embedding: %w", err)
			}
			embJSON = string(b)
			status = EmbeddingStatusEmbedded
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunk (
				id, paper_id, chunk_index, section_type, section_heading, content,
				token_count, page_number, embedding_json, embedding_status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, chunkID, paperID, i, string(c.SectionType), c.SectionHeading, c.Content,
			c.TokenCount, c.PageNumber, embJSON, string(status), now,
		)
		if err != nil {
			return "", fmt.Errorf("document: insert chunk %d: %w", i, err)
		}

		if c.Embedding != nil {
			toEmbed = append(toEmbed, pendingEmbed{chunkID: chunkID, vec: c.Embedding})
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("document: commit: %w", err)
	}

	if s.vector != nil {
		for _, pe := range toEmbed {
			if err := s.vector.Upsert(pe.chunkID, pe.vec); err != nil {
				// Index failures never unwind an already-committed paper — the
				// reconciler (§7 error kind 5) retries embedding-pending chunks.
				continue
			}
		}
	}

	return paperID, nil
}

// SetEmbedding stores a chunk's embedding after the fact (used by the
// pipeline's Embed stage and by the reconciler for retry-after-failure).
func (s *Service) SetEmbedding(ctx context.Context, chunkID string, vec []float32) error {
	b, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("document: marshal embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE chunk SET embedding_json = ?, embedding_status = ? WHERE id = ?
	`, string(b), string(EmbeddingStatusEmbedded), chunkID)
	if err != nil {
		return fmt.Errorf("document: update embedding: %w", err)
	}
	if s.vector != nil {
		return s.vector.Upsert(chunkID, vec)
	}
	return nil
}

// MarkEmbeddingFailed records that embedding failed for chunkID so the
// reconciler can find it; lexical search still functions (§7 error kind 5).
func (s *Service) MarkEmbeddingFailed(ctx context.Context, chunkID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chunk SET embedding_status = ? WHERE id = ?`,
		string(EmbeddingStatusFailed), chunkID)
	return err
}

// PendingEmbeddings returns chunk ids/content awaiting embedding, for the
// periodic reconciler.
func (s *Service) PendingEmbeddings(ctx context.Context, limit int) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, paper_id, chunk_index, section_type, content, token_count, created_at
		FROM chunk WHERE embedding_status IN (?, ?) LIMIT ?
	`, string(EmbeddingStatusPending), string(EmbeddingStatusFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("document: pending embeddings: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var sectionType string
		if err := rows.Scan(&c.ID, &c.PaperID, &c.ChunkIndex, &sectionType, &c.Content, &c.TokenCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.SectionType = SectionType(sectionType)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// FindByDOI looks up a Paper by normalized DOI (Stage 2 dedup, first check).
func (s *Service) FindByDOI(ctx context.Context, doi string) (*Paper, error) {
	return s.scanPaperRow(s.db.QueryRowContext(ctx, `SELECT id, doi, pubmed_id, pmc_id, title, abstract, authors_json, journal, published_at, source, retrieval_tier, parse_status, abstract_simhash, ingested_at, updated_at FROM paper WHERE doi = ?`, doi))
}

// FindBySimilarAbstract returns papers whose abstract_simhash is within a
// Hamming distance of 3 from sig (Stage 2 dedup, second check).
func (s *Service) FindBySimilarAbstract(ctx context.Context, sig uint64) ([]*Paper, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doi, pubmed_id, pmc_id, title, abstract, authors_json, journal, published_at, source, retrieval_tier, parse_status, abstract_simhash, ingested_at, updated_at FROM paper WHERE abstract_simhash IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("document: scan candidates for simhash: %w", err)
	}
	defer rows.Close()

	var out []*Paper
	for rows.Next() {
		p, err := s.scanPaperRowFromRows(rows)
		if err != nil {
			return nil, err
		}
		if p.AbstractSimhash != nil && hammingDistance(*p.AbstractSimhash, sig) <= 3 {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

// FindByTitleCandidates returns every ingested paper, for the title-trigram
// + first-author + publication-year history check (Stage 2 dedup, third
// check). Like FindBySimilarAbstract, matching itself happens in the
// caller since trigram similarity isn't indexed.
func (s *Service) FindByTitleCandidates(ctx context.Context) ([]*Paper, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doi, pubmed_id, pmc_id, title, abstract, authors_json, journal, published_at, source, retrieval_tier, parse_status, abstract_simhash, ingested_at, updated_at FROM paper`)
	if err != nil {
		return nil, fmt.Errorf("document: scan candidates for title match: %w", err)
	}
	defer rows.Close()

	var out []*Paper
	for rows.Next() {
		p, err := s.scanPaperRowFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ChunksByPaper returns every Chunk of paperID in chunk_index order, for
// callers (the entity extractor, the reconciler) that need chunk ids after
// InsertPaper has committed.
func (s *Service) ChunksByPaper(ctx context.Context, paperID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, paper_id, chunk_index, section_type, section_heading, content,
			token_count, page_number, embedding_status, created_at
		FROM chunk WHERE paper_id = ? ORDER BY chunk_index
	`, paperID)
	if err != nil {
		return nil, fmt.Errorf("document: chunks by paper: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var sectionType, status string
		if err := rows.Scan(&c.ID, &c.PaperID, &c.ChunkIndex, &sectionType, &c.SectionHeading, &c.Content,
			&c.TokenCount, &c.PageNumber, &status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("document: scan chunk: %w", err)
		}
		c.SectionType = SectionType(sectionType)
		c.EmbeddingStatus = EmbeddingStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

func hammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

func (s *Service) scanPaperRow(row *sql.Row) (*Paper, error) {
	var p Paper
	var parseStatus string
	if err := row.Scan(&p.ID, &p.DOI, &p.PubMedID, &p.PMCID, &p.Title, &p.Abstract, &p.AuthorsJSON,
		&p.Journal, &p.PublishedAt, &p.Source, &p.RetrievalTier, &parseStatus, &p.AbstractSimhash,
		&p.IngestedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("document: scan paper: %w", err)
	}
	p.ParseStatus = ParseStatus(parseStatus)
	return &p, nil
}

func (s *Service) scanPaperRowFromRows(rows *sql.Rows) (*Paper, error) {
	var p Paper
	var parseStatus string
	if err := rows.Scan(&p.ID, &p.DOI, &p.PubMedID, &p.PMCID, &p.Title, &p.Abstract, &p.AuthorsJSON,
		&p.Journal, &p.PublishedAt, &p.Source, &p.RetrievalTier, &parseStatus, &p.AbstractSimhash,
		&p.IngestedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("document: scan paper row: %w", err)
	}
	p.ParseStatus = ParseStatus(parseStatus)
	return &p, nil
}
