package extractor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oncotarget/engine/internal/entitycatalog"
	"github.com/oncotarget/engine/pkg/uuid"
)

// Service extracts EntityMentions from Chunk content using the dictionary
// automaton, then attempts to normalize each match against the catalog.
// Normalization failure is swallowed per §4.4: the mention is stored
// without a normalized_entity_id for later reprocessing.
type Service struct {
	db      *sql.DB
	catalog *entitycatalog.Service
	auto    *Automaton
}

// NewService builds a Service with an empty automaton. Rebuild loads the
// current candidate set from the catalog; callers call it before the first
// scan and again whenever new entities are registered.
func NewService(db *sql.DB, catalog *entitycatalog.Service) *Service {
	return &Service{db: db, catalog: catalog, auto: NewAutomaton(nil)}
}

// Rebuild reconstructs the automaton from the catalog's full alias set.
func (s *Service) Rebuild(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.entity_id, e.entity_type, a.alias
		FROM entity_alias a JOIN entity e ON e.id = a.entity_id
	`)
	if err != nil {
		return fmt.Errorf("extractor: load candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.EntityID, &c.EntityType, &c.CanonicalText); err != nil {
			return fmt.Errorf("extractor: scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.auto = NewAutomaton(candidates)
	return nil
}

// ExtractAndStore scans chunkText, applies the context guard, resolves each
// surviving match against the catalog, and persists one EntityMention row
// per match. It returns the stored mentions.
func (s *Service) ExtractAndStore(ctx context.Context, chunkID, chunkText string) ([]Mention, error) {
	raw := s.auto.Scan(chunkText)
	guarded := applyContextGuard(raw, entitycatalog.IsCollisionProne)
	guarded = appendMutationMentions(guarded, chunkText)

	mentions := make([]Mention, 0, len(guarded))
	for _, m := range guarded {
		mention, err := s.materializeMention(ctx, chunkID, m)
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, mention)
	}
	return mentions, nil
}

func (s *Service) materializeMention(ctx context.Context, chunkID string, m Match) (Mention, error) {
	now := time.Now().UTC()
	mention := Mention{
		ID:                  uuid.NewV7().String(),
		ChunkID:             chunkID,
		MentionText:         m.Text,
		CharStart:           m.Start,
		CharEnd:             m.End,
		EntityType:          m.Candidate.EntityType,
		ExtractorConfidence: 1.0,
		ExtractorTag:        TagDictionary,
		CreatedAt:           now,
	}
	if mention.EntityType == "" {
		mention.EntityType = "Mutation"
		mention.ExtractorTag = TagHGVSNormal
	}

	if m.Candidate.EntityID != "" {
		id := m.Candidate.EntityID
		mention.NormalizedEntityID = &id
		src := NormalizationSourceCatalog
		mention.NormalizationSource = &src
	} else if entityType := entitycatalog.EntityType(mention.EntityType); entityType == entitycatalog.EntityMutation {
		// No direct automaton hit — try resolving through the catalog's
		// notation-family index before giving up silently.
		if id, err := s.catalog.Resolve(ctx, entityType, m.Text); err == nil {
			mention.NormalizedEntityID = &id
			src := NormalizationSourceCatalog
			mention.NormalizationSource = &src
		} else if !errors.Is(err, entitycatalog.ErrNotFound) {
			var ambiguous *entitycatalog.AmbiguousSymbolError
			if !errors.As(err, &ambiguous) {
				// lookup failure (not just "not found" / "ambiguous") is
				// swallowed — mention stays unnormalized for reprocessing.
				_ = err
			}
		}
	}

	if err := s.insert(ctx, mention); err != nil {
		return Mention{}, err
	}
	return mention, nil
}

// appendMutationMentions adds whole-token matches for mutation notations the
// dictionary automaton would not find verbatim (catalog aliases are keyed
// by registered mutation text, but free text may use an equivalent
// notation the catalog has not yet indexed).
func appendMutationMentions(existing []Match, text string) []Match {
	covered := make([]bool, len(text))
	for _, m := range existing {
		for i := m.Start; i < m.End && i < len(text); i++ {
			covered[i] = true
		}
	}

	out := append([]Match{}, existing...)
	for _, tok := range tokenize(text) {
		if anyCovered(covered, tok.start, tok.end) {
			continue
		}
		if looksLikeMutation(tok.text) {
			out = append(out, Match{Start: tok.start, End: tok.end, Text: tok.text})
		}
	}
	return out
}

type token struct {
	text       string
	start, end int
}

func tokenize(text string) []token {
	var toks []token
	start := -1
	for i := 0; i <= len(text); i++ {
		isBoundary := i == len(text) || isTokenBoundary(text[i])
		if !isBoundary {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			toks = append(toks, token{text: text[start:i], start: start, end: i})
			start = -1
		}
	}
	return toks
}

func isTokenBoundary(b byte) bool {
	return strings.IndexByte(" \t\n\r,.;:()[]{}\"'", b) >= 0
}

func anyCovered(covered []bool, start, end int) bool {
	for i := start; i < end && i < len(covered); i++ {
		if covered[i] {
			return true
		}
	}
	return false
}

func (s *Service) insert(ctx context.Context, m Mention) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_mention (
			id, chunk_id, mention_text, char_start, char_end, entity_type,
			normalized_entity_id, normalization_source, extractor_confidence,
			extractor_tag, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ChunkID, m.MentionText, m.CharStart, m.CharEnd, m.EntityType,
		m.NormalizedEntityID, m.NormalizationSource, m.ExtractorConfidence,
		m.ExtractorTag, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("extractor: insert mention: %w", err)
	}
	return nil
}

// MentionsByChunk returns every mention recorded for chunkID.
func (s *Service) MentionsByChunk(ctx context.Context, chunkID string) ([]Mention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chunk_id, mention_text, char_start, char_end, entity_type,
		       normalized_entity_id, normalization_source, extractor_confidence,
		       extractor_tag, created_at
		FROM entity_mention WHERE chunk_id = ?
	`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("extractor: list mentions: %w", err)
	}
	defer rows.Close()

	var out []Mention
	for rows.Next() {
		var m Mention
		if err := rows.Scan(&m.ID, &m.ChunkID, &m.MentionText, &m.CharStart, &m.CharEnd,
			&m.EntityType, &m.NormalizedEntityID, &m.NormalizationSource,
			&m.ExtractorConfidence, &m.ExtractorTag, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("extractor: scan mention: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
