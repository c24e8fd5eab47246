package entitycatalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oncotarget/engine/pkg/uuid"
)

// Service implements the Entity Catalog's register/resolve/subtree
// operations against the entity, entity_alias, and oncotree_node tables.
type Service struct {
	db *sql.DB
}

// NewService creates a catalog service backed by db.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// RegisterOrGet is idempotent by (canonical_id, entity_type): if a matching
// entity already exists its id is returned unchanged, otherwise a new row
// (plus alias index rows) is inserted inside one transaction.
func (s *Service) RegisterOrGet(ctx context.Context, entityType EntityType, canonicalID, name string, aliases []string, externalIDs map[string]string) (string, error) {
	if existing, err := s.lookupCanonical(ctx, entityType, canonicalID); err == nil {
		return existing, nil
	} else if err != sql.ErrNoRows {
		return "", fmt.Errorf("entitycatalog: lookup canonical: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("entitycatalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Re-check inside the transaction to serialize concurrent registrations
	// of the same canonical id (§5: "writers serialize per-entity on insert
	// to prevent duplicate canonical rows").
	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM entity WHERE canonical_id = ? AND entity_type = ?`,
		canonicalID, string(entityType),
	).Scan(&existing)
	if err == nil {
		return existing, tx.Commit()
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("entitycatalog: recheck canonical: %w", err)
	}

	id := uuid.NewV7().String()
	aliasJSON, err := marshalAliases(aliases)
	if err != nil {
		return "", err
	}
	extJSON, err := marshalExternalIDs(externalIDs)
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entity (id, entity_type, canonical_id, name, aliases_json, external_ids_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, string(entityType), canonicalID, name, string(aliasJSON), string(extJSON)); err != nil {
		return "", fmt.Errorf("entitycatalog: insert entity: %w", err)
	}

	allAliases := map[string]bool{name: true}
	for _, a := range aliases {
		allAliases[a] = true
	}
	if entityType == EntityMutation {
		for a := range allAliases {
			for _, v := range mutationNotationVariants(a) {
				allAliases[v] = true
			}
		}
	}

	for alias := range allAliases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entity_alias (entity_id, alias, alias_norm) VALUES (?, ?, ?)
			ON CONFLICT (entity_id, alias) DO NOTHING
		`, id, alias, normalizeAlias(alias)); err != nil {
			return "", fmt.Errorf("entitycatalog: insert alias: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("entitycatalog: commit: %w", err)
	}
	return id, nil
}

func (s *Service) lookupCanonical(ctx context.Context, entityType EntityType, canonicalID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM entity WHERE canonical_id = ? AND entity_type = ?`,
		canonicalID, string(entityType),
	).Scan(&id)
	return id, err
}

// Resolve performs case-insensitive matching of text against name ∪ aliases
// for the given entity type. It returns ErrNotFound when there is no match,
// the single matching id when there is exactly one, or an
// AmbiguousSymbolError listing every candidate when more than one alias row
// resolves to a different entity (§4.1 failure mode: resolver defers).
func (s *Service) Resolve(ctx context.Context, entityType EntityType, text string) (string, error) {
	norm := normalizeAlias(text)

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT e.id, e.entity_type, e.canonical_id, e.name, e.aliases_json, e.external_ids_json
		FROM entity_alias a
		JOIN entity e ON e.id = a.entity_id
		WHERE a.alias_norm = ? AND e.entity_type = ?
	`, norm, string(entityType))
	if err != nil {
		return "", fmt.Errorf("entitycatalog: resolve query: %w", err)
	}
	defer rows.Close()

	var candidates []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return "", err
		}
		candidates = append(candidates, e)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(candidates) {
	case 0:
		return "", ErrNotFound
	case 1:
		return candidates[0].ID, nil
	default:
		return "", &AmbiguousSymbolError{Text: text, Candidates: candidates}
	}
}

// ErrNotFound indicates resolve found no matching entity.
var ErrNotFound = fmt.Errorf("entitycatalog: entity not found")

// CancerSubtree returns the OncoTree codes of every node transitively
// descended from oncotreeCode, including the node itself.
func (s *Service) CancerSubtree(ctx context.Context, oncotreeCode string) ([]string, error) {
	children := map[string][]string{}
	rows, err := s.db.QueryContext(ctx, `SELECT code, parent_code FROM oncotree_node`)
	if err != nil {
		return nil, fmt.Errorf("entitycatalog: load oncotree: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var parent sql.NullString
		if err := rows.Scan(&code, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			children[parent.String] = append(children[parent.String], code)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	var walk func(code string)
	seen := map[string]bool{}
	walk = func(code string) {
		if seen[code] {
			return
		}
		seen[code] = true
		out = append(out, code)
		for _, child := range children[code] {
			walk(child)
		}
	}
	walk(oncotreeCode)
	return out, nil
}

func scanEntity(rows *sql.Rows) (*Entity, error) {
	var e Entity
	var entityType, aliasJSON, extJSON string
	if err := rows.Scan(&e.ID, &entityType, &e.CanonicalID, &e.Name, &aliasJSON, &extJSON); err != nil {
		return nil, fmt.Errorf("entitycatalog: scan entity: %w", err)
	}
	e.EntityType = EntityType(entityType)
	_ = json.Unmarshal([]byte(aliasJSON), &e.Aliases)
	_ = json.Unmarshal([]byte(extJSON), &e.ExternalIDs)
	return &e, nil
}
