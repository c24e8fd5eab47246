// Package entitycatalog maintains canonical biomedical entities — genes,
// mutations, cancer types, compounds, pathways, structures, cell lines, and
// diseases — along with alias-to-canonical and notation-family resolution.
// It is the single source of truth other components reference by entity id.
package entitycatalog

import (
	"encoding/json"
	"time"
)

// EntityType enumerates the catalog's tagged entity kinds.
type EntityType string

const (
	EntityGene       EntityType = "Gene"
	EntityMutation   EntityType = "Mutation"
	EntityCancerType EntityType = "CancerType"
	EntityCompound   EntityType = "Compound"
	EntityPathway    EntityType = "Pathway"
	EntityStructure  EntityType = "Structure"
	EntityCellLine   EntityType = "CellLine"
	EntityDisease    EntityType = "Disease"
)

// Entity is a canonical biomedical entity.
type Entity struct {
	ID              string
	EntityType      EntityType
	CanonicalID     string
	Name            string
	Aliases         []string
	ExternalIDs     map[string]string
	Embedding       []float32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AmbiguousSymbolError is returned by resolve when a symbol collides with
// more than one candidate entity and the catalog defers disambiguation to
// the caller (§4.1 failure mode).
type AmbiguousSymbolError struct {
	Text       string
	Candidates []*Entity
}

func (e *AmbiguousSymbolError) Error() string {
	return "entitycatalog: ambiguous symbol " + e.Text
}

// shortSymbolCollisions lists gene-style short symbols known to collide with
// common English words (§4.1). Mentions of these symbols require contextual
// co-occurrence evidence before being emitted by the extractor.
var shortSymbolCollisions = map[string]bool{
	"CAT": true, "SET": true, "MAX": true, "FOR": true, "AND": true,
	"ALL": true, "ONE": true, "TWO": true, "CAN": true, "WAS": true,
}

// IsCollisionProne reports whether text is a short symbol known to collide
// with common English words.
func IsCollisionProne(text string) bool {
	return shortSymbolCollisions[text]
}

func marshalAliases(aliases []string) ([]byte, error) {
	if aliases == nil {
		aliases = []string{}
	}
	return json.Marshal(aliases)
}

func marshalExternalIDs(ids map[string]string) ([]byte, error) {
	if ids == nil {
		ids = map[string]string{}
	}
	return json.Marshal(ids)
}

func marshalEmbedding(vec []float32) ([]byte, error) {
	if vec == nil {
		return []byte("null"), nil
	}
	return json.Marshal(vec)
}
