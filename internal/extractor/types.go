// Package extractor produces EntityMentions from Chunks via a deterministic
// Aho-Corasick multi-pattern automaton over the Entity Catalog's alias
// strings, supplemented by whole-token mutation-notation matches that are
// resolved through the catalog's notation-variant index (§4.4). The
// abbreviation gazetteer in gazetteer.go is not used on the extraction
// path. Failure in entity lookup is silent: the mention is stored
// unnormalized for later reprocessing.
package extractor

import "time"

// Mention is a single EntityMention produced by scanning a Chunk.
type Mention struct {
	ID                  string
	ChunkID             string
	MentionText         string
	CharStart           int
	CharEnd             int
	EntityType          string
	NormalizedEntityID  *string
	NormalizationSource *string
	ExtractorConfidence float64
	ExtractorTag        string
	CreatedAt           time.Time
}

// Candidate is one alias pattern the automaton scans for, carrying the
// entity it resolves to.
type Candidate struct {
	EntityID   string
	EntityType string
	CanonicalText string
}

const (
	TagDictionary  = "dictionary_match"
	TagGazetteer   = "gazetteer_match"
	TagHGVSNormal  = "hgvs_normalized"

	// NormalizationSourceCatalog records that a mention's normalized_id was
	// resolved straight from a dictionary match in the catalog.
	NormalizationSourceCatalog = "entity_catalog"
)

// contextWindow is the character radius used by the ambiguous-short-symbol
// guard (§4.1): a collision-prone symbol's mention is only emitted if
// another biomedical entity mention falls within this many characters.
const contextWindow = 80
