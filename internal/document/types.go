// Package document owns Papers and Chunks: atomic paper+chunk insertion, the
// FTS5 lexical index, the HNSW vector index, and hybrid search over both
// (§4.2). No other component writes to these tables.
package document

import "time"

// ParseStatus tracks the outcome of Stage 4 (Parse) for a Paper.
type ParseStatus string

const (
	ParseStatusPending ParseStatus = "pending"
	ParseStatusParsed  ParseStatus = "parsed"
	ParseStatusFailed  ParseStatus = "failed"
)

// SectionType enumerates the canonical chunk section kinds.
type SectionType string

const (
	SectionAbstract      SectionType = "Abstract"
	SectionIntroduction  SectionType = "Introduction"
	SectionMethods       SectionType = "Methods"
	SectionResults       SectionType = "Results"
	SectionDiscussion    SectionType = "Discussion"
	SectionConclusion    SectionType = "Conclusion"
	SectionTable         SectionType = "Table"
	SectionFigureCaption SectionType = "FigureCaption"
	SectionSupplementary SectionType = "Supplementary"
	SectionOther         SectionType = "Other"
)

// EmbeddingStatus tracks a Chunk's progress through the embedding pipeline.
type EmbeddingStatus string

const (
	EmbeddingStatusPending  EmbeddingStatus = "pending"
	EmbeddingStatusEmbedded EmbeddingStatus = "embedded"
	EmbeddingStatusFailed   EmbeddingStatus = "failed"
)

// Paper is a single ingested publication.
type Paper struct {
	ID              string
	DOI             *string
	PubMedID        *string
	PMCID           *string
	Title           string
	Abstract        *string
	AuthorsJSON     string
	Journal         *string
	PublishedAt     *time.Time
	Source          string
	RetrievalTier   int
	ParseStatus     ParseStatus
	AbstractSimhash *uint64
	RawPayload      []byte
	IngestedAt      time.Time
	UpdatedAt       time.Time
}

// Chunk is an ordered content element of a Paper.
type Chunk struct {
	ID              string
	PaperID         string
	ChunkIndex      int
	SectionType     SectionType
	SectionHeading  *string
	Content         string
	TokenCount      int
	PageNumber      *int
	Embedding       []float32
	EmbeddingStatus EmbeddingStatus
	CreatedAt       time.Time
}

// SearchResult is one ranked hit from Search.
type SearchResult struct {
	ChunkID    string
	PaperID    string
	FusedScore float64
	Snippet    string
}
