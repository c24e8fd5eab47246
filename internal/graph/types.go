// Package graph owns the append-only Fact store, noisy-OR evidence
// aggregation, conflict detection, and supersession (§4.5). No other
// component writes a Fact or Conflict row. Facts are never mutated;
// supersession appends a new row and assigns valid_until on the superseded
// one.
package graph

import "time"

// EvidenceType enumerates the controlled evidence-type vocabulary (§3).
type EvidenceType string

const (
	EvidenceExperimentalInVivo   EvidenceType = "experimental_in_vivo"
	EvidenceExperimentalInVitro  EvidenceType = "experimental_in_vitro"
	EvidenceClinicalTrialPhase12 EvidenceType = "clinical_trial_phase_1_2"
	EvidenceClinicalTrialPhase3  EvidenceType = "clinical_trial_phase_3_plus"
	EvidenceComputationalML      EvidenceType = "computational_ml"
	EvidenceComputationalRule    EvidenceType = "computational_rule"
	EvidenceTextMined            EvidenceType = "text_mined"
	EvidenceDatabaseAssertion    EvidenceType = "database_assertion"
	EvidenceRetraction           EvidenceType = "retraction"
)

// Resolution enumerates a Conflict's resolution state.
type Resolution string

const (
	ResolutionUnresolved   Resolution = "unresolved"
	ResolutionDisputed     Resolution = "disputed"
	ResolutionResolved     Resolution = "resolved"
	ResolutionManualReview Resolution = "manual_review"
)

// Source carries provenance for a Fact: a pmid/doi/source_db reference plus
// the study metadata the confidence modifiers key off of (§4.5).
type Source struct {
	PMID       *string
	DOI        *string
	SourceDB   *string
	SampleSize *int
	StudyType  *string
}

// Modifiers are the boolean conditions that multiplicatively adjust a
// Fact's base evidence weight at insert time (§4.5 table).
type Modifiers struct {
	Replicated     bool // replicated in >= 2 independent studies
	HighImpact     bool
	PreprintOnly   bool
	CellLineOnly   bool // no in vivo confirmation
	Retracted      bool
}

// Fact is a single, immutable subject-predicate-object evidence row.
type Fact struct {
	ID               string
	SubjectEntityID  string
	Predicate        string
	ObjectEntityID   string
	Confidence       float64
	EvidenceType     EvidenceType
	EvidenceWeight   float64
	Source           Source
	ContradictionFlag bool
	ValidFrom        time.Time
	ValidUntil       *time.Time
}

// InsertInput is the candidate fact passed to Insert before confidence is
// computed.
type InsertInput struct {
	SubjectEntityID string
	Predicate       string
	ObjectEntityID  string
	EvidenceType    EvidenceType
	Source          Source
	Modifiers       Modifiers
}

// Conflict is a pair of Facts sharing (subject, predicate, object) with
// opposing directionality or a confidence delta exceeding the threshold
// (§4.5).
type Conflict struct {
	ID            string
	FactIDA       string
	FactIDB       string
	ConflictType  string
	NetConfidence float64
	Resolution    Resolution
	DetectedAt    time.Time
}

// AggregateResult is the noisy-OR aggregate confidence for a
// (subject, predicate, object) triple, plus its dispute classification.
type AggregateResult struct {
	SubjectEntityID    string
	Predicate          string
	ObjectEntityID     string
	AggregateConfidence float64
	ContradictionFlag  bool
	Disputed           bool
	FactCount          int
}

// baseWeights is the fixed per-evidence-type base weight table (§4.5).
var baseWeights = map[EvidenceType]float64{
	EvidenceExperimentalInVivo:   1.00,
	EvidenceExperimentalInVitro:  0.85,
	EvidenceClinicalTrialPhase3:  1.00,
	EvidenceClinicalTrialPhase12: 0.75,
	EvidenceComputationalML:      0.50,
	EvidenceComputationalRule:    0.35,
	EvidenceTextMined:            0.30,
	EvidenceDatabaseAssertion:    0.40,
	EvidenceRetraction:           0.00,
}

// BaseWeight returns the fixed base weight for an evidence type.
func BaseWeight(t EvidenceType) float64 {
	return baseWeights[t]
}

// recomputeDeltaThreshold is the aggregate-confidence shift (§4.5: "shifts
// by > 0.05") that triggers a score-recomputation enqueue.
const recomputeDeltaThreshold = 0.05

// disputedThreshold / resolvedThreshold classify a contradictory triple
// (§4.5: "If net < 0.30 ... DISPUTED ...; >= 0.60, dominant direction
// prevails ...; otherwise SURFACED-WITH-FLAG").
const (
	disputedThreshold    = 0.30
	resolvedThreshold    = 0.60
	contradictionDamping = 0.7
)

// sameDirectionConfidenceFloor / sameDirectionDeltaThreshold gate the
// same-predicate-axis disagreement check (§3: "delta > 0.4 when both >
// 0.6"): two same-direction facts only count as disagreeing evidence if
// both clear the floor and their confidences diverge by more than the
// threshold.
const (
	sameDirectionConfidenceFloor = 0.6
	sameDirectionDeltaThreshold  = 0.4
)
