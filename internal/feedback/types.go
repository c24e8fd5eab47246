// Package feedback implements the periodic and event-driven metric
// collection (§4.8) and the Bayesian-bounded weight-update proposal
// algorithm. Proposals are never applied automatically: application
// requires an approval record from internal/approval.
package feedback

import "time"

// MetricName enumerates the collected feedback metrics (§4.8).
type MetricName string

const (
	MetricRecallAtN        MetricName = "recall_at_n"
	MetricPearsonR         MetricName = "pearson_r"
	MetricKendallTau       MetricName = "kendall_tau"
	MetricLiteratureRecall MetricName = "literature_recall"
)

// EventType distinguishes a scheduled run from one triggered by an adapter
// release.
type EventType string

const (
	EventTypeScheduled   EventType = "scheduled"
	EventTypeAdapterRelease EventType = "adapter_release"
)

// Event is one appended row in the FeedbackEvent log (§3).
type Event struct {
	ID             string
	EventType      EventType
	MetricName     MetricName
	MetricValue    float64
	GeneEntityID   *string
	CancerEntityID *string
	EvidenceSource *string
	RecordedAt     time.Time
}

// Proposal is a weight-update proposal awaiting human approval (§4.8).
type Proposal struct {
	ID                 string
	PreviousWeights    map[string]float64
	ProposedWeights    map[string]float64
	Trigger            string
	AlgorithmTag       string
	TriggeringMetrics  map[string]float64
	ProjectedImpact    ProjectedImpact
	ApprovalRequestID  *string
	CreatedAt          time.Time
}

// RankMove is one target's ranking position shift between the current
// weight vector and a proposed one.
type RankMove struct {
	GeneEntityID   string
	CancerEntityID string
	PreviousRank   int
	ProposedRank   int
}

// ProjectedImpact summarizes the proposal's estimated effect on the current
// ranking — every target moving >= 5 positions (§4.8 Human gate).
type ProjectedImpact struct {
	SignificantMoves []RankMove
}

// algorithmTag identifies the weight-update algorithm version for audit
// trails and the persisted weight_update/weight_update_proposal rows.
const algorithmTag = "bayesian_bounded_v1"

// Bayesian-bounded update algorithm constants (§4.8).
const (
	corrHighThreshold   = 0.30
	corrLowThreshold    = 0.10
	corrBoostFactor     = 0.05
	corrDecayFactor     = 0.95
	maxSingleWeightDelta = 0.05
	minWeight           = 0.01
	maxWeight           = 0.40
	significantRankMove = 5
)
