package graph

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oncotarget/engine/internal/infra/eventbus"
	"github.com/oncotarget/engine/pkg/uuid"
)

// RecomputeTopic is the eventbus topic the Scoring Engine subscribes to for
// KG-driven recompute triggers (§4.5 "Update propagation").
const RecomputeTopic = "kg.recompute"

// RecomputeEvent is published whenever a (gene, cancer) pair's transitively
// dependent aggregate confidence shifts enough to warrant rescoring.
type RecomputeEvent struct {
	GeneEntityID   string
	CancerEntityID string
	Reason         string
}

// Service implements the Knowledge Graph's append-only Fact store,
// noisy-OR aggregation, and conflict log (§4.5).
type Service struct {
	db  *sql.DB
	bus *eventbus.Bus
}

// NewService creates a graph Service. bus may be nil if recompute
// propagation is not needed (e.g. in tests exercising insert/aggregate only).
func NewService(db *sql.DB, bus *eventbus.Bus) *Service {
	return &Service{db: db, bus: bus}
}

// Insert computes confidence from the evidence type, base weight, and
// modifiers (§4.5), appends the Fact row, detects conflicts against
// existing valid facts on the same (subject, object) axis, and — if the
// resulting aggregate shifted by more than the propagation threshold —
// enqueues a coalesced recompute request for any (gene, cancer) pair the
// triple directly names.
func (s *Service) Insert(ctx context.Context, in InsertInput) (*Fact, error) {
	confidence, weight := computeConfidence(in.EvidenceType, in.Modifiers, in.Source.SampleSize)

	before, err := s.Aggregate(ctx, in.SubjectEntityID, in.Predicate, in.ObjectEntityID)
	if err != nil {
		return nil, fmt.Errorf("graph: pre-insert aggregate: %w", err)
	}

	fact := &Fact{
		ID:              uuid.NewV7().String(),
		SubjectEntityID: in.SubjectEntityID,
		Predicate:       in.Predicate,
		ObjectEntityID:  in.ObjectEntityID,
		Confidence:      confidence,
		EvidenceType:    in.EvidenceType,
		EvidenceWeight:  weight,
		Source:          in.Source,
		ValidFrom:       time.Now().UTC(),
	}

	opposing, err := s.opposingFacts(ctx, in.SubjectEntityID, in.ObjectEntityID, in.Predicate, confidence)
	if err != nil {
		return nil, fmt.Errorf("graph: opposing facts lookup: %w", err)
	}
	if len(opposing) > 0 {
		fact.ContradictionFlag = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertFactTx(ctx, tx, fact); err != nil {
		return nil, err
	}

	for _, o := range opposing {
		if err := insertConflictTx(ctx, tx, fact, o); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("graph: commit: %w", err)
	}

	after, err := s.Aggregate(ctx, in.SubjectEntityID, in.Predicate, in.ObjectEntityID)
	if err != nil {
		return fact, fmt.Errorf("graph: post-insert aggregate: %w", err)
	}

	if diff := absFloat(after.AggregateConfidence - before.AggregateConfidence); diff > recomputeDeltaThreshold {
		s.enqueueRecomputeForTriple(ctx, in)
	}

	return fact, nil
}

func insertFactTx(ctx context.Context, tx *sql.Tx, f *Fact) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fact (
			id, subject_entity_id, predicate, object_entity_id, confidence,
			evidence_type, evidence_weight, source_pmid, source_doi, source_db,
			sample_size, study_type, contradiction_flag, valid_from, valid_until
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, f.ID, f.SubjectEntityID, f.Predicate, f.ObjectEntityID, f.Confidence,
		string(f.EvidenceType), f.EvidenceWeight, f.Source.PMID, f.Source.DOI,
		f.Source.SourceDB, f.Source.SampleSize, f.Source.StudyType,
		boolToInt(f.ContradictionFlag), f.ValidFrom,
	)
	if err != nil {
		return fmt.Errorf("graph: insert fact: %w", err)
	}
	return nil
}

func insertConflictTx(ctx context.Context, tx *sql.Tx, newFact *Fact, old Fact) error {
	net := absFloat(newFact.Confidence - old.Confidence)
	conflictType := "disagreement"
	if signOf(old.Predicate, newFact.Predicate) == -1 {
		conflictType = "opposing_directionality"
	}

	resolution := classifyDispute(net)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO conflict (id, fact_id_a, fact_id_b, conflict_type, net_confidence, resolution, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewV7().String(), newFact.ID, old.ID, conflictType, net, string(resolution), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("graph: insert conflict: %w", err)
	}
	return nil
}

// signOf is a small helper comparing the axis direction of two predicates
// relative to each other — used purely to label the conflict_type.
func signOf(a, b string) int {
	_, signA := predicateAxis(a)
	_, signB := predicateAxis(b)
	if signA == signB {
		return 1
	}
	return -1
}

func classifyDispute(net float64) Resolution {
	switch {
	case net < disputedThreshold:
		return ResolutionDisputed
	case net >= resolvedThreshold:
		return ResolutionResolved
	default:
		return ResolutionUnresolved
	}
}

// opposingFacts returns every valid fact sharing (subject, object) whose
// predicate is on the opposite axis direction from predicate, or the same
// predicate with a confidence delta large enough to qualify as a
// disagreement (§4.5 Conflict definition). newConfidence is the confidence
// of the fact being inserted, needed to evaluate the same-direction case.
func (s *Service) opposingFacts(ctx context.Context, subjectID, objectID, predicate string, newConfidence float64) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_entity_id, predicate, object_entity_id, confidence,
		       evidence_type, evidence_weight, source_pmid, source_doi, source_db,
		       sample_size, study_type, contradiction_flag, valid_from, valid_until
		FROM fact
		WHERE subject_entity_id = ? AND object_entity_id = ? AND valid_until IS NULL
	`, subjectID, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	axis, sign := predicateAxis(predicate)
	var out []Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		otherAxis, otherSign := predicateAxis(f.Predicate)
		if otherAxis != axis {
			continue
		}
		if otherSign != sign {
			out = append(out, f)
			continue
		}
		// Same direction: flag as a disagreement only if both confidences
		// exceed the floor and the delta between them exceeds the threshold.
		if f.Confidence > sameDirectionConfidenceFloor && newConfidence > sameDirectionConfidenceFloor &&
			absFloat(f.Confidence-newConfidence) > sameDirectionDeltaThreshold {
			out = append(out, f)
		}
	}
	return out, rows.Err()
}

// Aggregate computes the noisy-OR aggregate confidence for the exact
// (subject, predicate, object) triple, folding in opposing-direction
// evidence per the contradiction-handling rule (§4.5).
func (s *Service) Aggregate(ctx context.Context, subjectID, predicate, objectID string) (AggregateResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT predicate, confidence FROM fact
		WHERE subject_entity_id = ? AND object_entity_id = ? AND valid_until IS NULL
	`, subjectID, objectID)
	if err != nil {
		return AggregateResult{}, fmt.Errorf("graph: aggregate query: %w", err)
	}
	defer rows.Close()

	axis, _ := predicateAxis(predicate)
	var agree, oppose []float64
	for rows.Next() {
		var p string
		var c float64
		if err := rows.Scan(&p, &c); err != nil {
			return AggregateResult{}, err
		}
		otherAxis, otherSign := predicateAxis(p)
		if otherAxis != axis {
			continue
		}
		if otherSign == 1 {
			agree = append(agree, c)
		} else {
			oppose = append(oppose, c)
		}
	}
	if err := rows.Err(); err != nil {
		return AggregateResult{}, err
	}

	result := AggregateResult{
		SubjectEntityID: subjectID,
		Predicate:       predicate,
		ObjectEntityID:  objectID,
		FactCount:       len(agree) + len(oppose),
	}

	if len(oppose) == 0 {
		result.AggregateConfidence = noisyOR(agree)
		return result, nil
	}

	net := absFloat(sumFloat(agree) - sumFloat(oppose))
	result.ContradictionFlag = true
	result.AggregateConfidence = net * contradictionDamping
	result.Disputed = net < disputedThreshold
	return result, nil
}

// enqueueRecomputeForTriple coalesces a recompute request for the
// (gene, cancer) pair a triple directly names — when the subject/object
// pair is itself a (Gene, CancerType) edge (e.g. mutated_in). Triples that
// don't directly name a cancer type are not enqueued here; cohort-wide
// scoring runs (adapter releases, operator requests) cover them instead.
func (s *Service) enqueueRecomputeForTriple(ctx context.Context, in InsertInput) {
	geneID, cancerID, ok := s.genecancerPair(ctx, in.SubjectEntityID, in.ObjectEntityID)
	if !ok {
		return
	}
	if err := s.EnqueueRecompute(ctx, geneID, cancerID, "kg_insert:"+in.Predicate); err != nil {
		return
	}
	if s.bus != nil {
		s.bus.Publish(RecomputeTopic, RecomputeEvent{GeneEntityID: geneID, CancerEntityID: cancerID, Reason: in.Predicate})
	}
}

func (s *Service) genecancerPair(ctx context.Context, a, b string) (gene, cancer string, ok bool) {
	typeA, errA := s.entityType(ctx, a)
	typeB, errB := s.entityType(ctx, b)
	if errA != nil || errB != nil {
		return "", "", false
	}
	switch {
	case typeA == "Gene" && typeB == "CancerType":
		return a, b, true
	case typeA == "CancerType" && typeB == "Gene":
		return b, a, true
	default:
		return "", "", false
	}
}

func (s *Service) entityType(ctx context.Context, id string) (string, error) {
	var t string
	err := s.db.QueryRowContext(ctx, `SELECT entity_type FROM entity WHERE id = ?`, id).Scan(&t)
	return t, err
}

// EnqueueRecompute inserts or refreshes the single pending recompute row
// for (geneID, cancerID) — "at most one pending request per pair"
// (§4.5 coalescing).
func (s *Service) EnqueueRecompute(ctx context.Context, geneID, cancerID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recompute_queue (gene_entity_id, cancer_entity_id, reason, enqueued_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (gene_entity_id, cancer_entity_id)
		DO UPDATE SET reason = excluded.reason, enqueued_at = excluded.enqueued_at
	`, geneID, cancerID, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("graph: enqueue recompute: %w", err)
	}
	return nil
}

// PendingRecompute is one coalesced (gene, cancer) recompute request.
type PendingRecompute struct {
	GeneEntityID   string
	CancerEntityID string
	Reason         string
	EnqueuedAt     time.Time
}

// DrainRecompute atomically pops up to limit pending recompute requests —
// drained asynchronously by the Scoring Engine (§4.5).
func (s *Service) DrainRecompute(ctx context.Context, limit int) ([]PendingRecompute, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: begin drain tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT gene_entity_id, cancer_entity_id, reason, enqueued_at
		FROM recompute_queue ORDER BY enqueued_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("graph: drain query: %w", err)
	}

	var out []PendingRecompute
	for rows.Next() {
		var p PendingRecompute
		if err := rows.Scan(&p.GeneEntityID, &p.CancerEntityID, &p.Reason, &p.EnqueuedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range out {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recompute_queue WHERE gene_entity_id = ? AND cancer_entity_id = ?`,
			p.GeneEntityID, p.CancerEntityID); err != nil {
			return nil, fmt.Errorf("graph: drain delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("graph: commit drain: %w", err)
	}
	return out, nil
}

// Supersede sets valid_until on an existing fact and appends a new one in
// its place — used for retraction/deprecation (§4.5 Supersession). The old
// fact's valid_until may only be assigned once; a second call returns
// ErrAlreadySuperseded.
func (s *Service) Supersede(ctx context.Context, oldFactID string, replacement InsertInput) (*Fact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: begin supersede tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var validUntil sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT valid_until FROM fact WHERE id = ?`, oldFactID).Scan(&validUntil); err != nil {
		return nil, fmt.Errorf("graph: lookup fact: %w", err)
	}
	if validUntil.Valid {
		return nil, ErrAlreadySuperseded
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE fact SET valid_until = ? WHERE id = ?`, now, oldFactID); err != nil {
		return nil, fmt.Errorf("graph: set valid_until: %w", err)
	}

	confidence, weight := computeConfidence(replacement.EvidenceType, replacement.Modifiers, replacement.Source.SampleSize)
	fact := &Fact{
		ID:              uuid.NewV7().String(),
		SubjectEntityID: replacement.SubjectEntityID,
		Predicate:       replacement.Predicate,
		ObjectEntityID:  replacement.ObjectEntityID,
		Confidence:      confidence,
		EvidenceType:    replacement.EvidenceType,
		EvidenceWeight:  weight,
		Source:          replacement.Source,
		ValidFrom:       now,
	}
	if err := insertFactTx(ctx, tx, fact); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("graph: commit supersede: %w", err)
	}

	s.enqueueRecomputeForTriple(ctx, replacement)
	return fact, nil
}

func scanFact(rows *sql.Rows) (Fact, error) {
	var f Fact
	var evidenceType string
	var contradiction int
	var validUntil sql.NullTime
	if err := rows.Scan(&f.ID, &f.SubjectEntityID, &f.Predicate, &f.ObjectEntityID, &f.Confidence,
		&evidenceType, &f.EvidenceWeight, &f.Source.PMID, &f.Source.DOI, &f.Source.SourceDB,
		&f.Source.SampleSize, &f.Source.StudyType, &contradiction, &f.ValidFrom, &validUntil); err != nil {
		return Fact{}, fmt.Errorf("graph: scan fact: %w", err)
	}
	f.EvidenceType = EvidenceType(evidenceType)
	f.ContradictionFlag = contradiction != 0
	if validUntil.Valid {
		t := validUntil.Time
		f.ValidUntil = &t
	}
	return f, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func sumFloat(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
