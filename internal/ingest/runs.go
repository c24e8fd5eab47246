package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oncotarget/engine/pkg/uuid"
)

// Service tracks DiscoveryRequests against the discovery_run table, giving
// callers a run id to poll with RunStatus while Pipeline.Run executes in the
// background (§6: "DiscoveryRequest ... → discovery run id" /
// "run_status(id)").
type Service struct {
	db       *sql.DB
	pipeline *Pipeline
}

// NewService builds a run-tracking Service around pipeline.
func NewService(db *sql.DB, pipeline *Pipeline) *Service {
	return &Service{db: db, pipeline: pipeline}
}

// StartRun records a new discovery_run row and launches the pipeline
// asynchronously, returning the run id immediately.
func (s *Service) StartRun(ctx context.Context, req DiscoveryRequest) (string, error) {
	runID := uuid.NewV7().String()
	now := time.Now().UTC()

	aliasesJSON, err := json.Marshal(req.Aliases)
	if err != nil {
		return "", fmt.Errorf("ingest: marshal aliases: %w", err)
	}
	sourcesJSON, err := json.Marshal(req.Sources)
	if err != nil {
		return "", fmt.Errorf("ingest: marshal sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO discovery_run (
			id, gene, mutation, cancer, aliases_json, date_from, date_to,
			max_results, sources_json, stage, count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, runID, req.Gene, req.Mutation, req.Cancer, string(aliasesJSON), req.DateFrom, req.DateTo,
		req.MaxResults, string(sourcesJSON), string(StageSearch), now, now)
	if err != nil {
		return "", fmt.Errorf("ingest: insert discovery run: %w", err)
	}

	go s.runAsync(runID, req)
	return runID, nil
}

// runAsync executes the pipeline, recording the upsert stage before it
// starts and complete or error when it returns; the chunk, embed and ner
// stages are not recorded for a run. It runs detached from the caller's request context — a
// discovery run outlives the HTTP request that started it.
func (s *Service) runAsync(runID string, req DiscoveryRequest) {
	ctx := context.Background()
	_ = s.setStage(ctx, runID, StageUpsert, 0, "")

	outcomes, decisions, err := s.pipeline.Run(ctx, req)
	if err != nil {
		_ = s.setStage(ctx, runID, StageError, 0, err.Error())
		return
	}

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}

	message := fmt.Sprintf("%d indexed, %d failed, %d deduplicated", succeeded, failed, len(decisions))
	_ = s.setStage(ctx, runID, StageComplete, succeeded, message)
}

func (s *Service) setStage(ctx context.Context, runID string, stage Stage, count int, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE discovery_run SET stage = ?, count = ?, message = ?, updated_at = ? WHERE id = ?
	`, string(stage), count, nullIfEmpty(message), time.Now().UTC(), runID)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RunStatus returns the current stage/count/message for a discovery run
// (§6: run_status(id)).
func (s *Service) RunStatus(ctx context.Context, runID string) (RunStatus, error) {
	var rs RunStatus
	var stage string
	var message sql.NullString
	rs.ID = runID
	err := s.db.QueryRowContext(ctx, `SELECT stage, count, message FROM discovery_run WHERE id = ?`, runID).
		Scan(&stage, &rs.Count, &message)
	if err == sql.ErrNoRows {
		return RunStatus{}, fmt.Errorf("ingest: no discovery run %q", runID)
	}
	if err != nil {
		return RunStatus{}, fmt.Errorf("ingest: run status: %w", err)
	}
	rs.Stage = Stage(stage)
	rs.Message = message.String
	return rs, nil
}
