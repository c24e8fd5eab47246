// Package config provides the process-wide configuration snapshot. It is
// loaded once at startup and held immutable thereafter — components take a
// reference to the returned Config rather than re-reading the environment
// (the only process-wide singleton the system carries, per design).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LLMMode governs narration routing for the (externally owned) narration
// layer. The core only threads this value through to the API surface.
type LLMMode string

const (
	LLMModeLocalOnly   LLMMode = "local_only"
	LLMModePreferLocal LLMMode = "prefer_local"
	LLMModeAny         LLMMode = "any"
)

// Config holds runtime configuration for the oncology target engine.
type Config struct {
	// Embedding / LLM
	LLMProvider       string  // LLM_PROVIDER — default: "ollama"
	OllamaBaseURL     string  // OLLAMA_BASE_URL
	EmbeddingModel    string  // EMBEDDING_MODEL
	EmbeddingDim      int     // EMBEDDING_DIMENSION — 768 or 1024, fixed at project init
	EmbeddingBatch    int     // EMBEDDING_BATCH_SIZE
	LLMMode           LLMMode // LLM_MODE

	// Pipeline
	PipelineParallelism int // PIPELINE_PARALLELISM — bounded worker pool size

	// Per-source adapter rate limits (requests per second), overridable via
	// the YAML overlay's rate_limits map.
	RateLimits map[string]float64

	// Scoring component weights, overridable via the YAML overlay's
	// scoring.weights map; subject to renormalization by the scoring engine.
	ScoringWeights map[string]float64

	// Feedback Controller target signal (Open Question (c) in SPEC_FULL.md).
	FeedbackTargetSignal string // "recall_at_n" | "binding_affinity_r"

	// DatabasePath is the SQLite file path (or ":memory:").
	DatabasePath string
	// Port is the HTTP listen port.
	Port string
}

const (
	envLLMProvider   = "LLM_PROVIDER"
	envOllamaBaseURL = "OLLAMA_BASE_URL"
	envEmbeddingModel = "EMBEDDING_MODEL"
	envEmbeddingDim  = "EMBEDDING_DIMENSION"
	envEmbeddingBatch = "EMBEDDING_BATCH_SIZE"
	envLLMMode       = "LLM_MODE"
	envParallelism   = "PIPELINE_PARALLELISM"
	envFeedbackSignal = "FEEDBACK_TARGET_SIGNAL"
	envDatabasePath  = "DATABASE_URL"
	envPort          = "PORT"
	envConfigOverlay = "CONFIG_FILE" // path to an optional YAML overlay
)

// defaultScoringWeights mirrors the nine-component table in SPEC_FULL.md §4.7.
func defaultScoringWeights() map[string]float64 {
	return map[string]float64{
		"mutation_frequency":      0.20,
		"dependency":              0.18,
		"survival_correlation":    0.15,
		"expression_specificity":  0.12,
		"structural_tractability": 0.12,
		"pocket_detectability":    0.08,
		"inhibitor_novelty":       0.07,
		"pathway_independence":    0.05,
		"literature_novelty":      0.03,
	}
}

func defaultRateLimits() map[string]float64 {
	return map[string]float64{
		"pubmed":          3,
		"europepmc":       5,
		"biorxiv":         2,
		"crossref":        5,
		"clinicaltrials":  2,
		"dependency_db":   2,
		"mutation_db":     2,
		"structure_db":    2,
	}
}

// overlay is the shape of the optional YAML config file (CONFIG_FILE env var).
type overlay struct {
	RateLimits map[string]float64 `yaml:"rate_limits"`
	Scoring    struct {
		Weights map[string]float64 `yaml:"weights"`
	} `yaml:"scoring"`
}

// Load reads configuration from environment variables (and an optional YAML
// overlay named by CONFIG_FILE), applying defaults for missing values.
func Load() Config {
	cfg := Config{
		LLMProvider:          envOr(envLLMProvider, "ollama"),
		OllamaBaseURL:        envOr(envOllamaBaseURL, "http://localhost:11434"),
		EmbeddingModel:       envOr(envEmbeddingModel, "nomic-embed-text"),
		EmbeddingDim:         envOrInt(envEmbeddingDim, 768),
		EmbeddingBatch:       envOrInt(envEmbeddingBatch, 32),
		LLMMode:              LLMMode(envOr(envLLMMode, string(LLMModePreferLocal))),
		PipelineParallelism:  envOrInt(envParallelism, 4),
		RateLimits:           defaultRateLimits(),
		ScoringWeights:       defaultScoringWeights(),
		FeedbackTargetSignal: envOr(envFeedbackSignal, "recall_at_n"),
		DatabasePath:         envOr(envDatabasePath, "./data/oncotarget.db"),
		Port:                 envOr(envPort, "8080"),
	}

	if path := os.Getenv(envConfigOverlay); path != "" {
		applyOverlay(&cfg, path)
	}

	return cfg
}

// applyOverlay merges a YAML overlay file into cfg, overriding only the keys
// it declares. Silently leaves cfg unchanged if the file is unreadable or
// malformed — the snapshot always boots with safe defaults.
func applyOverlay(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided config path
	if err != nil {
		return
	}
	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return
	}
	for k, v := range ov.RateLimits {
		cfg.RateLimits[k] = v
	}
	for k, v := range ov.Scoring.Weights {
		cfg.ScoringWeights[k] = v
	}
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envOrInt parses the environment variable key as an int, or returns fallback.
func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

// Validate checks invariants that must hold before the pipeline starts.
func (c Config) Validate() error {
	if c.EmbeddingDim != 768 && c.EmbeddingDim != 1024 {
		return fmt.Errorf("config: embedding_dimension must be 768 or 1024, got %d", c.EmbeddingDim)
	}
	sum := 0.0
	for _, w := range c.ScoringWeights {
		sum += w
	}
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("config: scoring weights must sum to ~1.0, got %f", sum)
	}
	return nil
}
