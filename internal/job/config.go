package job

import (
	"github.com/vncatalog/dedup-engine/internal/catalog/collapse"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

// Config tunes one Deduplicate run.
type Config struct {
	Mode model.JobMode

	// BatchSize is how many raw listings the batch loop reads per
	// iteration. Defaults to 500.
	BatchSize int

	// MinMatchScore floors the adaptive per-block clustering threshold
	// and the cross-source linking acceptance score. Defaults to 0.75.
	MinMatchScore float64

	// EmbeddingEnabled toggles the semantic-similarity feature; when
	// false, batches skip the Vectorizer call entirely and scoring runs
	// with Features.Semantic pinned at 0.
	EmbeddingEnabled bool

	// CrossSourceEnabled toggles phase 4 (cross-source linking).
	CrossSourceEnabled bool

	// StaleAfterHours is informational: how long a canonical's
	// aggregates may go unrefreshed before a monitoring job would flag
	// it. The engine itself does not act on this value.
	StaleAfterHours int

	// CheckpointEvery is how many batches elapse between Job row
	// checkpoints. Defaults to 5.
	CheckpointEvery int

	// CrossSourceConcurrency bounds the errgroup fan-out in phase 4.
	// Defaults to 8.
	CrossSourceConcurrency int

	// IntraSource tunes the intra-source duplicate predicate. Zero-valued
	// fields fall back to collapse.DefaultThresholds.
	IntraSource collapse.Thresholds
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = model.JobModeIncremental
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.MinMatchScore <= 0 {
		c.MinMatchScore = 0.75
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 5
	}
	if c.CrossSourceConcurrency <= 0 {
		c.CrossSourceConcurrency = 8
	}
	def := collapse.DefaultThresholds()
	if c.IntraSource.NameSimNear <= 0 {
		c.IntraSource.NameSimNear = def.NameSimNear
	}
	if c.IntraSource.NameSimHigh <= 0 {
		c.IntraSource.NameSimHigh = def.NameSimHigh
	}
	if c.IntraSource.PriceTol <= 0 {
		c.IntraSource.PriceTol = def.PriceTol
	}
	return c
}

// ProgressEvent is emitted at batch boundaries and phase transitions:
// job id, phase, product and batch counters, the source currently being
// worked, matching tallies, timing, and a bounded window of recent
// cross-source matches.
type ProgressEvent struct {
	JobID                    string
	Phase                    model.JobPhase
	TotalProducts            int
	ProcessedProducts        int
	CurrentSource            string
	SourcesProcessed         int
	TotalSources             int
	MatchesFound             int
	CanonicalCreated         int
	MappingsCreated          int
	TimeElapsedMs            int64
	EstimatedTimeRemainingMs int64
	CurrentBatch             int
	TotalBatches             int
	RecentMatches            []RecentMatch
	SourceBreakdown          map[string]model.SourceCounters
	Message                  string
}

// ProgressFunc receives ProgressEvents; nil is valid and silently ignored.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(e ProgressEvent) {
	if f != nil {
		f(e)
	}
}
