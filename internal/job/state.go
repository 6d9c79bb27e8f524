package job

import (
	"time"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

const recentMatchesCapacity = 10

// RecentMatch is one ring-buffer entry of recent cross-source match
// evidence, surfaced on ProgressEvent.RecentMatches for operators
// tailing a run. The buffer keeps the most recent ten.
type RecentMatch struct {
	Raw1  string
	Raw2  string
	Score float64
}

// state is the accumulator a Deduplicate run threads through its
// phases: the cross-source pair matrix and recent-matches ring buffer
// are plain fields. The batch loop owns them single-threaded; the
// cross-source fan-out serializes its updates behind a mutex.
type state struct {
	job           model.Job
	matrix        map[string]map[string]int
	recentMatches []RecentMatch
	matchesFound  int
	totalSources  int
	currentSource string
}

func newState(j model.Job, sources []model.Source) *state {
	s := &state{
		job:          j,
		matrix:       make(map[string]map[string]int, len(sources)),
		totalSources: len(sources),
	}
	for _, a := range sources {
		s.matrix[a.Name] = make(map[string]int, len(sources))
		for _, b := range sources {
			s.matrix[a.Name][b.Name] = 0
		}
	}
	return s
}

// bumpMatrix increments the symmetric pair count for two distinct
// sources. A listing never pairs with one from its own source in the
// matrix since intra-source duplicates are already collapsed upstream.
func (s *state) bumpMatrix(sourceA, sourceB string) {
	if sourceA == sourceB {
		return
	}
	if s.matrix[sourceA] == nil {
		s.matrix[sourceA] = make(map[string]int)
	}
	if s.matrix[sourceB] == nil {
		s.matrix[sourceB] = make(map[string]int)
	}
	s.matrix[sourceA][sourceB]++
	s.matrix[sourceB][sourceA]++
}

// recordMatch appends to the bounded recent-matches window and bumps the
// lifetime matches-found counter the window itself can't answer once
// entries age out of it.
func (s *state) recordMatch(raw1, raw2 string, score float64) {
	s.matchesFound++
	s.recentMatches = append(s.recentMatches, RecentMatch{Raw1: raw1, Raw2: raw2, Score: score})
	if len(s.recentMatches) > recentMatchesCapacity {
		s.recentMatches = s.recentMatches[len(s.recentMatches)-recentMatchesCapacity:]
	}
}

func (s *state) bumpSourceCounters(sourceID string, matched bool) {
	s.currentSource = sourceID
	if s.job.SourceBreakdown == nil {
		s.job.SourceBreakdown = make(map[string]model.SourceCounters)
	}
	c := s.job.SourceBreakdown[sourceID]
	c.Processed++
	if matched {
		c.Matched++
	}
	s.job.SourceBreakdown[sourceID] = c
}

// progressEvent builds the full progress record from the run's
// current accumulator state plus the batch-loop counters the batch loop
// itself tracks (currentBatch/totalBatches are 0 outside it).
func (s *state) progressEvent(phase model.JobPhase, message string, currentBatch, totalBatches int) ProgressEvent {
	elapsed := time.Since(s.job.StartedAt)
	var remaining time.Duration
	if s.job.Processed > 0 && s.job.TotalRaw > s.job.Processed {
		perItem := elapsed / time.Duration(s.job.Processed)
		remaining = perItem * time.Duration(s.job.TotalRaw-s.job.Processed)
	}

	recent := make([]RecentMatch, len(s.recentMatches))
	copy(recent, s.recentMatches)
	breakdown := make(map[string]model.SourceCounters, len(s.job.SourceBreakdown))
	for k, v := range s.job.SourceBreakdown {
		breakdown[k] = v
	}

	return ProgressEvent{
		JobID:                    s.job.ID,
		Phase:                    phase,
		TotalProducts:            s.job.TotalRaw,
		ProcessedProducts:        s.job.Processed,
		CurrentSource:            s.currentSource,
		SourcesProcessed:         len(s.job.SourceBreakdown),
		TotalSources:             s.totalSources,
		MatchesFound:             s.matchesFound,
		CanonicalCreated:         s.job.CanonicalCreated,
		MappingsCreated:          s.job.MappingsCreated,
		TimeElapsedMs:            elapsed.Milliseconds(),
		EstimatedTimeRemainingMs: remaining.Milliseconds(),
		CurrentBatch:             currentBatch,
		TotalBatches:             totalBatches,
		RecentMatches:            recent,
		SourceBreakdown:          breakdown,
		Message:                  message,
	}
}
