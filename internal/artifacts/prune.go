package artifacts

import (
	"time"

	"newsreel/internal/logging"
)

// PruneResult reports the outcome of a retention pass.
type PruneResult struct {
	Kept    []string
	Removed []string
}

// Prune applies the two-rule retention policy. Bulletins are ranked newest
// first; a bulletin survives when its rank is below keepCount or its age in
// whole days is at most maxAgeDays. The two rules are a union, so recency
// protects old-but-ranked bulletins and age protects runs beyond the count.
// Non-positive values disable the corresponding rule; with both disabled
// nothing is removed.
func (s *Store) Prune(keepCount, maxAgeDays int) (PruneResult, error) {
	result := PruneResult{}
	if keepCount <= 0 && maxAgeDays <= 0 {
		return result, nil
	}

	artifacts, err := s.List()
	if err != nil {
		return result, err
	}

	now := time.Now()
	for rank, artifact := range artifacts {
		ageDays := int(now.Sub(artifact.ModTime).Hours() / 24)
		keepByRank := keepCount > 0 && rank < keepCount
		keepByAge := maxAgeDays > 0 && ageDays <= maxAgeDays
		if keepByRank || keepByAge {
			result.Kept = append(result.Kept, artifact.Name)
			continue
		}
		if err := s.Delete(artifact.Name); err != nil {
			s.logger.Warn("retention delete failed",
				logging.String("name", artifact.Name),
				logging.Error(err),
				logging.String(logging.FieldEventType, "retention_failed"),
				logging.String(logging.FieldErrorHint, "check output_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			result.Kept = append(result.Kept, artifact.Name)
			continue
		}
		result.Removed = append(result.Removed, artifact.Name)
	}

	if len(result.Removed) > 0 {
		s.logger.Info("retention pass complete",
			logging.Int("kept", len(result.Kept)),
			logging.Int("removed", len(result.Removed)),
			logging.String(logging.FieldEventType, "retention_complete"),
		)
	}
	return result, nil
}
