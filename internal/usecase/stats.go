package usecase

import (
	"context"
	"math"

	"github.com/example/verinex/internal/repository"
)

// StatsSummary is the admin dashboard header.
type StatsSummary struct {
	repository.Stats
	ApprovalRate float64 `json:"approval_rate"`
}

// GetStats aggregates review counts from persisted records.
func (uc *VerificationUseCase) GetStats(ctx context.Context) (*StatsSummary, error) {
	stats, err := uc.repo.AggregateStats(ctx)
	if err != nil {
		return nil, err
	}

	summary := &StatsSummary{Stats: *stats}
	summary.AverageConfidence = math.Round(stats.AverageConfidence*100) / 100
	if reviewed := stats.Approved + stats.Rejected; reviewed > 0 {
		summary.ApprovalRate = float64(stats.Approved) / float64(reviewed)
	}
	return summary, nil
}
