package services

import (
	"context"

	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
)

// StatsSource aggregates the dashboard counts.
type StatsSource interface {
	Summary(ctx context.Context) (store.Stats, error)
}

// ActionCounter tallies audit rows per action type.
type ActionCounter interface {
	CountByAction(ctx context.Context) (map[types.ActionType]int, error)
}

// StatsSummary is the admin dashboard payload: table counts plus the
// per-action breakdown of the audit log.
type StatsSummary struct {
	store.Stats
	ActionCounts map[types.ActionType]int `json:"action_counts"`
}

// StatsService surfaces the admin dashboard summary.
type StatsService struct {
	repo     StatsSource
	activity ActionCounter
}

func NewStatsService(repo StatsSource, activity ActionCounter) *StatsService {
	return &StatsService{repo: repo, activity: activity}
}

func (s *StatsService) Summary(ctx context.Context) (StatsSummary, error) {
	stats, err := s.repo.Summary(ctx)
	if err != nil {
		return StatsSummary{}, err
	}
	counts, err := s.activity.CountByAction(ctx)
	if err != nil {
		return StatsSummary{}, err
	}
	return StatsSummary{Stats: stats, ActionCounts: counts}, nil
}
