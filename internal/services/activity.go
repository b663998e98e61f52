package services

import (
	"context"
	"fmt"

	"github.com/gameshelf/apiserver/types"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ActivityStore is the read/append slice of the audit log.
type ActivityStore interface {
	List(ctx context.Context, actionType string, offset, limit int) ([]types.EnrichedActivityEntry, error)
	Append(ctx context.Context, entry types.ActivityEntry) error
}

// ActivityFilter selects a page of the audit log.
type ActivityFilter struct {
	ActionType string
	Limit      int
	Offset     int
}

// ActivityPage is one page of enriched audit entries. HasMore is inferred
// from the page being full, not from an exact count.
type ActivityPage struct {
	Entries []types.EnrichedActivityEntry `json:"entries"`
	Limit   int                           `json:"limit"`
	Offset  int                           `json:"offset"`
	HasMore bool                          `json:"has_more"`
}

// ActivityService assembles enriched audit views.
type ActivityService struct {
	repo ActivityStore
}

func NewActivityService(repo ActivityStore) *ActivityService {
	return &ActivityService{repo: repo}
}

// ListActivity returns audit entries newest first, enriched with the
// current display names of actors and targets. Enrichment is best effort:
// entries referencing deleted users keep nil name fields.
func (s *ActivityService) ListActivity(ctx context.Context, filter ActivityFilter) (ActivityPage, error) {
	if filter.ActionType != "" && !types.ActionType(filter.ActionType).Valid() {
		return ActivityPage{}, fmt.Errorf("%w: unknown action type %q", ErrInvalidFilter, filter.ActionType)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultActivityLimit
	}
	if filter.Limit > maxActivityLimit {
		filter.Limit = maxActivityLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	entries, err := s.repo.List(ctx, filter.ActionType, filter.Offset, filter.Limit)
	if err != nil {
		return ActivityPage{}, err
	}

	return ActivityPage{
		Entries: entries,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: len(entries) == filter.Limit,
	}, nil
}

// RecordCatalogAction appends an audit row for the catalog-management
// actions, which mutate no user state and so have no coupled transaction.
func (s *ActivityService) RecordCatalogAction(ctx context.Context, actorID int, action types.ActionType, gameID int, details string) error {
	if action != types.ActionAddGame && action != types.ActionRemoveGame {
		return fmt.Errorf("action %q is not a catalog action", action)
	}
	return s.repo.Append(ctx, types.ActivityEntry{
		ModeratorID: actorID,
		Action:      action,
		Target:      types.GameTarget(gameID),
		Details:     details,
	})
}
