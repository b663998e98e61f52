package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gameshelf/apiserver/internal/directory"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"github.com/google/uuid"
)

const defaultBanDetails = "no reason provided"

// ModerationStore is the slice of the store the workflow runs on. Every
// Apply method couples the state change with its audit row.
type ModerationStore interface {
	ApplyBan(ctx context.Context, targetID, actorID int, reason *string, details string) error
	ApplyUnban(ctx context.Context, targetID, actorID int, details string) error
	ApplyPromote(ctx context.Context, targetID, actorID int, details string) error
	ApplyDemote(ctx context.Context, targetID, actorID int, details string) error
	ApplyDelete(ctx context.Context, targetID, actorID int, targetUsername, details string, outboxID uuid.UUID) error
	OpenBan(ctx context.Context, userID int) (types.BanRecord, error)
	BanHistory(ctx context.Context, userID int) ([]types.BanRecord, error)
}

// UserLookup resolves mirrored user rows.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// OutboxStore tracks pending identity-provider deletions.
type OutboxStore interface {
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, reason string) error
}

// EventPublisher fans successful moderation actions out to the broker.
// Satisfied by *mq.MQ.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ActionRecorder counts successful actions for the metrics endpoint.
// Satisfied by *metrics.Collector.
type ActionRecorder interface {
	RecordModerationAction(action types.ActionType)
}

// ModerationService enforces the role-precedence rules and drives the
// coupled user/audit writes. All business-rule checks happen before any
// mutation; the store's guarded updates re-assert state inside the
// transaction so concurrent operations settle as defined rejections.
type ModerationService struct {
	users     UserLookup
	repo      ModerationStore
	outbox    OutboxStore
	directory directory.UserDirectory
	events    EventPublisher
	metrics   ActionRecorder
	log       *slog.Logger
}

func NewModerationService(
	users UserLookup,
	repo ModerationStore,
	outbox OutboxStore,
	dir directory.UserDirectory,
	events EventPublisher,
	metrics ActionRecorder,
	log *slog.Logger,
) *ModerationService {
	return &ModerationService{
		users:     users,
		repo:      repo,
		outbox:    outbox,
		directory: dir,
		events:    events,
		metrics:   metrics,
		log:       log,
	}
}

// loadPair fetches actor and target. The actor is trusted to exist (the
// auth middleware resolved it); a missing target is the caller's NotFound.
func (s *ModerationService) loadPair(ctx context.Context, actorID, targetID int) (actor, target types.User, err error) {
	actor, err = s.users.GetByID(ctx, actorID)
	if err != nil {
		return types.User{}, types.User{}, fmt.Errorf("load actor: %w", err)
	}
	target, err = s.users.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, types.User{}, err
	}
	return actor, target, nil
}

func (s *ModerationService) recordSuccess(ctx context.Context, action types.ActionType, actor, target types.User) {
	if s.metrics != nil {
		s.metrics.RecordModerationAction(action)
	}
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"action":    string(action),
		"actor_id":  actor.ID,
		"target_id": target.ID,
		"username":  target.Username,
	})
	if err != nil {
		return
	}
	// event fan-out is best effort; the audit log is the source of truth
	if _, err := s.events.Publish(ctx, "moderation.events", payload, map[string]string{"action": string(action)}); err != nil {
		s.log.Warn("moderation event publish failed", "action", string(action), "error", err)
	}
}

// Ban blocks the target from the authenticated surface, opens a ban-history
// record, and writes the audit row in one transaction. The actor must
// strictly outrank the target, so moderators cannot ban their peers and
// nobody can ban an admin.
func (s *ModerationService) Ban(ctx context.Context, actorID, targetID int, reason *string) error {
	if actorID == targetID {
		return ErrSelfAction
	}

	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if target.IsBanned {
		return ErrAlreadyBanned
	}
	if actor.Rank() <= target.Rank() {
		return ErrInsufficientPrivilege
	}

	details := defaultBanDetails
	if reason != nil && *reason != "" {
		details = *reason
	}

	if err := s.repo.ApplyBan(ctx, targetID, actorID, reason, details); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrAlreadyBanned
		}
		return err
	}

	s.recordSuccess(ctx, types.ActionBanUser, actor, target)
	return nil
}

// Unban lifts an active ban, closes the open ban-history record, and writes
// the audit row in one transaction.
func (s *ModerationService) Unban(ctx context.Context, actorID, targetID int) error {
	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if !target.IsBanned {
		return ErrNotBanned
	}

	details := fmt.Sprintf("unbanned %s", target.Username)
	if err := s.repo.ApplyUnban(ctx, targetID, actorID, details); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrNotBanned
		}
		return err
	}

	s.recordSuccess(ctx, types.ActionUnbanUser, actor, target)
	return nil
}

// Promote grants moderator status. Admin-only at the route layer.
func (s *ModerationService) Promote(ctx context.Context, actorID, targetID int) error {
	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if target.IsModerator {
		return ErrAlreadyModerator
	}

	details := fmt.Sprintf("promoted %s to moderator", target.Username)
	if err := s.repo.ApplyPromote(ctx, targetID, actorID, details); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrAlreadyModerator
		}
		return err
	}

	s.recordSuccess(ctx, types.ActionPromoteModerator, actor, target)
	return nil
}

// Demote revokes moderator status. Admin-only at the route layer; admins
// themselves cannot be demoted through this path.
func (s *ModerationService) Demote(ctx context.Context, actorID, targetID int) error {
	if actorID == targetID {
		return ErrSelfAction
	}

	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if target.IsAdmin {
		return ErrInsufficientPrivilege
	}
	if !target.IsModerator {
		return ErrNotModerator
	}

	details := fmt.Sprintf("demoted %s from moderator", target.Username)
	if err := s.repo.ApplyDemote(ctx, targetID, actorID, details); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrNotModerator
		}
		return err
	}

	s.recordSuccess(ctx, types.ActionDemoteModerator, actor, target)
	return nil
}

// BanHistory returns the target's ban records newest first, plus the open
// record when the target is currently banned.
func (s *ModerationService) BanHistory(ctx context.Context, targetID int) ([]types.BanRecord, *types.BanRecord, error) {
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, nil, err
	}

	records, err := s.repo.BanHistory(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}

	open, err := s.repo.OpenBan(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return records, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return records, &open, nil
}

// Delete irreversibly removes the target: owned lists, follow edges, ban
// history, and activity rows where the target acted, then the user row,
// all in one local transaction that also writes the final audit row
// (attributed to the acting admin) and an outbox row for the directory
// deletion.
//
// The directory record lives in a separate consistency domain. The
// immediate deletion attempt after commit is best effort: on failure the
// divergence is logged and surfaced as ErrDirectoryDelete while the
// reconciler retries from the outbox until the directory confirms.
func (s *ModerationService) Delete(ctx context.Context, actorID, targetID int) error {
	if actorID == targetID {
		return ErrSelfAction
	}

	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if target.IsAdmin {
		return ErrInsufficientPrivilege
	}

	outboxID := uuid.New()
	details := fmt.Sprintf("deleted account %s", target.Username)
	if err := s.repo.ApplyDelete(ctx, targetID, actorID, target.Username, details, outboxID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrInsufficientPrivilege
		}
		return err
	}

	s.recordSuccess(ctx, types.ActionDeleteUser, actor, target)

	if err := s.directory.DeleteUser(ctx, targetID); err != nil {
		reason := err.Error()
		if recordErr := s.outbox.RecordFailure(ctx, outboxID, reason); recordErr != nil {
			s.log.Error("failed to record outbox failure", "outbox_id", outboxID, "error", recordErr)
		}
		s.log.Error("directory deletion diverged from local delete",
			"user_id", targetID,
			"username", target.Username,
			"outbox_id", outboxID,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrDirectoryDelete, err)
	}

	if err := s.outbox.MarkCompleted(ctx, outboxID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("failed to close outbox task", "outbox_id", outboxID, "error", err)
	}
	return nil
}
