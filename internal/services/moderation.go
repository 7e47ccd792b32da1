package services

import (
	"context"
	"strings"

	"community-backend/internal/events"
	"community-backend/internal/models"
	"community-backend/internal/repository"
)

// ModerationService handles content reports
type ModerationService struct {
	store      *repository.Store
	dispatcher *Dispatcher
}

// NewModerationService creates a new moderation service
func NewModerationService(store *repository.Store, dispatcher *Dispatcher) *ModerationService {
	return &ModerationService{store: store, dispatcher: dispatcher}
}

// Report flags a post or comment for moderation
func (s *ModerationService) Report(ctx context.Context, kind models.ReportTarget, targetID, reporterID int64, reason string) (*models.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	switch kind {
	case models.TargetPost:
		if _, err := s.store.Posts.Owner(ctx, targetID); err != nil {
			if isNotFound(err) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	case models.TargetComment:
		exists, err := s.store.Posts.CommentExists(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
	default:
		return nil, Validation("Unknown report target.")
	}

	report := &models.Report{ReporterID: reporterID, TargetType: kind, TargetID: targetID, Reason: reason}
	if err := s.store.Reports.Create(ctx, report); err != nil {
		return nil, err
	}

	s.dispatcher.Publish(ctx, events.Event{
		Type: events.ReportOpened,
		Key:  report.ID,
		Data: map[string]any{"target_type": kind, "target_id": targetID},
	})
	return report, nil
}

// ListOpen returns the open reports for a moderator
func (s *ModerationService) ListOpen(ctx context.Context, actingUserID int64) ([]models.Report, error) {
	if err := requireRole(ctx, s.store.Repositories, actingUserID, models.Role.CanModerate); err != nil {
		return nil, err
	}
	return s.store.Reports.ListOpen(ctx)
}

// Resolve marks a report resolved without touching its target
func (s *ModerationService) Resolve(ctx context.Context, reportID, actingUserID int64) error {
	return s.resolve(ctx, reportID, actingUserID, false)
}

// ResolveAndRemove deletes the reported content with everything depending
// on it and marks the report resolved
func (s *ModerationService) ResolveAndRemove(ctx context.Context, reportID, actingUserID int64) error {
	return s.resolve(ctx, reportID, actingUserID, true)
}

func (s *ModerationService) resolve(ctx context.Context, reportID, actingUserID int64, removeTarget bool) error {
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		if err := requireRole(ctx, r, actingUserID, models.Role.CanModerate); err != nil {
			return err
		}

		report, err := r.Reports.GetForUpdate(ctx, reportID)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}

		if removeTarget {
			switch report.TargetType {
			case models.TargetPost:
				err = r.Posts.DeleteCascade(ctx, report.TargetID, report.ID)
			case models.TargetComment:
				err = r.Posts.DeleteCommentCascade(ctx, report.TargetID, report.ID)
			}
			if err != nil {
				return err
			}
		}
		return r.Reports.MarkResolved(ctx, report.ID)
	})
	if err != nil {
		return err
	}

	s.dispatcher.Publish(ctx, events.Event{
		Type: events.ReportResolved,
		Key:  reportID,
		Data: map[string]any{"moderator_id": actingUserID, "removed": removeTarget},
	})
	return nil
}

// requireRole loads the acting user and checks a role capability
func requireRole(ctx context.Context, r *repository.Repositories, userID int64, capable func(models.Role) bool) error {
	user, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return ErrForbidden
		}
		return err
	}
	if !capable(user.Role) {
		return ErrForbidden
	}
	return nil
}
