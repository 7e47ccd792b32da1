package services

import (
	"context"
	"strings"

	"community-backend/internal/events"
	"community-backend/internal/mailer"
	"community-backend/internal/models"
	"community-backend/internal/repository"
	"community-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

const deleteConfirmation = "DELETE"

// AccountService handles account removal and registration administration
type AccountService struct {
	store      *repository.Store
	files      *storage.Files
	mail       mailer.Mailer
	dispatcher *Dispatcher
}

// NewAccountService creates a new account service
func NewAccountService(store *repository.Store, files *storage.Files, mail mailer.Mailer, dispatcher *Dispatcher) *AccountService {
	return &AccountService{store: store, files: files, mail: mail, dispatcher: dispatcher}
}

// DeleteAccount removes a user and everything referencing them in one
// transaction, then deletes their files. File removal failures are ignored.
func (s *AccountService) DeleteAccount(ctx context.Context, userID int64) error {
	return s.deleteAccount(ctx, userID, nil)
}

// deleteAccount runs before (if any) inside the teardown transaction
func (s *AccountService) deleteAccount(ctx context.Context, userID int64, before func(r *repository.Repositories) error) error {
	var files []string
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		if before != nil {
			if err := before(r); err != nil {
				return err
			}
		}
		var err error
		files, err = r.Accounts.DeleteUserData(ctx, userID)
		if err != nil && isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	})
	if err != nil {
		return err
	}

	for _, ref := range files {
		s.files.Delete(ctx, ref)
	}

	s.dispatcher.Publish(ctx, events.Event{Type: events.AccountDeleted, Key: userID})
	log.Info().Int64("user_id", userID).Int("files", len(files)).Msg("Account deleted")
	return nil
}

// DeleteOwnAccount removes the caller's account after confirmation. An
// admin must hand the role to another approved user first; the promotion
// commits together with the deletion.
func (s *AccountService) DeleteOwnAccount(ctx context.Context, userID int64, confirmation string, replacementAdminID int64) error {
	if !strings.EqualFold(strings.TrimSpace(confirmation), deleteConfirmation) {
		return Validation("Type DELETE to confirm removing your profile.")
	}

	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	if !user.Role.CanAdminister() {
		return s.DeleteAccount(ctx, userID)
	}

	if replacementAdminID == 0 || replacementAdminID == userID {
		return Validation("As an admin, choose another user to take over before deleting your profile.")
	}
	return s.deleteAccount(ctx, userID, func(r *repository.Repositories) error {
		ok, err := r.Users.ExistsApproved(ctx, replacementAdminID)
		if err != nil {
			return err
		}
		if !ok {
			return Validation("The chosen replacement admin is not valid.")
		}
		return r.Users.UpdateRole(ctx, replacementAdminID, models.RoleAdmin)
	})
}

// RequireAdmin fails with ErrForbidden unless the user may administer
func (s *AccountService) RequireAdmin(ctx context.Context, userID int64) error {
	return requireRole(ctx, s.store.Repositories, userID, models.Role.CanAdminister)
}

// PendingRegistrations lists users awaiting approval
func (s *AccountService) PendingRegistrations(ctx context.Context, actingUserID int64) ([]*models.User, error) {
	if err := s.RequireAdmin(ctx, actingUserID); err != nil {
		return nil, err
	}
	return s.store.Users.ListPending(ctx)
}

// ChangeRole sets the role of target. Admins cannot demote themselves.
func (s *AccountService) ChangeRole(ctx context.Context, actingUserID, targetID int64, role models.Role) error {
	if !role.Valid() {
		return Validation("Invalid role.")
	}
	if err := s.RequireAdmin(ctx, actingUserID); err != nil {
		return err
	}
	if targetID == actingUserID && role != models.RoleAdmin {
		return newError(KindInvalidState, "You cannot remove your own admin role.")
	}
	if err := s.store.Users.UpdateRole(ctx, targetID, role); err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// ApproveRegistration lets a pending user sign in and emails them
func (s *AccountService) ApproveRegistration(ctx context.Context, actingUserID, targetID int64) error {
	if err := s.RequireAdmin(ctx, actingUserID); err != nil {
		return err
	}
	if err := s.store.Users.SetApproved(ctx, targetID); err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	user, err := s.store.Users.GetByID(ctx, targetID)
	if err != nil {
		return nil
	}
	go func() {
		if err := s.mail.Send(user.Email, "Registration approved", mailer.ApprovalBody(user.Name)); err != nil {
			log.Warn().Err(err).Int64("user_id", targetID).Msg("Failed to send approval email")
		}
	}()
	return nil
}

// RejectRegistration deletes the account of a registrant
func (s *AccountService) RejectRegistration(ctx context.Context, actingUserID, targetID int64) error {
	if err := s.RequireAdmin(ctx, actingUserID); err != nil {
		return err
	}
	if targetID == actingUserID {
		return Validation("Use profile deletion to remove your own account.")
	}
	return s.DeleteAccount(ctx, targetID)
}
