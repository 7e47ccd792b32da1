package services

import (
	"context"
	"errors"
	"fmt"

	"community-backend/internal/events"
	"community-backend/internal/models"
	"community-backend/internal/notify"
	"community-backend/internal/repository"
)

// SocialService maintains the known-contact graph and the connection
// request lifecycle. Every mutation locks both user rows first, so two
// requests touching the same pair run one after the other.
type SocialService struct {
	store      *repository.Store
	dispatcher *Dispatcher
}

// NewSocialService creates a new social service
func NewSocialService(store *repository.Store, dispatcher *Dispatcher) *SocialService {
	return &SocialService{store: store, dispatcher: dispatcher}
}

// SendResult describes the outcome of a connection request
type SendResult struct {
	Request      *models.ConnectionRequest `json:"request,omitempty"`
	AutoAccepted bool                      `json:"auto_accepted"`
}

// SendConnectionRequest proposes a connection from requester to receiver. A
// pending request in the opposite direction is accepted instead, connecting
// both users immediately.
func (s *SocialService) SendConnectionRequest(ctx context.Context, requesterID, receiverID int64) (*SendResult, error) {
	if requesterID == receiverID {
		return nil, ErrSelfTarget
	}

	var result SendResult
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		found, err := r.Users.LockPair(ctx, requesterID, receiverID)
		if err != nil {
			return err
		}
		if found < 2 {
			return ErrUserNotFound
		}

		knows, err := r.Contacts.Knows(ctx, requesterID, receiverID)
		if err != nil {
			return err
		}
		if knows {
			return ErrAlreadyConnected
		}

		existing, err := r.Requests.FindPending(ctx, requesterID, receiverID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicatePending
		}

		opposite, err := r.Requests.FindPending(ctx, receiverID, requesterID)
		if err != nil {
			return err
		}
		if opposite != nil {
			if _, err := r.Requests.Transition(ctx, opposite.ID, models.RequestAccepted); err != nil {
				return err
			}
			opposite.Status = models.RequestAccepted
			result.Request = opposite
			result.AutoAccepted = true
			return r.Contacts.Link(ctx, requesterID, receiverID)
		}

		req, err := r.Requests.Create(ctx, requesterID, receiverID)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicatePending) {
				return ErrDuplicatePending
			}
			return err
		}
		result.Request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AutoAccepted {
		s.announceAccepted(ctx, receiverID, requesterID)
	} else {
		s.dispatcher.Deliver(ctx, []int64{receiverID},
			WSMessage{Type: WSConnectionRequest, UserID: requesterID, Data: result.Request},
			notify.Push{Title: "New connection request", Body: "Someone wants to connect with you.",
				Data: map[string]any{"request_id": result.Request.ID}},
		)
		s.dispatcher.Publish(ctx, events.Event{
			Type: events.ConnectionRequested,
			Key:  requesterID,
			Data: map[string]any{"request_id": result.Request.ID, "receiver_id": receiverID},
		})
	}
	return &result, nil
}

// AcceptRequest accepts a pending request addressed to actingUser and
// connects both users
func (s *SocialService) AcceptRequest(ctx context.Context, requestID, actingUserID int64) (*models.ConnectionRequest, error) {
	req, err := s.transition(ctx, requestID, actingUserID, models.RequestAccepted)
	if err != nil {
		return nil, err
	}
	s.announceAccepted(ctx, req.RequesterID, req.ReceiverID)
	return req, nil
}

// RejectRequest rejects a pending request addressed to actingUser
func (s *SocialService) RejectRequest(ctx context.Context, requestID, actingUserID int64) (*models.ConnectionRequest, error) {
	return s.transition(ctx, requestID, actingUserID, models.RequestRejected)
}

func (s *SocialService) transition(ctx context.Context, requestID, actingUserID int64, to models.RequestStatus) (*models.ConnectionRequest, error) {
	var req *models.ConnectionRequest
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		var err error
		req, err = r.Requests.Get(ctx, requestID)
		if err != nil {
			if isNotFound(err) {
				return ErrInvalidOrProcessed
			}
			return err
		}
		if req.ReceiverID != actingUserID || req.Status != models.RequestPending {
			return ErrInvalidOrProcessed
		}

		if _, err := r.Users.LockPair(ctx, req.RequesterID, req.ReceiverID); err != nil {
			return err
		}
		moved, err := r.Requests.Transition(ctx, req.ID, to)
		if err != nil {
			return err
		}
		if !moved {
			return ErrInvalidOrProcessed
		}
		req.Status = to

		if to == models.RequestAccepted {
			return r.Contacts.Link(ctx, req.RequesterID, req.ReceiverID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// RemoveConnection deletes the contact between a and b in both directions.
// Removing an absent connection succeeds.
func (s *SocialService) RemoveConnection(ctx context.Context, userA, userB int64) error {
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		if _, err := r.Users.LockPair(ctx, userA, userB); err != nil {
			return err
		}
		return r.Contacts.Unlink(ctx, userA, userB)
	})
	if err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}

	s.dispatcher.Deliver(ctx, []int64{userB},
		WSMessage{Type: WSConnectionRemoved, UserID: userA}, notify.Push{})
	s.dispatcher.Publish(ctx, events.Event{
		Type: events.ConnectionRemoved,
		Key:  userA,
		Data: map[string]any{"peer_id": userB},
	})
	return nil
}

// CanChat reports whether a may message b: always for oneself, otherwise
// only when b is a known contact of a
func (s *SocialService) CanChat(ctx context.Context, a, b int64) (bool, error) {
	return canChat(ctx, s.store.Repositories, a, b)
}

func canChat(ctx context.Context, r *repository.Repositories, a, b int64) (bool, error) {
	if a == b {
		return true, nil
	}
	return r.Contacts.Knows(ctx, a, b)
}

// Connections is the contact page of a user
type Connections struct {
	Contacts  []models.MemberSummary   `json:"contacts"`
	Incoming  []models.IncomingRequest `json:"incoming"`
	SentToIDs []int64                  `json:"sent_to_ids"`
}

// ListConnections returns the contacts and pending requests of a user
func (s *SocialService) ListConnections(ctx context.Context, userID int64) (*Connections, error) {
	contacts, err := s.store.Contacts.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.store.Requests.ListIncoming(ctx, userID)
	if err != nil {
		return nil, err
	}
	sent, err := s.store.Requests.ListOutgoingReceivers(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Connections{Contacts: contacts, Incoming: incoming, SentToIDs: sent}, nil
}

func (s *SocialService) announceAccepted(ctx context.Context, requesterID, receiverID int64) {
	s.dispatcher.Deliver(ctx, []int64{requesterID},
		WSMessage{Type: WSConnectionAccepted, UserID: receiverID},
		notify.Push{Title: "Connection accepted", Body: "You have a new contact."},
	)
	s.dispatcher.Deliver(ctx, []int64{receiverID},
		WSMessage{Type: WSConnectionAccepted, UserID: requesterID}, notify.Push{})
	s.dispatcher.Publish(ctx, events.Event{
		Type: events.ConnectionAccepted,
		Key:  requesterID,
		Data: map[string]any{"requester_id": requesterID, "receiver_id": receiverID},
	})
}
