package services

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"community-backend/internal/events"
	"community-backend/internal/models"
	"community-backend/internal/notify"
	"community-backend/internal/repository"
	"community-backend/internal/storage"
)

const (
	minGroupNameLength   = 3
	minGroupParticipants = 3
	pushPreviewLength    = 120
)

// ConversationService handles direct and group chat
type ConversationService struct {
	store      *repository.Store
	files      *storage.Files
	dispatcher *Dispatcher
}

// NewConversationService creates a new conversation service
func NewConversationService(store *repository.Store, files *storage.Files, dispatcher *Dispatcher) *ConversationService {
	return &ConversationService{store: store, files: files, dispatcher: dispatcher}
}

// GetOrCreateDirect returns the direct conversation of the unordered pair
// {a, b}, creating it with both memberships if none exists
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, a, b int64) (int64, error) {
	first, second := a, b
	if first > second {
		first, second = second, first
	}

	var id int64
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		if err := r.Conversations.LockDirectPair(ctx, first, second); err != nil {
			return err
		}
		existing, found, err := r.Conversations.FindDirect(ctx, first, second)
		if err != nil {
			return err
		}
		if found {
			id = existing
			return nil
		}

		id, err = r.Conversations.Create(ctx, models.ConversationDirect, nil, a)
		if err != nil {
			return err
		}
		return r.Conversations.AddMembers(ctx, id, []int64{first, second})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// StartDirect opens a direct chat between user and target, who must be a known contact
func (s *ConversationService) StartDirect(ctx context.Context, userID, targetID int64) (int64, error) {
	if userID == targetID {
		return 0, Validation("You cannot start a conversation with yourself.")
	}
	exists, err := s.store.Users.Exists(ctx, targetID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrUserNotFound
	}
	ok, err := canChat(ctx, s.store.Repositories, userID, targetID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotConnected
	}
	return s.GetOrCreateDirect(ctx, userID, targetID)
}

// CreateGroup creates a named group of the creator and memberIDs. Every
// member must exist and be a known contact of the creator.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID int64, name string, memberIDs []int64) (int64, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minGroupNameLength {
		return 0, ErrNameTooShort
	}

	seen := map[int64]bool{creatorID: true}
	var others []int64
	for _, id := range memberIDs {
		if !seen[id] {
			seen[id] = true
			others = append(others, id)
		}
	}
	if 1+len(others) < minGroupParticipants {
		return 0, ErrInsufficientMembers
	}

	var id int64
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		for _, member := range others {
			exists, err := r.Users.Exists(ctx, member)
			if err != nil {
				return err
			}
			if !exists {
				return ErrUnknownMember
			}
		}
		for _, member := range others {
			ok, err := canChat(ctx, r, creatorID, member)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotConnected
			}
		}

		var err error
		id, err = r.Conversations.Create(ctx, models.ConversationGroup, &name, creatorID)
		if err != nil {
			return err
		}
		return r.Conversations.AddMembers(ctx, id, append([]int64{creatorID}, others...))
	})
	if err != nil {
		return 0, err
	}

	s.dispatcher.Deliver(ctx, others,
		WSMessage{Type: WSConversationAdded, ConversationID: id, UserID: creatorID},
		notify.Push{Title: name, Body: "You were added to a group.",
			Data: map[string]any{"conversation_id": id}},
	)
	s.dispatcher.Publish(ctx, events.Event{
		Type: events.GroupCreated,
		Key:  id,
		Data: map[string]any{"creator_id": creatorID, "members": len(others) + 1},
	})
	return id, nil
}

// Attachment is a file sent with a message
type Attachment struct {
	Name   string
	Reader io.Reader
}

// PostMessage stores a message from a member. Text and attachment are both
// optional but not both empty.
func (s *ConversationService) PostMessage(ctx context.Context, conversationID, senderID int64, text string, file *Attachment) (*models.Message, error) {
	member, err := s.store.Conversations.IsMember(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotAMember
	}

	text = strings.TrimSpace(text)
	hasFile := file != nil && strings.TrimSpace(file.Name) != ""
	if text == "" && !hasFile {
		return nil, ErrEmptyMessage
	}

	msg := &models.Message{ConversationID: conversationID, SenderID: senderID}
	if text != "" {
		msg.Text = &text
	}
	if hasFile {
		ref, name, err := s.files.SaveChatFile(ctx, file.Name, readerOrEmpty(file.Reader))
		if err != nil {
			return nil, fromStorage(err)
		}
		msg.FileURL = &ref
		msg.FileName = &name
	}

	if err := s.store.Messages.Create(ctx, msg); err != nil {
		if msg.FileURL != nil {
			s.files.Delete(ctx, *msg.FileURL)
		}
		return nil, err
	}

	s.announceMessage(ctx, msg)
	return msg, nil
}

func (s *ConversationService) announceMessage(ctx context.Context, msg *models.Message) {
	sender, err := s.store.Users.GetByID(ctx, msg.SenderID)
	if err == nil {
		msg.SenderName = sender.Name
		msg.SenderPhotoURL = sender.PhotoURL
	}

	memberIDs, err := s.store.Conversations.MemberIDs(ctx, msg.ConversationID)
	if err != nil {
		return
	}
	recipients := make([]int64, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != msg.SenderID {
			recipients = append(recipients, id)
		}
	}

	body := "Sent a file"
	if msg.Text != nil {
		body = truncate(*msg.Text, pushPreviewLength)
	}
	s.dispatcher.Deliver(ctx, recipients,
		WSMessage{Type: WSNewMessage, ConversationID: msg.ConversationID, Data: msg},
		notify.Push{Title: msg.SenderName, Body: body,
			Data: map[string]any{"conversation_id": msg.ConversationID}},
	)
	s.dispatcher.Publish(ctx, events.Event{
		Type: events.MessagePosted,
		Key:  msg.ConversationID,
		Data: map[string]any{"message_id": msg.ID, "sender_id": msg.SenderID, "has_file": msg.FileURL != nil},
	})
}

// ListConversations returns the conversations of a user with unread counts
func (s *ConversationService) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	return s.store.Conversations.ListForUser(ctx, userID)
}

// OpenConversation returns a conversation with its members and messages and
// advances the caller's read cursor to the last message
func (s *ConversationService) OpenConversation(ctx context.Context, conversationID, userID int64) (*models.ConversationView, error) {
	conv, err := s.store.Conversations.GetForMember(ctx, conversationID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotAMember
		}
		return nil, err
	}

	members, err := s.store.Conversations.Members(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.Messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.MarkRead(ctx, conversationID, userID, messages); err != nil {
		return nil, err
	}

	return &models.ConversationView{
		Conversation: *conv,
		Title:        conversationTitle(conv, members, userID),
		Members:      members,
		Messages:     messages,
	}, nil
}

// MarkRead sets the read cursor of user to the last of messages, or 0 if there are none
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID int64, messages []models.Message) error {
	var last int64
	if len(messages) > 0 {
		last = messages[len(messages)-1].ID
	}
	return s.store.Messages.UpsertReadCursor(ctx, conversationID, userID, last)
}

func conversationTitle(conv *models.Conversation, members []models.MemberSummary, viewerID int64) string {
	if conv.Type == models.ConversationGroup {
		if conv.Name != nil && *conv.Name != "" {
			return *conv.Name
		}
		return "Group"
	}
	for _, m := range members {
		if m.ID != viewerID {
			return m.Name
		}
	}
	return "Conversation"
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
