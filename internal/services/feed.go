package services

import (
	"context"
	"strings"

	"community-backend/internal/models"
	"community-backend/internal/repository"
)

// FeedService handles text posts, their comments and likes, and the dashboard
type FeedService struct {
	store *repository.Store
}

// NewFeedService creates a new feed service
func NewFeedService(store *repository.Store) *FeedService {
	return &FeedService{store: store}
}

// CreatePost publishes a text post
func (s *FeedService) CreatePost(ctx context.Context, userID int64, content string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	return s.store.Posts.Create(ctx, userID, content)
}

// ListFeed returns every post, newest first, with its comments
func (s *FeedService) ListFeed(ctx context.Context, viewerID int64) ([]models.Post, error) {
	posts, err := s.store.Posts.List(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.Posts.Comments(ctx)
	if err != nil {
		return nil, err
	}

	byPost := groupComments(comments)
	for i := range posts {
		posts[i].Comments = byPost[posts[i].ID]
	}
	return posts, nil
}

// ToggleLike likes a post or removes the like. It reports whether the post
// is liked afterwards.
func (s *FeedService) ToggleLike(ctx context.Context, postID, userID int64) (bool, error) {
	if err := s.ensurePost(ctx, postID); err != nil {
		return false, err
	}
	return s.store.Posts.ToggleLike(ctx, postID, userID)
}

// AddComment comments on a post
func (s *FeedService) AddComment(ctx context.Context, postID, userID int64, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if err := s.ensurePost(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.Posts.AddComment(ctx, postID, userID, content)
}

// DeletePost removes a post. Only its author or a moderator may do so.
func (s *FeedService) DeletePost(ctx context.Context, postID, actingUserID int64) error {
	return s.store.WithTx(ctx, func(r *repository.Repositories) error {
		owner, err := r.Posts.Owner(ctx, postID)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if owner != actingUserID {
			if err := requireRole(ctx, r, actingUserID, models.Role.CanModerate); err != nil {
				return err
			}
		}
		return r.Posts.DeleteCascade(ctx, postID, 0)
	})
}

// Dashboard summarizes the activity around a user
type Dashboard struct {
	Stats               models.UserStats      `json:"stats"`
	Community           models.CommunityStats `json:"community"`
	PendingReceived     int                   `json:"pending_received"`
	PendingSent         int                   `json:"pending_sent"`
	UnreadConversations int                   `json:"unread_conversations"`
}

// Dashboard returns the counters shown on a user's home page
func (s *FeedService) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	stats, err := s.store.Users.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	community, err := s.store.Users.CommunityStats(ctx)
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
	unread, err := s.store.Conversations.CountWithUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Stats:               stats,
		Community:           community,
		PendingReceived:     len(incoming),
		PendingSent:         len(sent),
		UnreadConversations: unread,
	}, nil
}

func (s *FeedService) ensurePost(ctx context.Context, postID int64) error {
	if _, err := s.store.Posts.Owner(ctx, postID); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func groupComments(comments []models.Comment) map[int64][]models.Comment {
	byParent := make(map[int64][]models.Comment)
	for _, c := range comments {
		byParent[c.ParentID] = append(byParent[c.ParentID], c)
	}
	return byParent
}
