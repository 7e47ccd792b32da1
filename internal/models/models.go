package models

import "time"

// Role is a user's community role
type Role string

const (
	RoleMember Role = "member"
	RoleLeader Role = "leader"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleLeader, RoleAdmin:
		return true
	}
	return false
}

// CanModerate reports whether the role may resolve reports and remove content
func (r Role) CanModerate() bool {
	return r == RoleLeader || r == RoleAdmin
}

// CanAdminister reports whether the role may manage users and backups
func (r Role) CanAdminister() bool {
	return r == RoleAdmin
}

// User represents a community member
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Church       string    `json:"church"`
	City         string    `json:"city"`
	Country      string    `json:"country"`
	Phone        string    `json:"phone"`
	AgeBracket   string    `json:"age_bracket"`
	PhotoURL     string    `json:"photo_url"`
	Role         Role      `json:"role"`
	Approved     bool      `json:"approved"`
	PushToken    *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// MemberSummary is the public card of a user shown in lists
type MemberSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Church       string `json:"church"`
	City         string `json:"city"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
	AgeBracket   string `json:"age_bracket,omitempty"`
	PhotoURL     string `json:"photo_url"`
	Role         Role   `json:"role,omitempty"`
	WhatsAppLink string `json:"whatsapp_link,omitempty"`
}

// RequestStatus is the lifecycle state of a connection request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// ConnectionRequest is a one-directional proposal to become known contacts
type ConnectionRequest struct {
	ID          int64         `json:"id"`
	RequesterID int64         `json:"requester_id"`
	ReceiverID  int64         `json:"receiver_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IncomingRequest is a pending request joined with the requester's card
type IncomingRequest struct {
	ID        int64         `json:"id"`
	Requester MemberSummary `json:"requester"`
	CreatedAt time.Time     `json:"created_at"`
}

// ConversationType distinguishes direct and group conversations
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Conversation represents a direct or group messaging channel
type Conversation struct {
	ID        int64            `json:"id"`
	Type      ConversationType `json:"type"`
	Name      *string          `json:"name,omitempty"`
	CreatedBy int64            `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
}

// ConversationSummary is one row of a user's conversation list
type ConversationSummary struct {
	ID            int64            `json:"id"`
	Type          ConversationType `json:"type"`
	Label         string           `json:"label"`
	LastMessage   *string          `json:"last_message,omitempty"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UnreadCount   int              `json:"unread_count"`
}

// Message belongs to exactly one conversation
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	SenderPhotoURL string    `json:"sender_photo_url,omitempty"`
	Text           *string   `json:"text,omitempty"`
	FileURL        *string   `json:"file_url,omitempty"`
	FileName       *string   `json:"file_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationView is an opened conversation
type ConversationView struct {
	Conversation Conversation    `json:"conversation"`
	Title        string          `json:"title"`
	Members      []MemberSummary `json:"members"`
	Messages     []Message       `json:"messages"`
}

// ReportTarget is the kind of content a report points at
type ReportTarget string

const (
	TargetPost    ReportTarget = "post"
	TargetComment ReportTarget = "comment"
)

// ReportStatus is the moderation state of a report
type ReportStatus string

const (
	ReportOpen     ReportStatus = "open"
	ReportResolved ReportStatus = "resolved"
)

// Report flags a post or comment for moderation
type Report struct {
	ID           int64        `json:"id"`
	ReporterID   int64        `json:"reporter_id"`
	ReporterName string       `json:"reporter_name,omitempty"`
	TargetType   ReportTarget `json:"target_type"`
	TargetID     int64        `json:"target_id"`
	Reason       string       `json:"reason"`
	Status       ReportStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Post is a text post in the feed
type Post struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	AuthorName string    `json:"author_name,omitempty"`
	AuthorInfo string    `json:"author_info,omitempty"`
	AuthorURL  string    `json:"author_photo_url,omitempty"`
	Content    string    `json:"content"`
	LikesCount int       `json:"likes_count"`
	LikedByMe  bool      `json:"liked_by_me"`
	Comments   []Comment `json:"comments,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PhotoPost is an image post in the gallery
type PhotoPost struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	AuthorName string    `json:"author_name,omitempty"`
	AuthorURL  string    `json:"author_photo_url,omitempty"`
	Caption    *string   `json:"caption,omitempty"`
	ImageURL   string    `json:"image_url"`
	LikesCount int       `json:"likes_count"`
	LikedByMe  bool      `json:"liked_by_me"`
	Comments   []Comment `json:"comments,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Comment is attached to a post or a photo post
type Comment struct {
	ID         int64     `json:"id"`
	ParentID   int64     `json:"parent_id"`
	UserID     int64     `json:"user_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserStats are per-user counters shown on the dashboard and profile
type UserStats struct {
	Posts         int `json:"posts"`
	Comments      int `json:"comments"`
	Contacts      int `json:"contacts"`
	LikesReceived int `json:"likes_received"`
}

// CommunityStats are global counters
type CommunityStats struct {
	TotalMembers int `json:"total_members"`
	TotalPosts   int `json:"total_posts"`
}
