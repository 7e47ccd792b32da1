package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"community-backend/internal/events"
	"community-backend/internal/mailer"
	"community-backend/internal/models"
	"community-backend/internal/notify"
	"community-backend/internal/repository"
	"community-backend/internal/session"
	"community-backend/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// env bundles the services over a freshly migrated database. Tests using it
// run only when COMMUNITY_TEST_DATABASE_URL points at a disposable database;
// the public schema is dropped on every setup.
type env struct {
	ctx      context.Context
	pool     *pgxpool.Pool
	store    *repository.Store
	uploads  string
	events   *events.Recorder
	users    *UserService
	accounts *AccountService
	social   *SocialService
	convs    *ConversationService
	mod      *ModerationService
	feed     *FeedService
	photos   *PhotoService
	seq      int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	url := os.Getenv("COMMUNITY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("COMMUNITY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, stmt := range []string{"DROP SCHEMA public CASCADE", "CREATE SCHEMA public"} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("reset schema: %v", err)
		}
	}
	if err := repository.Migrate(pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	uploads := t.TempDir()
	local, err := storage.NewLocal(uploads, "/uploads")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	files := storage.New(local, 1<<20)

	store := repository.NewStore(pool)
	recorder := &events.Recorder{}
	dispatcher := NewDispatcher(NewWSHub(), store.Users, notify.Noop{}, recorder)
	sessions := session.NewMemoryStore(time.Hour)

	return &env{
		ctx:      ctx,
		pool:     pool,
		store:    store,
		uploads:  uploads,
		events:   recorder,
		users:    NewUserService(store, files, sessions, dispatcher, "test-secret", time.Hour),
		accounts: NewAccountService(store, files, mailer.Noop{}, dispatcher),
		social:   NewSocialService(store, dispatcher),
		convs:    NewConversationService(store, files, dispatcher),
		mod:      NewModerationService(store, dispatcher),
		feed:     NewFeedService(store),
		photos:   NewPhotoService(store, files),
	}
}

// user inserts an approved user with the given role
func (e *env) user(t *testing.T, name string, role models.Role) int64 {
	t.Helper()
	e.seq++
	u := &models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s%d@example.org", strings.ToLower(name), e.seq),
		PasswordHash: "unused",
		Church:       "Central",
		City:         "Recife",
		Country:      "Brazil",
		AgeBracket:   "18-25",
		Role:         role,
		Approved:     true,
	}
	if err := e.store.Users.Create(e.ctx, u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u.ID
}

func (e *env) connect(t *testing.T, a, b int64) {
	t.Helper()
	res, err := e.social.SendConnectionRequest(e.ctx, a, b)
	if err != nil {
		t.Fatalf("request %d->%d: %v", a, b, err)
	}
	if _, err := e.social.AcceptRequest(e.ctx, res.Request.ID, b); err != nil {
		t.Fatalf("accept %d->%d: %v", a, b, err)
	}
}

func (e *env) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := e.pool.QueryRow(e.ctx, query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func (e *env) canChat(t *testing.T, a, b int64) bool {
	t.Helper()
	ok, err := e.social.CanChat(e.ctx, a, b)
	if err != nil {
		t.Fatalf("can chat: %v", err)
	}
	return ok
}

func wantErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestRequestAcceptConnectsBothWays(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)

	if e.canChat(t, a, b) {
		t.Fatal("strangers can chat")
	}
	e.connect(t, a, b)

	if !e.canChat(t, a, b) || !e.canChat(t, b, a) {
		t.Fatal("accepted connection is not mutual")
	}
	if n := e.count(t, `SELECT count(*) FROM known_contacts`); n != 2 {
		t.Fatalf("known contacts = %d, want 2", n)
	}
	if n := e.count(t, `SELECT count(*) FROM known_contacts WHERE user_id = $1 AND known_user_id = $2`, a, b); n != 1 {
		t.Fatal("missing a->b edge")
	}
}

func TestSendConnectionRequestErrors(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)

	_, err := e.social.SendConnectionRequest(e.ctx, a, a)
	wantErr(t, err, ErrSelfTarget)

	_, err = e.social.SendConnectionRequest(e.ctx, a, 999999)
	wantErr(t, err, ErrUserNotFound)

	if _, err := e.social.SendConnectionRequest(e.ctx, a, b); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err = e.social.SendConnectionRequest(e.ctx, a, b)
	wantErr(t, err, ErrDuplicatePending)

	c := e.user(t, "Carla", models.RoleMember)
	e.connect(t, a, c)
	_, err = e.social.SendConnectionRequest(e.ctx, c, a)
	wantErr(t, err, ErrAlreadyConnected)
}

func TestOppositePendingAutoAccepts(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)

	if _, err := e.social.SendConnectionRequest(e.ctx, b, a); err != nil {
		t.Fatalf("b->a: %v", err)
	}
	res, err := e.social.SendConnectionRequest(e.ctx, a, b)
	if err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if !res.AutoAccepted || res.Request.Status != models.RequestAccepted {
		t.Fatalf("result = %+v", res)
	}

	if !e.canChat(t, a, b) || !e.canChat(t, b, a) {
		t.Fatal("auto accept did not connect both ways")
	}
	if n := e.count(t, `SELECT count(*) FROM connection_requests WHERE status = 'pending'`); n != 0 {
		t.Fatalf("pending requests = %d, want 0", n)
	}
}

func TestRemoveConnection(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)

	// removing a connection that never existed succeeds
	if err := e.social.RemoveConnection(e.ctx, a, b); err != nil {
		t.Fatalf("remove absent: %v", err)
	}

	e.connect(t, a, b)
	if err := e.social.RemoveConnection(e.ctx, a, b); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if e.canChat(t, a, b) || e.canChat(t, b, a) {
		t.Fatal("removed connection still allows chat")
	}
	if n := e.count(t, `SELECT count(*) FROM known_contacts`); n != 0 {
		t.Fatalf("known contacts = %d", n)
	}
}

func TestProcessedRequestCannotChange(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)
	c := e.user(t, "Carla", models.RoleMember)

	accepted, err := e.social.SendConnectionRequest(e.ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.social.AcceptRequest(e.ctx, accepted.Request.ID, b); err != nil {
		t.Fatal(err)
	}

	rejected, err := e.social.SendConnectionRequest(e.ctx, c, b)
	if err != nil {
		t.Fatal(err)
	}
	// only the receiver may decide
	_, err = e.social.RejectRequest(e.ctx, rejected.Request.ID, c)
	wantErr(t, err, ErrInvalidOrProcessed)
	if _, err := e.social.RejectRequest(e.ctx, rejected.Request.ID, b); err != nil {
		t.Fatal(err)
	}

	before := e.count(t, `SELECT count(*) FROM known_contacts`)
	for _, id := range []int64{accepted.Request.ID, rejected.Request.ID} {
		_, err := e.social.RejectRequest(e.ctx, id, b)
		wantErr(t, err, ErrInvalidOrProcessed)
		_, err = e.social.AcceptRequest(e.ctx, id, b)
		wantErr(t, err, ErrInvalidOrProcessed)
	}
	if after := e.count(t, `SELECT count(*) FROM known_contacts`); after != before {
		t.Fatalf("contacts changed from %d to %d", before, after)
	}
	if e.canChat(t, c, b) {
		t.Fatal("rejected request created an edge")
	}

	// a rejected pair may ask again
	if _, err := e.social.SendConnectionRequest(e.ctx, c, b); err != nil {
		t.Fatalf("re-request after rejection: %v", err)
	}
}

func TestGetOrCreateDirectIsStable(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)

	first, err := e.convs.GetOrCreateDirect(e.ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.convs.GetOrCreateDirect(e.ctx, b, a)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("direct ids differ: %d != %d", first, second)
	}
	if n := e.count(t, `SELECT count(*) FROM conversation_members WHERE conversation_id = $1`, first); n != 2 {
		t.Fatalf("members = %d, want 2", n)
	}
}

func TestStartDirectRequiresConnection(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)

	_, err := e.convs.StartDirect(e.ctx, a, b)
	wantErr(t, err, ErrNotConnected)

	e.connect(t, a, b)
	if _, err := e.convs.StartDirect(e.ctx, a, b); err != nil {
		t.Fatalf("start direct: %v", err)
	}
}

func TestCreateGroup(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)
	c := e.user(t, "Carla", models.RoleMember)
	stranger := e.user(t, "Davi", models.RoleMember)
	e.connect(t, a, b)
	e.connect(t, a, c)

	tests := []struct {
		name    string
		group   string
		members []int64
		want    error
	}{
		{"two character name", "ab", []int64{b, c}, ErrNameTooShort},
		{"one other member", "Choir", []int64{b}, ErrInsufficientMembers},
		{"duplicates and self do not count", "Choir", []int64{b, b, a}, ErrInsufficientMembers},
		{"unknown member", "Choir", []int64{b, 999999}, ErrUnknownMember},
		{"unconnected member", "Choir", []int64{b, stranger}, ErrNotConnected},
		{"three character name", "abc", []int64{b, c}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := e.convs.CreateGroup(e.ctx, a, tt.group, tt.members)
			if tt.want != nil {
				wantErr(t, err, tt.want)
				return
			}
			if err != nil {
				t.Fatalf("create group: %v", err)
			}
			if n := e.count(t, `SELECT count(*) FROM conversation_members WHERE conversation_id = $1`, id); n != 3 {
				t.Fatalf("members = %d, want 3", n)
			}
		})
	}

	if n := e.count(t, `SELECT count(*) FROM conversations WHERE type = 'group'`); n != 1 {
		t.Fatalf("failed group creations left rows: %d groups", n)
	}
}

func TestPostMessageErrors(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)
	outsider := e.user(t, "Carla", models.RoleMember)

	conv, err := e.convs.GetOrCreateDirect(e.ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.convs.PostMessage(e.ctx, conv, outsider, "hi", nil)
	wantErr(t, err, ErrNotAMember)

	_, err = e.convs.PostMessage(e.ctx, conv, a, "   ", nil)
	wantErr(t, err, ErrEmptyMessage)

	msg, err := e.convs.PostMessage(e.ctx, conv, a, "", &Attachment{Name: "notes.pdf", Reader: strings.NewReader("%PDF")})
	if err != nil {
		t.Fatalf("attachment only: %v", err)
	}
	if msg.FileName == nil || *msg.FileName != "notes.pdf" || msg.Text != nil {
		t.Fatalf("message = %+v", msg)
	}
}

func unreadFor(t *testing.T, e *env, userID, conversationID int64) int {
	t.Helper()
	list, err := e.convs.ListConversations(e.ctx, userID)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	for _, c := range list {
		if c.ID == conversationID {
			return c.UnreadCount
		}
	}
	t.Fatalf("conversation %d not listed for %d", conversationID, userID)
	return 0
}

func TestUnreadCount(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)

	conv, err := e.convs.GetOrCreateDirect(e.ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	post := func(sender int64, text string) {
		t.Helper()
		if _, err := e.convs.PostMessage(e.ctx, conv, sender, text, nil); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	post(b, "m1")
	post(b, "m2")
	post(b, "m3")
	if n := unreadFor(t, e, a, conv); n != 3 {
		t.Fatalf("unread = %d, want 3", n)
	}

	view, err := e.convs.OpenConversation(e.ctx, conv, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Messages) != 3 || view.Title != "Bruno" {
		t.Fatalf("view = %d messages, title %q", len(view.Messages), view.Title)
	}
	if n := unreadFor(t, e, a, conv); n != 0 {
		t.Fatalf("unread after open = %d, want 0", n)
	}

	post(b, "m4")
	if n := unreadFor(t, e, a, conv); n != 1 {
		t.Fatalf("unread = %d, want 1", n)
	}
	post(a, "reply")
	if n := unreadFor(t, e, a, conv); n != 1 {
		t.Fatalf("own message changed unread to %d", n)
	}

	list, err := e.convs.ListConversations(e.ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].LastMessage == nil || *list[0].LastMessage != "reply" || list[0].Label != "Bruno" {
		t.Fatalf("summary = %+v", list[0])
	}
}

func TestConversationOrderByActivity(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Ana", models.RoleMember)
	b := e.user(t, "Bruno", models.RoleMember)
	c := e.user(t, "Carla", models.RoleMember)

	withB, err := e.convs.GetOrCreateDirect(e.ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	withC, err := e.convs.GetOrCreateDirect(e.ctx, a, c)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.convs.PostMessage(e.ctx, withB, b, "latest", nil); err != nil {
		t.Fatal(err)
	}

	list, err := e.convs.ListConversations(e.ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != withB || list[1].ID != withC {
		t.Fatalf("order = %+v", list)
	}
}

func TestModeration(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "Ana", models.RoleMember)
	reader := e.user(t, "Bruno", models.RoleMember)
	leader := e.user(t, "Carla", models.RoleLeader)

	post, err := e.feed.CreatePost(e.ctx, author, "hello church")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.feed.AddComment(e.ctx, post.ID, reader, "amen"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.feed.ToggleLike(e.ctx, post.ID, reader); err != nil {
		t.Fatal(err)
	}

	_, err = e.mod.Report(e.ctx, models.TargetPost, post.ID, reader, "  ")
	wantErr(t, err, ErrEmptyReason)

	first, err := e.mod.Report(e.ctx, models.TargetPost, post.ID, reader, "spam")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.mod.Report(e.ctx, models.TargetPost, post.ID, leader, "off topic")
	if err != nil {
		t.Fatal(err)
	}

	wantErr(t, e.mod.Resolve(e.ctx, first.ID, reader), ErrForbidden)
	wantErr(t, e.mod.ResolveAndRemove(e.ctx, first.ID, reader), ErrForbidden)

	if err := e.mod.ResolveAndRemove(e.ctx, first.ID, leader); err != nil {
		t.Fatalf("resolve and remove: %v", err)
	}

	if n := e.count(t, `SELECT count(*) FROM posts WHERE id = $1`, post.ID); n != 0 {
		t.Fatal("post not removed")
	}
	if n := e.count(t, `SELECT count(*) FROM comments WHERE post_id = $1`, post.ID); n != 0 {
		t.Fatal("comments not removed")
	}
	if n := e.count(t, `SELECT count(*) FROM post_likes WHERE post_id = $1`, post.ID); n != 0 {
		t.Fatal("likes not removed")
	}
	if n := e.count(t, `SELECT count(*) FROM reports WHERE id = $1`, second.ID); n != 0 {
		t.Fatal("other report on the removed post survived")
	}
	if n := e.count(t, `SELECT count(*) FROM reports WHERE id = $1 AND status = 'resolved'`, first.ID); n != 1 {
		t.Fatal("acted-on report not marked resolved")
	}

	open, err := e.mod.ListOpen(e.ctx, leader)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Fatalf("open reports = %d", len(open))
	}
}

func TestResolveKeepsTarget(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "Ana", models.RoleMember)
	admin := e.user(t, "Bia", models.RoleAdmin)

	post, err := e.feed.CreatePost(e.ctx, author, "hello")
	if err != nil {
		t.Fatal(err)
	}
	comment, err := e.feed.AddComment(e.ctx, post.ID, author, "first")
	if err != nil {
		t.Fatal(err)
	}
	report, err := e.mod.Report(e.ctx, models.TargetComment, comment.ID, admin, "rude")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.mod.Resolve(e.ctx, report.ID, admin); err != nil {
		t.Fatal(err)
	}
	if n := e.count(t, `SELECT count(*) FROM comments WHERE id = $1`, comment.ID); n != 1 {
		t.Fatal("resolve removed the comment")
	}
}

func TestDeleteAccount(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "Ana", models.RoleMember)
	v := e.user(t, "Bruno", models.RoleMember)
	e.connect(t, u, v)

	first, err := e.feed.CreatePost(e.ctx, u, "one")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.feed.CreatePost(e.ctx, u, "two"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.feed.AddComment(e.ctx, first.ID, v, "nice"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.feed.ToggleLike(e.ctx, first.ID, v); err != nil {
		t.Fatal(err)
	}
	if _, err := e.mod.Report(e.ctx, models.TargetPost, first.ID, v, "spam"); err != nil {
		t.Fatal(err)
	}

	photo, err := e.photos.CreatePhotoPost(e.ctx, u, "sunset", "sunset.jpg", strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.photos.AddComment(e.ctx, photo.ID, v, "beautiful"); err != nil {
		t.Fatal(err)
	}

	direct, err := e.convs.GetOrCreateDirect(e.ctx, u, v)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		sender := u
		if i%2 == 1 {
			sender = v
		}
		if _, err := e.convs.PostMessage(e.ctx, direct, sender, fmt.Sprintf("m%d", i), nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.convs.OpenConversation(e.ctx, direct, u); err != nil {
		t.Fatal(err)
	}

	// a group whose other members are gone vanishes with its last member
	w := e.user(t, "Carla", models.RoleMember)
	e.connect(t, u, w)
	lonely, err := e.convs.CreateGroup(e.ctx, u, "Lonely", []int64{v, w})
	if err != nil {
		t.Fatal(err)
	}
	for _, member := range []int64{v, w} {
		if _, err := e.pool.Exec(e.ctx, `DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`, lonely, member); err != nil {
			t.Fatal(err)
		}
	}

	if err := e.accounts.DeleteAccount(e.ctx, u); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	for _, q := range []string{
		`SELECT count(*) FROM posts WHERE user_id = $1`,
		`SELECT count(*) FROM comments WHERE user_id = $1`,
		`SELECT count(*) FROM post_likes WHERE user_id = $1`,
		`SELECT count(*) FROM photo_posts WHERE user_id = $1`,
		`SELECT count(*) FROM known_contacts WHERE user_id = $1 OR known_user_id = $1`,
		`SELECT count(*) FROM connection_requests WHERE requester_id = $1 OR receiver_id = $1`,
		`SELECT count(*) FROM messages WHERE sender_id = $1`,
		`SELECT count(*) FROM conversation_reads WHERE user_id = $1`,
		`SELECT count(*) FROM users WHERE id = $1`,
	} {
		if n := e.count(t, q, u); n != 0 {
			t.Errorf("%s = %d, want 0", q, n)
		}
	}
	if n := e.count(t, `SELECT count(*) FROM comments`); n != 0 {
		t.Errorf("comments on deleted posts survived: %d", n)
	}
	if n := e.count(t, `SELECT count(*) FROM photo_post_comments`); n != 0 {
		t.Errorf("photo comments survived: %d", n)
	}
	if n := e.count(t, `SELECT count(*) FROM reports`); n != 0 {
		t.Errorf("reports on deleted posts survived: %d", n)
	}

	members := e.count(t, `SELECT count(*) FROM conversation_members WHERE conversation_id = $1`, direct)
	onlyV := e.count(t, `SELECT count(*) FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`, direct, v)
	if members != 1 || onlyV != 1 {
		t.Fatalf("direct members = %d, v present = %d", members, onlyV)
	}
	if n := e.count(t, `SELECT count(*) FROM messages WHERE conversation_id = $1`, direct); n != 2 {
		t.Fatalf("remaining messages = %d, want the 2 sent by v", n)
	}
	if n := e.count(t, `SELECT count(*) FROM conversations WHERE id = $1`, lonely); n != 0 {
		t.Fatal("empty group conversation survived")
	}

	entries, err := os.ReadDir(e.uploads)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			t.Errorf("file %s left behind", entry.Name())
		}
	}

	wantErr(t, e.accounts.DeleteAccount(e.ctx, u), ErrUserNotFound)
}

func TestDeleteOwnAccountAdminHandover(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "Ana", models.RoleAdmin)
	member := e.user(t, "Bruno", models.RoleMember)

	err := e.accounts.DeleteOwnAccount(e.ctx, admin, "nope", member)
	if KindOf(err) != KindValidation {
		t.Fatalf("wrong confirmation: %v", err)
	}
	if err := e.accounts.DeleteOwnAccount(e.ctx, admin, "delete", 0); KindOf(err) != KindValidation {
		t.Fatalf("missing replacement: %v", err)
	}

	if err := e.accounts.DeleteOwnAccount(e.ctx, admin, "DELETE", member); err != nil {
		t.Fatalf("delete with handover: %v", err)
	}
	promoted, err := e.store.Users.GetByID(e.ctx, member)
	if err != nil {
		t.Fatal(err)
	}
	if promoted.Role != models.RoleAdmin {
		t.Fatalf("replacement role = %s", promoted.Role)
	}
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	e := newEnv(t)
	register := func(email string) (*models.User, error) {
		return e.users.Register(e.ctx, RegisterInput{
			Name:               "Ana",
			Email:              email,
			Password:           "s3cret-pass",
			PasswordConfirm:    "s3cret-pass",
			Church:             "Central",
			City:               "Recife",
			Country:            "Brazil",
			AgeBracket:         "18-25",
			AttestedLifeReview: true,
			AttestedBaptism:    true,
			PhotoName:          "me.png",
			Photo:              strings.NewReader("png bytes"),
		})
	}

	first, err := register("ana@example.org")
	if err != nil {
		t.Fatalf("register first: %v", err)
	}
	if first.Role != models.RoleAdmin || !first.Approved {
		t.Fatalf("first user = %s approved=%v", first.Role, first.Approved)
	}

	second, err := register("bia@example.org")
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.Role != models.RoleMember || second.Approved {
		t.Fatalf("second user = %s approved=%v", second.Role, second.Approved)
	}

	_, err = register("ANA@example.org")
	wantErr(t, err, ErrEmailTaken)

	_, err = e.users.Login(e.ctx, "bia@example.org", "s3cret-pass")
	wantErr(t, err, ErrPendingApproval)

	if err := e.accounts.ApproveRegistration(e.ctx, first.ID, second.ID); err != nil {
		t.Fatal(err)
	}
	res, err := e.users.Login(e.ctx, "bia@example.org", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	userID, sid, err := e.users.Authenticate(e.ctx, res.Token)
	if err != nil || userID != second.ID || sid != res.SessionID {
		t.Fatalf("authenticate = %d, %q, %v", userID, sid, err)
	}

	if err := e.users.Logout(e.ctx, sid); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.users.Authenticate(e.ctx, res.Token); err == nil {
		t.Fatal("token valid after logout")
	}

	_, err = e.users.Login(e.ctx, "bia@example.org", "wrong-pass")
	wantErr(t, err, ErrInvalidCredentials)

	types := strings.Join(e.events.Types(), ",")
	if strings.Count(types, events.UserRegistered) != 2 {
		t.Fatalf("events = %s", types)
	}
}
