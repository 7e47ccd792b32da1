package repository

import (
	"context"
	"errors"
	"fmt"

	"community-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// ErrEmailTaken is returned when registering an email that already exists
var ErrEmailTaken = errors.New("email already registered")

const userColumns = `id, name, email, password_hash, church, city, country, phone,
	age_bracket, photo_url, role, approved, push_token, created_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Church, &u.City, &u.Country, &u.Phone,
		&u.AgeBracket, &u.PhotoURL, &u.Role, &u.Approved, &u.PushToken, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create creates a new user and fills in its id and creation time
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, church, city, country, phone,
			age_bracket, photo_url, role, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Church, user.City, user.Country,
		user.Phone, user.AgeBracket, user.PhotoURL, user.Role, user.Approved,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// LockRegistration serializes registrations for the rest of the
// transaction so only one registrant can observe an empty user table
func (r *UserRepository) LockRegistration(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('register', 0))`); err != nil {
		return fmt.Errorf("failed to lock registration: %w", err)
	}
	return nil
}

// Count returns the number of registered users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// Exists checks whether a user with the given id exists
func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// ExistsApproved checks whether an approved user with the given id exists
func (r *UserRepository) ExistsApproved(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND approved)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check approved user: %w", err)
	}
	return exists, nil
}

// LockPair takes row locks on both users in id order so that concurrent
// graph mutations touching the same pair are serialized. It returns the
// number of users found.
func (r *UserRepository) LockPair(ctx context.Context, a, b int64) (int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`, []int64{a, b})
	if err != nil {
		return 0, fmt.Errorf("failed to lock users: %w", err)
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		found++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating locked users: %w", err)
	}
	return found, nil
}

// ProfileUpdate holds editable profile fields. Nil pointers are left unchanged.
type ProfileUpdate struct {
	Name         string
	Church       string
	City         string
	Country      string
	Phone        string
	AgeBracket   string
	PasswordHash *string
	PhotoURL     *string
}

// UpdateProfile updates the profile fields of a user
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) error {
	query := `
		UPDATE users SET
			name = $1, church = $2, city = $3, country = $4, phone = $5, age_bracket = $6,
			password_hash = COALESCE($7, password_hash),
			photo_url = COALESCE($8, photo_url)
		WHERE id = $9
	`
	result, err := r.db.Exec(ctx, query,
		p.Name, p.Church, p.City, p.Country, p.Phone, p.AgeBracket, p.PasswordHash, p.PhotoURL, id)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}

// UpdatePasswordHash replaces a user's password hash
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	return nil
}

// UpdateRole changes a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role models.Role) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}

// SetApproved marks a registration as approved
func (r *UserRepository) SetApproved(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET approved = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to approve user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID int64, pushToken *string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET push_token = $1 WHERE id = $2`, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// PushTokens returns the push tokens of the given users that registered one
func (r *UserRepository) PushTokens(ctx context.Context, ids []int64) (map[int64]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, push_token FROM users WHERE id = ANY($1) AND push_token IS NOT NULL AND push_token <> ''`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get push tokens: %w", err)
	}
	defer rows.Close()

	tokens := make(map[int64]string)
	for rows.Next() {
		var id int64
		var token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		tokens[id] = token
	}
	return tokens, rows.Err()
}

// Search lists approved members, optionally filtered by a lower-case
// substring of name, church, city or country
func (r *UserRepository) Search(ctx context.Context, term string) ([]models.MemberSummary, error) {
	query := `
		SELECT id, name, church, city, country, phone, age_bracket, photo_url, role
		FROM users
		WHERE approved
		  AND ($1 = '' OR lower(name) LIKE $2 OR lower(church) LIKE $2
		       OR lower(city) LIKE $2 OR lower(country) LIKE $2)
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, term, "%"+term+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search members: %w", err)
	}
	defer rows.Close()

	var members []models.MemberSummary
	for rows.Next() {
		var m models.MemberSummary
		if err := rows.Scan(&m.ID, &m.Name, &m.Church, &m.City, &m.Country, &m.Phone,
			&m.AgeBracket, &m.PhotoURL, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

// ListPending lists registrations awaiting approval, newest first
func (r *UserRepository) ListPending(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE NOT approved ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Stats returns the per-user counters
func (r *UserRepository) Stats(ctx context.Context, id int64) (models.UserStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM posts WHERE user_id = $1),
			(SELECT COUNT(*) FROM comments WHERE user_id = $1),
			(SELECT COUNT(*) FROM known_contacts WHERE user_id = $1),
			(SELECT COUNT(*) FROM post_likes pl JOIN posts p ON p.id = pl.post_id WHERE p.user_id = $1)
	`
	var s models.UserStats
	if err := r.db.QueryRow(ctx, query, id).Scan(&s.Posts, &s.Comments, &s.Contacts, &s.LikesReceived); err != nil {
		return s, fmt.Errorf("failed to get user stats: %w", err)
	}
	return s, nil
}

// CommunityStats returns the global counters
func (r *UserRepository) CommunityStats(ctx context.Context) (models.CommunityStats, error) {
	var s models.CommunityStats
	err := r.db.QueryRow(ctx, `SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM posts)`).
		Scan(&s.TotalMembers, &s.TotalPosts)
	if err != nil {
		return s, fmt.Errorf("failed to get community stats: %w", err)
	}
	return s, nil
}
