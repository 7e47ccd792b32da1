package repository

import (
	"context"
	"fmt"

	"community-backend/internal/models"
)

// ContactRepository manages the known-contact relation. A contact is an
// undirected edge stored as two mirrored rows; both rows are always written
// and removed by a single statement so no reader sees only one side.
type ContactRepository struct {
	db DBTX
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db DBTX) *ContactRepository {
	return &ContactRepository{db: db}
}

// Link materializes the symmetric edge a<->b. Rows that already exist are
// left alone, so concurrent accepts of the same pair do not conflict.
func (r *ContactRepository) Link(ctx context.Context, a, b int64) error {
	query := `
		INSERT INTO known_contacts (user_id, known_user_id)
		VALUES ($1, $2), ($2, $1)
		ON CONFLICT (user_id, known_user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, a, b); err != nil {
		return fmt.Errorf("failed to link contacts: %w", err)
	}
	return nil
}

// Unlink removes both directions of the edge a<->b. Absent edges are a no-op.
func (r *ContactRepository) Unlink(ctx context.Context, a, b int64) error {
	query := `
		DELETE FROM known_contacts
		WHERE (user_id = $1 AND known_user_id = $2)
		   OR (user_id = $2 AND known_user_id = $1)
	`
	if _, err := r.db.Exec(ctx, query, a, b); err != nil {
		return fmt.Errorf("failed to unlink contacts: %w", err)
	}
	return nil
}

// Knows reports whether owner has peer as a known contact
func (r *ContactRepository) Knows(ctx context.Context, owner, peer int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM known_contacts WHERE user_id = $1 AND known_user_id = $2)`,
		owner, peer).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check contact: %w", err)
	}
	return exists, nil
}

// List returns the known contacts of owner ordered by name
func (r *ContactRepository) List(ctx context.Context, owner int64) ([]models.MemberSummary, error) {
	query := `
		SELECT u.id, u.name, u.church, u.city, u.country, u.phone, u.photo_url
		FROM known_contacts kc
		JOIN users u ON u.id = kc.known_user_id
		WHERE kc.user_id = $1
		ORDER BY u.name
	`
	rows, err := r.db.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.MemberSummary
	for rows.Next() {
		var m models.MemberSummary
		if err := rows.Scan(&m.ID, &m.Name, &m.Church, &m.City, &m.Country, &m.Phone, &m.PhotoURL); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}
	return contacts, nil
}

// KnownIDs returns the ids of all contacts of owner
func (r *ContactRepository) KnownIDs(ctx context.Context, owner int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT known_user_id FROM known_contacts WHERE user_id = $1`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan contact id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
