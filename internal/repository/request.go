package repository

import (
	"context"
	"errors"
	"fmt"

	"community-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// ErrDuplicatePending is returned when a second pending request for the
// same ordered pair hits the partial unique index
var ErrDuplicatePending = errors.New("pending request already exists")

// RequestRepository handles database operations for connection requests
type RequestRepository struct {
	db DBTX
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db DBTX) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a pending request
func (r *RequestRepository) Create(ctx context.Context, requesterID, receiverID int64) (*models.ConnectionRequest, error) {
	query := `
		INSERT INTO connection_requests (requester_id, receiver_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING id, requester_id, receiver_id, status, created_at
	`
	var req models.ConnectionRequest
	err := r.db.QueryRow(ctx, query, requesterID, receiverID).Scan(
		&req.ID, &req.RequesterID, &req.ReceiverID, &req.Status, &req.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePending
		}
		return nil, fmt.Errorf("failed to create connection request: %w", err)
	}
	return &req, nil
}

// Get retrieves a request by ID. Status changes must go through Transition,
// which re-checks the status under the row lock.
func (r *RequestRepository) Get(ctx context.Context, id int64) (*models.ConnectionRequest, error) {
	query := `
		SELECT id, requester_id, receiver_id, status, created_at
		FROM connection_requests
		WHERE id = $1
	`
	var req models.ConnectionRequest
	err := r.db.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.RequesterID, &req.ReceiverID, &req.Status, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("connection request not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get connection request: %w", err)
	}
	return &req, nil
}

// FindPending returns the pending request requester->receiver, or nil
func (r *RequestRepository) FindPending(ctx context.Context, requesterID, receiverID int64) (*models.ConnectionRequest, error) {
	query := `
		SELECT id, requester_id, receiver_id, status, created_at
		FROM connection_requests
		WHERE requester_id = $1 AND receiver_id = $2 AND status = 'pending'
		FOR UPDATE
	`
	var req models.ConnectionRequest
	err := r.db.QueryRow(ctx, query, requesterID, receiverID).Scan(
		&req.ID, &req.RequesterID, &req.ReceiverID, &req.Status, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending request: %w", err)
	}
	return &req, nil
}

// Transition moves a pending request to status. It reports false when the
// request was no longer pending.
func (r *RequestRepository) Transition(ctx context.Context, id int64, status models.RequestStatus) (bool, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE connection_requests SET status = $1 WHERE id = $2 AND status = 'pending'`, status, id)
	if err != nil {
		return false, fmt.Errorf("failed to update connection request: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListIncoming returns pending requests received by userID, newest first
func (r *RequestRepository) ListIncoming(ctx context.Context, userID int64) ([]models.IncomingRequest, error) {
	query := `
		SELECT cr.id, cr.created_at, u.id, u.name, u.church, u.city, u.country, u.photo_url
		FROM connection_requests cr
		JOIN users u ON u.id = cr.requester_id
		WHERE cr.receiver_id = $1 AND cr.status = 'pending'
		ORDER BY cr.id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming requests: %w", err)
	}
	defer rows.Close()

	var requests []models.IncomingRequest
	for rows.Next() {
		var in models.IncomingRequest
		if err := rows.Scan(&in.ID, &in.CreatedAt, &in.Requester.ID, &in.Requester.Name,
			&in.Requester.Church, &in.Requester.City, &in.Requester.Country, &in.Requester.PhotoURL); err != nil {
			return nil, fmt.Errorf("failed to scan incoming request: %w", err)
		}
		requests = append(requests, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incoming requests: %w", err)
	}
	return requests, nil
}

// ListOutgoingReceivers returns the receivers of pending requests sent by userID
func (r *RequestRepository) ListOutgoingReceivers(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT receiver_id FROM connection_requests WHERE requester_id = $1 AND status = 'pending'`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing requests: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan receiver: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
