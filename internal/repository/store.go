package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is wrapped by every lookup that finds no row
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so a repository
// can run either on the pool or inside a unit of work.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every table repository bound to the same DBTX
type Repositories struct {
	Users         *UserRepository
	Contacts      *ContactRepository
	Requests      *RequestRepository
	Conversations *ConversationRepository
	Messages      *MessageRepository
	Reports       *ReportRepository
	Posts         *PostRepository
	Photos        *PhotoRepository
	Accounts      *AccountRepository
}

// New binds all repositories to db
func New(db DBTX) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Contacts:      NewContactRepository(db),
		Requests:      NewRequestRepository(db),
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
		Reports:       NewReportRepository(db),
		Posts:         NewPostRepository(db),
		Photos:        NewPhotoRepository(db),
		Accounts:      NewAccountRepository(db),
	}
}

// Store owns the connection pool. Its embedded repositories run single
// statements on the pool; WithTx scopes a multi-statement unit of work.
type Store struct {
	*Repositories
	pool *pgxpool.Pool
}

// NewStore creates a store over pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Repositories: New(pool), pool: pool}
}

// Pool exposes the underlying pool for health checks and backups
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(r *Repositories) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies all pending embedded migrations
func Migrate(pool *pgxpool.Pool) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Tables lists application tables in an order safe for restore
var Tables = []string{
	"users",
	"posts",
	"comments",
	"post_likes",
	"photo_posts",
	"photo_post_likes",
	"photo_post_comments",
	"reports",
	"known_contacts",
	"connection_requests",
	"conversations",
	"conversation_members",
	"messages",
	"conversation_reads",
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
