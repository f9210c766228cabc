/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists what the reference plan service needs (users and their plans)
  and, in the same file format, the client's offline copy of its plan
  collection. One database can hold both; in practice the server and the
  client each open their own.

INTERFACES IMPLEMENTED:
  store.Repository:  Users and per-owner plans (server side)
  planstore.Cache:   Offline plan collection, via ForOwner (client side)

KEY TABLES:
  users:         Accounts; email is unique, case-insensitive
  plans:         One row per plan; record_json holds the wire record
  cached_plans:  Client snapshot, one row per plan, ordered by position

RECORD FORMAT:
  Plans are stored as the same JSON record the REST surface exchanges
  (wire.PlanRecord), so stored rows and responses cannot drift apart.
  estado is duplicated in a column for filtering.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite serialises writers anyway;
  the mutex keeps multi-statement writes (cache replacement) atomic with
  respect to readers of this process.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  db, err := sqlite.New("./data/perugo.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

  store := planstore.New(client)
  store.Cache = db.ForOwner(user.ID)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory.go: In-memory implementation for testing
  - planstore/interfaces.go: The Cache contract
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/store"
	"github.com/perugo/reservation-engine/wire"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		username TEXT NOT NULL,
		password_hash BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		estado TEXT NOT NULL,
		record_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Owner listing (hot path of GET /api/planes)
	CREATE INDEX IF NOT EXISTS idx_plans_owner
		ON plans(owner_id);

	CREATE INDEX IF NOT EXISTS idx_plans_estado
		ON plans(estado);

	-- Client offline snapshot. No foreign key: the owner lives on the server.
	CREATE TABLE IF NOT EXISTS cached_plans (
		owner TEXT NOT NULL,
		position INTEGER NOT NULL,
		plan_id TEXT NOT NULL,
		record_json TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		PRIMARY KEY (owner, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER STORE
// =============================================================================

// CreateUser inserts an account. A second account for the same email
// fails with store.ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, store.NormalizeEmail(u.Email), u.Username, u.PasswordHash,
		createdAt.Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return store.ErrEmailTaken
	}
	return err
}

// UserByEmail retrieves an account by email, ignoring case.
func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUser(ctx,
		"SELECT id, email, username, password_hash, created_at FROM users WHERE email = ?",
		store.NormalizeEmail(email),
	)
}

// UserByID retrieves an account by ID.
func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUser(ctx,
		"SELECT id, email, username, password_hash, created_at FROM users WHERE id = ?",
		id,
	)
}

// UpdateUsername renames an account and returns it.
func (s *Store) UpdateUsername(ctx context.Context, id, username string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE users SET username = ? WHERE id = ?", username, id)
	if err != nil {
		return store.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.User{}, store.ErrUserNotFound
	}
	return s.queryUser(ctx,
		"SELECT id, email, username, password_hash, created_at FROM users WHERE id = ?",
		id,
	)
}

func (s *Store) queryUser(ctx context.Context, query string, args ...any) (store.User, error) {
	var u store.User
	var createdAt string

	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.User{}, err
	}

	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return u, nil
}

// =============================================================================
// PLAN STORE
// =============================================================================

// SavePlan inserts or replaces a plan of owner. A plan id held by another
// owner is reported as not found and left untouched.
func (s *Store) SavePlan(ctx context.Context, owner string, p plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodePlan(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO plans (id, owner_id, estado, record_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			estado = excluded.estado,
			record_json = excluded.record_json,
			updated_at = excluded.updated_at
		WHERE plans.owner_id = excluded.owner_id
	`

	res, err := s.db.ExecContext(ctx, query,
		string(p.ID), owner, wire.EncodeState(p.State), data, now, now,
	)
	if err != nil {
		return fmt.Errorf("save plan %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &plan.NotFoundError{ID: p.ID}
	}
	return nil
}

// ListPlans returns owner's plans in creation order. An upsert keeps the
// row, so replacing a plan does not move it.
func (s *Store) ListPlans(ctx context.Context, owner string) ([]plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT record_json FROM plans WHERE owner_id = ? ORDER BY rowid",
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlans(rows)
}

// GetPlan retrieves one of owner's plans.
func (s *Store) GetPlan(ctx context.Context, owner string, id plan.ID) (plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT record_json FROM plans WHERE id = ? AND owner_id = ?",
		string(id), owner,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return plan.Plan{}, &plan.NotFoundError{ID: id}
	}
	if err != nil {
		return plan.Plan{}, err
	}
	return decodePlan(data)
}

// DeletePlan removes one of owner's plans.
func (s *Store) DeletePlan(ctx context.Context, owner string, id plan.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM plans WHERE id = ? AND owner_id = ?", string(id), owner)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &plan.NotFoundError{ID: id}
	}
	return nil
}

// =============================================================================
// CLIENT CACHE (planstore.Cache)
// =============================================================================

// Cache is one owner's offline plan collection.
type Cache struct {
	store *Store
	owner string
}

// ForOwner returns the cache of a signed-in user. Different owners sharing
// a database never see each other's plans.
func (s *Store) ForOwner(owner string) *Cache {
	return &Cache{store: s, owner: owner}
}

// SavePlans replaces the cached collection atomically.
func (c *Cache) SavePlans(ctx context.Context, plans []plan.Plan) error {
	return c.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cached_plans WHERE owner = ?", c.owner); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO cached_plans (owner, position, plan_id, record_json, saved_at) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC().Format(time.RFC3339)
		for i, p := range plans {
			data, err := encodePlan(p)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, c.owner, i, string(p.ID), data, now); err != nil {
				return fmt.Errorf("cache plan %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// CachedPlans returns the collection last saved, in order. An owner that
// never saved gets an empty collection.
func (c *Cache) CachedPlans(ctx context.Context) ([]plan.Plan, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	rows, err := c.store.db.QueryContext(ctx,
		"SELECT record_json FROM cached_plans WHERE owner = ? ORDER BY position",
		c.owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlans(rows)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"cached_plans", "plans", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func encodePlan(p plan.Plan) (string, error) {
	data, err := json.Marshal(wire.FromPlan(p))
	if err != nil {
		return "", fmt.Errorf("encode plan %s: %w", p.ID, err)
	}
	return string(data), nil
}

func decodePlan(data string) (plan.Plan, error) {
	var rec wire.PlanRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return plan.Plan{}, fmt.Errorf("decode stored plan: %w", err)
	}
	p, _, err := rec.ToPlan()
	if err != nil {
		return plan.Plan{}, fmt.Errorf("decode stored plan %s: %w", rec.ID, err)
	}
	return p, nil
}

func scanPlans(rows *sql.Rows) ([]plan.Plan, error) {
	var plans []plan.Plan
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		p, err := decodePlan(data)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
