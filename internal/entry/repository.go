package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// Repository defines persistence for configuration entries.
type Repository interface {
	// List returns all entries ordered by creation time.
	List(ctx context.Context) ([]Entry, error)

	// Get returns the entry with id, or ErrEntryNotFound.
	Get(ctx context.Context, id string) (*Entry, error)

	// GetByUniqueID returns the entry for a station identity, or ErrEntryNotFound.
	GetByUniqueID(ctx context.Context, uniqueID string) (*Entry, error)

	// GetByHost returns the first entry polling host, or ErrEntryNotFound.
	GetByHost(ctx context.Context, host string) (*Entry, error)

	// Create assigns an ID and timestamps and stores e.
	// Returns ErrEntryExists if the unique id is already configured.
	Create(ctx context.Context, e *Entry) error

	// UpdateOptions changes the polling interval of an entry.
	UpdateOptions(ctx context.Context, id string, opts Options) (*Entry, error)

	// Delete removes an entry, or returns ErrEntryNotFound.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the station_entries table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `
	SELECT id, unique_id, title, host, name, scan_interval, source, created_at, updated_at
	FROM station_entries`

// List returns all entries ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// Get returns the entry with id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Entry, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = ?`, id)
}

// GetByUniqueID returns the entry for a station identity.
func (r *SQLiteRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*Entry, error) {
	return r.getOne(ctx, selectColumns+` WHERE unique_id = ?`, uniqueID)
}

// GetByHost returns the oldest entry polling host.
func (r *SQLiteRepository) GetByHost(ctx context.Context, host string) (*Entry, error) {
	return r.getOne(ctx, selectColumns+` WHERE host = ? ORDER BY created_at LIMIT 1`, host)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg any) (*Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// Create stores a new entry.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Source == "" {
		e.Source = SourceAPI
	}
	now := r.now()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO station_entries
			(id, unique_id, title, host, name, scan_interval, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UniqueID, e.Title, e.Host, e.Name, e.ScanInterval, string(e.Source),
		now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrEntryExists, e.UniqueID)
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// UpdateOptions changes the polling interval of an entry.
func (r *SQLiteRepository) UpdateOptions(ctx context.Context, id string, opts Options) (*Entry, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE station_entries SET scan_interval = ?, updated_at = ? WHERE id = ?`,
		opts.ScanInterval, r.now().Format(timeLayout), id)
	if err != nil {
		return nil, fmt.Errorf("updating entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports
		return nil, ErrEntryNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes an entry.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM station_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports
		return ErrEntryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                    Entry
		source               string
		createdAt, updatedAt string
	)
	err := row.Scan(&e.ID, &e.UniqueID, &e.Title, &e.Host, &e.Name, &e.ScanInterval,
		&source, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entry: %w", err)
	}
	e.Source = Source(source)
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt) //nolint:errcheck // written by Create
	e.UpdatedAt, _ = time.Parse(timeLayout, updatedAt) //nolint:errcheck // written by Create
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
