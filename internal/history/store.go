package history

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gitchzh/Yeguo-IDM/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by Get when no record exists for the ID.
var ErrNotFound = errors.New("history: record not found")

// Store keeps task snapshots in an in-memory SQLite database. Nothing is
// written to disk; the store lives and dies with the process. Latest write
// per task ID wins, while the original insertion order is preserved.
type Store struct {
	db *sqlx.DB
}

// New opens the in-memory database and applies the schema
func New() (*Store, error) {
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// The whole database lives inside one connection; a second connection
	// would see a separate empty :memory: instance.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: sqlx.NewDb(sqlDB, "sqlite3")}, nil
}

// runMigrations applies the embedded schema with golang-migrate
func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the database and discards all records
func (s *Store) Close() error {
	return s.db.Close()
}

// taskRow maps the history table to a struct
type taskRow struct {
	ID              string         `db:"id"`
	URL             string         `db:"url"`
	FormatSelector  string         `db:"format_selector"`
	DestinationPath string         `db:"destination_path"`
	Status          string         `db:"status"`
	Progress        float64        `db:"progress"`
	Error           sql.NullString `db:"error"`
	Title           sql.NullString `db:"title"`
	FileSize        int64          `db:"file_size"`
	CreatedAt       int64          `db:"created_at"`
	StartedAt       int64          `db:"started_at"`
	FinishedAt      int64          `db:"finished_at"`
	RecordedAt      int64          `db:"recorded_at"`
}

const selectColumns = `id, url, format_selector, destination_path, status, progress,
	error, title, file_size, created_at, started_at, finished_at, recorded_at`

// Record inserts or updates the snapshot for task.ID. Identity fields keep
// their first-write values; everything mutable takes the latest write.
func (s *Store) Record(task model.Task) error {
	row := taskToRow(task)
	row.RecordedAt = time.Now().UnixNano()

	_, err := s.db.NamedExec(`
		INSERT INTO history (id, url, format_selector, destination_path, status, progress,
			error, title, file_size, created_at, started_at, finished_at, recorded_at)
		VALUES (:id, :url, :format_selector, :destination_path, :status, :progress,
			:error, :title, :file_size, :created_at, :started_at, :finished_at, :recorded_at)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			error = excluded.error,
			title = excluded.title,
			file_size = excluded.file_size,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			recorded_at = excluded.recorded_at
	`, row)
	if err != nil {
		return fmt.Errorf("record task %s: %w", task.ID, err)
	}
	return nil
}

// Get returns the record with the given ID
func (s *Store) Get(id string) (model.Task, error) {
	var row taskRow
	err := s.db.Get(&row, "SELECT "+selectColumns+" FROM history WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return rowToTask(&row), nil
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Status      model.Status // exact status match
	URLContains string       // substring of the url
	Keyword     string       // substring of the url or the title
	Since       time.Time    // created at or after
	Until       time.Time    // created at or before
}

// Query returns the matching records in insertion order. Every call runs a
// fresh query, so the result reflects the state at call time.
func (s *Store) Query(f Filter) ([]model.Task, error) {
	query := "SELECT " + selectColumns + " FROM history"
	var conds []string
	var args []any

	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.URLContains != "" {
		conds = append(conds, "url LIKE ?")
		args = append(args, "%"+f.URLContains+"%")
	}
	if f.Keyword != "" {
		conds = append(conds, "(url LIKE ? OR title LIKE ?)")
		args = append(args, "%"+f.Keyword+"%", "%"+f.Keyword+"%")
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.Until.UnixNano())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY rowid"

	var rows []taskRow
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, rowToTask(&rows[i]))
	}
	return tasks, nil
}

// Clear removes every record. Called at teardown or on explicit user action.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// ClearBefore prunes records that reached a terminal state before t and
// returns how many were removed. Unfinished records are never pruned.
func (s *Store) ClearBefore(t time.Time) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM history WHERE finished_at != 0 AND finished_at < ?",
		t.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("clear history before %s: %w", t, err)
	}
	return res.RowsAffected()
}

// Stats summarizes the store contents
type Stats struct {
	Total          int
	ByStatus       map[model.Status]int
	CompletedBytes int64 // total size of completed downloads
}

// Statistics counts records per status and sums completed download sizes
func (s *Store) Statistics() (Stats, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"n"`
		Bytes  int64  `db:"bytes"`
	}
	err := s.db.Select(&rows,
		"SELECT status, COUNT(*) AS n, COALESCE(SUM(file_size), 0) AS bytes FROM history GROUP BY status")
	if err != nil {
		return Stats{}, fmt.Errorf("history statistics: %w", err)
	}

	stats := Stats{ByStatus: make(map[model.Status]int)}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByStatus[model.Status(row.Status)] = row.Count
		if row.Status == string(model.StatusCompleted) {
			stats.CompletedBytes = row.Bytes
		}
	}
	return stats, nil
}

func taskToRow(task model.Task) taskRow {
	return taskRow{
		ID:              task.ID,
		URL:             task.URL,
		FormatSelector:  task.FormatSelector,
		DestinationPath: task.DestinationPath,
		Status:          string(task.Status),
		Progress:        task.Progress,
		Error:           sql.NullString{String: task.Err, Valid: task.Err != ""},
		Title:           sql.NullString{String: task.Title, Valid: task.Title != ""},
		FileSize:        task.FileSize,
		CreatedAt:       timeToUnix(task.CreatedAt),
		StartedAt:       timeToUnix(task.StartedAt),
		FinishedAt:      timeToUnix(task.FinishedAt),
	}
}

func rowToTask(row *taskRow) model.Task {
	return model.Task{
		ID:              row.ID,
		URL:             row.URL,
		FormatSelector:  row.FormatSelector,
		DestinationPath: row.DestinationPath,
		Status:          model.Status(row.Status),
		Progress:        row.Progress,
		Err:             row.Error.String,
		Title:           row.Title.String,
		FileSize:        row.FileSize,
		ETASec:          -1,
		CreatedAt:       unixToTime(row.CreatedAt),
		StartedAt:       unixToTime(row.StartedAt),
		FinishedAt:      unixToTime(row.FinishedAt),
	}
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func unixToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
