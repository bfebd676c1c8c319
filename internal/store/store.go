package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dreamspy/mnemo/internal/migrations"
	"github.com/dreamspy/mnemo/internal/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const tokenKey = "token"

// Store is the durable offline queue, persisted in SQLite so it
// survives restarts. Every mutation is written through immediately.
// The store also keeps the API token, mirroring what the app would put
// in device-local storage.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the queue database at dbPath and
// applies the schema.
func New(dbPath string) (*Store, error) {
	return NewWithLogger(dbPath, nil)
}

// NewWithLogger is New with an explicit logger. A file that cannot be
// opened as a SQLite database is moved aside and replaced with an empty
// queue: corrupted storage degrades, it never blocks the client.
func NewWithLogger(dbPath string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	db, err := openAndInit(dbPath)
	if err == nil {
		return &Store{db: db}, nil
	}
	if !isCorruptDatabase(err) {
		return nil, err
	}

	backupPath := dbPath + ".corrupt"
	if renameErr := os.Rename(dbPath, backupPath); renameErr != nil {
		return nil, fmt.Errorf("failed to move corrupt queue database aside: %v (open error: %w)", renameErr, err)
	}
	logger.WithFields(logrus.Fields{
		"path":   dbPath,
		"backup": backupPath,
	}).Warn("Queue database was corrupt, starting with an empty queue")

	db, err = openAndInit(dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func openAndInit(dbPath string) (*sql.DB, error) {
	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close queue database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping queue database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping queue database: %w", err)
	}

	schema, err := migrations.InitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// isCorruptDatabase reports whether err means the file exists but is
// not usable as a SQLite database, as opposed to an I/O or path error.
func isCorruptDatabase(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "not a database") ||
		strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is encrypted")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the queue in insertion order. Any row left in syncing
// state by an abnormal termination is coerced back to pending first, so
// it stays eligible for the next drain. Rows whose payload is not valid
// JSON are dropped rather than poisoning the queue.
func (s *Store) Load(ctx context.Context) ([]models.QueueItem, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET status = ? WHERE status = ?`,
		models.StatusPending, models.StatusSyncing,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reset in-flight items: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, error, payload, created_at
		FROM queue_items
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	var corrupt []string
	for rows.Next() {
		var item models.QueueItem
		var errMsg sql.NullString
		var payload, createdAt string
		if err := rows.Scan(&item.ID, &item.Kind, &item.Status, &errMsg, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		if !json.Valid([]byte(payload)) {
			corrupt = append(corrupt, item.ID)
			continue
		}
		item.Payload = json.RawMessage(payload)
		item.Error = errMsg.String
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			item.CreatedAt = ts
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue: %w", err)
	}

	for _, id := range corrupt {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to drop corrupt queue item: %w", err)
		}
	}

	return items, nil
}

// Save replaces the entire queue with items, preserving their order.
// Callers read-modify-write the whole sequence; there are no partial
// merge semantics.
func (s *Store) Save(ctx context.Context, items []models.QueueItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin save: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	for _, item := range items {
		if err := insertItem(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}
	return nil
}

// Append persists a new pending item for the given operation and
// returns it. The payload is captured verbatim so replay needs nothing
// beyond the stored row.
func (s *Store) Append(ctx context.Context, kind models.OperationKind, payload interface{}) (*models.QueueItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	item := models.QueueItem{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Kind:      kind,
		Status:    models.StatusPending,
		Payload:   raw,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin append: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertItem(ctx, tx, item); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit append: %w", err)
	}

	return &item, nil
}

// Remove deletes the item with the given id. Removing an absent id is
// a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove queue item: %w", err)
	}
	return nil
}

// UpdateItem writes through the item's status and error fields. Used
// mid-drain so an observer reading the store sees the in-flight state.
func (s *Store) UpdateItem(ctx context.Context, item *models.QueueItem) error {
	var errMsg interface{}
	if item.Error != "" {
		errMsg = item.Error
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE queue_items SET status = ?, error = ? WHERE id = ?`,
		item.Status, errMsg, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("queue item %s not found", item.ID)
	}
	return nil
}

// Count returns the number of queued items, all statuses included.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

// Token returns the stored API token, or empty when none is set.
func (s *Store) Token(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, tokenKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return value, nil
}

// SetToken stores the API token.
func (s *Store) SetToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, tokenKey, token)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, item models.QueueItem) error {
	var errMsg interface{}
	if item.Error != "" {
		errMsg = item.Error
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO queue_items (id, kind, status, error, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		item.ID, item.Kind, item.Status, errMsg,
		string(item.Payload), item.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue item %s: %w", item.ID, err)
	}
	return nil
}
