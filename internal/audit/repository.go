// Package audit records the commands sent to the hub and serves them back
// for the command history endpoint.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sources of a command.
const (
	SourceMQTT = "mqtt"
	SourceHTTP = "http"
)

// Operations recorded in the log.
const (
	OpSet       = "set"
	OpDiscovery = "discovery"
	OpRaw       = "raw"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one command sent to the hub.
type Entry struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Operation   string    `json:"operation"`
	DeviceID    *uint32   `json:"device_id,omitempty"`
	AttributeID *uint32   `json:"attribute_id,omitempty"`
	Attribute   string    `json:"attribute,omitempty"`
	Argument    string    `json:"argument,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Source    string  // optional: mqtt or http
	Operation string  // optional: set, discovery or raw
	DeviceID  *uint32 // optional
	Limit     int     // default 50, max 200
	Offset    int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and lists command log entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps the command log in the command_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, source, operation, device_id, attribute_id, attribute, argument, success, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.Operation,
		nullableID(e.DeviceID), nullableID(e.AttributeID),
		nullableString(e.Attribute), nullableString(e.Argument),
		e.Success, nullableString(e.Error), e.DurationMS,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log entry: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(id *uint32) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, filter.Operation)
	}
	if filter.DeviceID != nil {
		conditions = append(conditions, "device_id = ?")
		args = append(args, int64(*filter.DeviceID))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_log " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log entries: %w", err)
	}

	query := "SELECT id, source, operation, device_id, attribute_id, attribute, argument, success, error, duration_ms, created_at FROM command_log " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var deviceID, attributeID sql.NullInt64
	var attribute, argument, errText sql.NullString
	var createdAt string

	if err := rows.Scan(&e.ID, &e.Source, &e.Operation, &deviceID, &attributeID,
		&attribute, &argument, &e.Success, &errText, &e.DurationMS, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning command log entry: %w", err)
	}

	if deviceID.Valid {
		id := uint32(deviceID.Int64)
		e.DeviceID = &id
	}
	if attributeID.Valid {
		id := uint32(attributeID.Int64)
		e.AttributeID = &id
	}
	e.Attribute = attribute.String
	e.Argument = argument.String
	e.Error = errText.String

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}

// ErrorText returns err's message, or "" for nil.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// errNoRepository is returned by Nop.List.
var errNoRepository = errors.New("audit: command log is disabled")

// ErrDisabled reports whether err came from a disabled command log.
func ErrDisabled(err error) bool {
	return errors.Is(err, errNoRepository)
}

// Nop discards entries. It stands in when the database is disabled.
type Nop struct{}

// Create implements Repository.
func (Nop) Create(context.Context, *Entry) error { return nil }

// List implements Repository and always fails with a disabled error.
func (Nop) List(context.Context, Filter) (*ListResult, error) { return nil, errNoRepository }
