package audit

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLogger stores audit events in an append-only SQLite table.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger opens (creating if needed) the audit database at path.
func NewSQLiteLogger(path string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit schema: %w", err)
	}
	return &SQLiteLogger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			run_id TEXT,
			type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			user TEXT,
			site TEXT,
			resource TEXT,
			operation TEXT,
			task_id TEXT,
			items INTEGER,
			success INTEGER NOT NULL,
			error TEXT,
			execute_mode INTEGER NOT NULL,
			duration_ns INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_audit_site_ts ON audit_events(site, timestamp);
	`)
	return err
}

// Log inserts event.
func (l *SQLiteLogger) Log(event *Event) error {
	_, err := l.db.Exec(`
		INSERT INTO audit_events (id, run_id, type, timestamp, user, site, resource, operation,
			task_id, items, success, error, execute_mode, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.RunID, string(event.Type), event.Timestamp.UTC().UnixNano(),
		event.User, event.Site, event.Resource, event.Operation,
		event.TaskID, event.Items, event.Success, event.Error, event.ExecuteMode,
		int64(event.Duration))
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// Query returns events matching filter in insertion order.
func (l *SQLiteLogger) Query(filter Filter) ([]*Event, error) {
	var where []string
	var args []any
	eq := func(col, v string) {
		if v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	eq("run_id", filter.RunID)
	eq("user", filter.User)
	eq("site", filter.Site)
	eq("resource", filter.Resource)
	eq("operation", filter.Operation)
	eq("type", string(filter.Type))
	if !filter.StartTime.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.StartTime.UTC().UnixNano())
	}
	if !filter.EndTime.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.EndTime.UTC().UnixNano())
	}
	if filter.SuccessOnly {
		where = append(where, "success = 1")
	}
	if filter.FailureOnly {
		where = append(where, "success = 0")
	}

	q := `SELECT id, run_id, type, timestamp, user, site, resource, operation,
		task_id, items, success, error, execute_mode, duration_ns FROM audit_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		q += " LIMIT -1"
	}
	if filter.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		var e Event
		var runID, user, site, resource, operation, taskID, errText sql.NullString
		var items, duration sql.NullInt64
		var ts int64
		var typ string
		if err := rows.Scan(&e.ID, &runID, &typ, &ts, &user, &site, &resource, &operation,
			&taskID, &items, &e.Success, &errText, &e.ExecuteMode, &duration); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		e.Timestamp = time.Unix(0, ts).UTC()
		e.RunID = runID.String
		e.User = user.String
		e.Site = site.String
		e.Resource = resource.String
		e.Operation = operation.String
		e.TaskID = taskID.String
		e.Items = int(items.Int64)
		e.Error = errText.String
		e.Duration = time.Duration(duration.Int64)
		e.DryRun = !e.ExecuteMode
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Close closes the database.
func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}
