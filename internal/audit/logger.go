package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/amirk1998/notebox/internal/logger"
)

const schema = `
    CREATE TABLE IF NOT EXISTS audit_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL,
        level TEXT NOT NULL,
        user_id INTEGER,
        action TEXT NOT NULL,
        resource TEXT NOT NULL,
        ip_address TEXT,
        success BOOLEAN NOT NULL,
        error_msg TEXT,
        metadata TEXT,
        FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
    );

    CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
    CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_log(user_id);
    CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
    `

const queueSize = 1000

type Options struct {
	// FilePath receives one JSON event per line. Empty disables the file sink.
	FilePath string
	Async    bool
}

// Logger persists security events to the audit_log table and an optional
// JSON lines file.
type Logger struct {
	db      *sql.DB
	logFile *os.File
	log     *logger.Logger

	async  bool
	queue  chan *Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// NewLogger creates the audit table if needed and opens the file sink
func NewLogger(ctx context.Context, db *sql.DB, opts Options, log *logger.Logger) (*Logger, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create audit log table: %w", err)
	}

	al := &Logger{
		db:    db,
		log:   log.WithComponent("audit"),
		async: opts.Async,
		now:   time.Now,
	}

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		al.logFile = f
	}

	if al.async {
		al.queue = make(chan *Event, queueSize)
		al.wg.Add(1)
		go al.run()
	}

	return al, nil
}

// Log records an event. In async mode it only enqueues and fails when the
// queue is full.
func (al *Logger) Log(event *Event) error {
	event.Timestamp = al.now().UTC()

	al.mu.RLock()
	defer al.mu.RUnlock()
	if al.closed {
		return fmt.Errorf("audit logger is closed")
	}

	if al.async {
		select {
		case al.queue <- event:
			return nil
		default:
			return fmt.Errorf("audit log queue is full")
		}
	}

	return al.writeEvent(event)
}

func (al *Logger) writeEvent(event *Event) error {
	query := `
        INSERT INTO audit_log (
            timestamp, level, user_id, action, resource,
            ip_address, success, error_msg, metadata
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	var userID interface{}
	if event.UserID != nil {
		userID = *event.UserID
	}

	result, err := al.db.Exec(query,
		event.Timestamp,
		string(event.Level),
		userID,
		event.Action,
		event.Resource,
		event.IPAddress,
		event.Success,
		event.ErrorMsg,
		event.Metadata,
	)
	if err != nil {
		// the file sink still gets the event
		al.log.Errorw("Failed to write audit event to database", "action", event.Action, "error", err)
	} else {
		event.ID, _ = result.LastInsertId()
	}

	if al.logFile == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := al.logFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}
	return nil
}

func (al *Logger) run() {
	defer al.wg.Done()
	for event := range al.queue {
		if err := al.writeEvent(event); err != nil {
			al.log.Errorw("Failed to write audit event", "action", event.Action, "error", err)
		}
	}
}

// QueryLogs returns matching events, newest first
func (al *Logger) QueryLogs(ctx context.Context, filters QueryFilters) ([]*Event, error) {
	query := `
        SELECT id, timestamp, level, user_id, action, resource,
               ip_address, success, error_msg, metadata
        FROM audit_log
        WHERE 1=1
    `

	args := []interface{}{}

	if filters.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filters.StartTime.UTC())
	}
	if filters.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filters.EndTime.UTC())
	}
	if filters.UserID != nil {
		query += " AND user_id = ?"
		args = append(args, *filters.UserID)
	}
	if filters.Action != "" {
		query += " AND action = ?"
		args = append(args, filters.Action)
	}
	if filters.Level != "" {
		query += " AND level = ?"
		args = append(args, string(filters.Level))
	}

	if filters.Limit <= 0 {
		filters.Limit = 100
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, filters.Limit)

	rows, err := al.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var (
			level                  string
			userID                 sql.NullInt64
			ip, errorMsg, metadata sql.NullString
		)
		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&level,
			&userID,
			&event.Action,
			&event.Resource,
			&ip,
			&event.Success,
			&errorMsg,
			&metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		event.Level = LogLevel(level)
		if userID.Valid {
			event.UserID = UserRef(int(userID.Int64))
		}
		event.IPAddress = ip.String
		event.ErrorMsg = errorMsg.String
		event.Metadata = metadata.String
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return events, nil
}

// Close drains the async queue and closes the file sink
func (al *Logger) Close() error {
	al.mu.Lock()
	if al.closed {
		al.mu.Unlock()
		return nil
	}
	al.closed = true
	al.mu.Unlock()

	if al.async {
		close(al.queue)
		al.wg.Wait()
	}

	if al.logFile != nil {
		return al.logFile.Close()
	}
	return nil
}
