// Package framelog appends observed frame changes to a sqlite database so
// a session on the bus can be inspected after the terminal display is
// gone. The log is append-only; it is not cache persistence.
package framelog

import (
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/canwatch/internal/canbus"
	"github.com/banshee-data/canwatch/internal/observe"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Log records frame changes for one monitoring session.
type Log struct {
	db      *sql.DB
	session string
}

// Open opens (creating if needed) the sqlite database at path, applies
// pending schema migrations and starts a new session.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open frame log %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate frame log %s: %w", path, err)
	}
	return &Log{
		db:      db,
		session: uuid.New().String(),
	}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	// Note: not closing m, that would close the shared DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Session returns the UUID identifying this monitoring session.
func (l *Log) Session() string {
	return l.session
}

// Record appends one change to the log. Callers only pass Inserted and
// UpdatedChanged merges; identical refreshes are not worth a row.
func (l *Log) Record(f canbus.Frame, kind observe.ChangeKind, wall time.Time) error {
	extended := 0
	if f.ID.Extended() {
		extended = 1
	}
	_, err := l.db.Exec(`
		INSERT INTO frame_log (
			session_id, wall_time_ns, change_kind, can_id, extended, length, payload_hex
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		l.session,
		wall.UnixNano(),
		kind.String(),
		f.ID.Value(),
		extended,
		f.Length,
		hex.EncodeToString(f.Data()),
	)
	if err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	return nil
}

// Entry is one logged change.
type Entry struct {
	Session    string
	WallTimeNs int64
	ChangeKind string
	ID         canbus.Identifier
	Length     uint8
	PayloadHex string
}

// Entries returns the logged changes for a session in insertion order.
func (l *Log) Entries(session string) ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT session_id, wall_time_ns, change_kind, can_id, extended, length, payload_hex
		FROM frame_log
		WHERE session_id = ?
		ORDER BY rowid
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query frame log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var canID uint32
		var extended int
		if err := rows.Scan(&e.Session, &e.WallTimeNs, &e.ChangeKind, &canID, &extended, &e.Length, &e.PayloadHex); err != nil {
			return nil, fmt.Errorf("scan frame log row: %w", err)
		}
		if extended != 0 {
			e.ID = canbus.ExtendedID(canID)
		} else {
			e.ID = canbus.StandardID(uint16(canID))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read frame log rows: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
