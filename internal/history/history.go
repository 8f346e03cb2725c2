// Package history keeps a local SQLite record of submitted scans and how
// they ended.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/controller"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a scan is not in the history.
var ErrNotFound = errors.New("scan not found in history")

// Status values stored for scans that did not reach a service status.
const (
	StatusSubmitted = "submitted"
	StatusStopped   = "stopped"
	StatusError     = "error"
)

// Entry is one scan in the history.
type Entry struct {
	ScanID        string     `json:"scan_id"`
	IPRange       string     `json:"ip_range"`
	Gateway       *string    `json:"gateway,omitempty"`
	Ports         []int      `json:"ports"`
	Demo          bool       `json:"demo"`
	Status        string     `json:"status"`
	Mode          string     `json:"mode,omitempty"`
	HostCount     int        `json:"host_count"`
	OpenPortCount int        `json:"open_port_count"`
	Error         string     `json:"error,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Store is a SQLite backed scan history.
type Store struct {
	db *sql.DB
}

// Open connects to the database at path, creating it and its schema if
// needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for history: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS scans (
		scan_id TEXT PRIMARY KEY,
		ip_range TEXT NOT NULL,
		gateway TEXT,
		ports TEXT NOT NULL,
		demo INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		mode TEXT,
		host_count INTEGER NOT NULL DEFAULT 0,
		open_port_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		submitted_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create scans table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_scans_submitted_at ON scans(submitted_at)`)
	if err != nil {
		return fmt.Errorf("failed to create scans index: %w", err)
	}
	return nil
}

// HandleScanEvent records controller lifecycle events. Events without a scan
// id, such as rejected submissions, are not recorded.
func (s *Store) HandleScanEvent(ctx context.Context, e controller.Event) error {
	if e.ScanID == "" {
		return nil
	}

	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch e.Type {
	case controller.EventSubmitted:
		return s.recordSubmitted(ctx, e, at)
	case controller.EventCompleted, controller.EventFailed:
		entry := Entry{Status: string(e.Snapshot.EffectiveStatus())}
		if e.Snapshot != nil {
			entry.Mode = string(e.Snapshot.Mode)
		}
		if hosts, err := e.Snapshot.Hosts(); err == nil {
			entry.HostCount = len(hosts)
			for _, h := range hosts {
				entry.OpenPortCount += len(h.OpenPorts)
			}
		}
		return s.recordFinished(ctx, e.ScanID.String(), entry, at)
	case controller.EventErrored:
		entry := Entry{Status: StatusError}
		if e.Err != nil {
			entry.Error = e.Err.Error()
		}
		return s.recordFinished(ctx, e.ScanID.String(), entry, at)
	case controller.EventStopped:
		return s.recordFinished(ctx, e.ScanID.String(), Entry{Status: StatusStopped}, at)
	}
	return nil
}

func (s *Store) recordSubmitted(ctx context.Context, e controller.Event, at time.Time) error {
	var gateway sql.NullString
	if e.Request.Gateway != nil {
		gateway = sql.NullString{String: *e.Request.Gateway, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO scans (scan_id, ip_range, gateway, ports, demo, status, submitted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(scan_id) DO UPDATE SET
		ip_range = excluded.ip_range,
		gateway = excluded.gateway,
		ports = excluded.ports,
		demo = excluded.demo,
		status = excluded.status,
		mode = NULL,
		host_count = 0,
		open_port_count = 0,
		error = NULL,
		submitted_at = excluded.submitted_at,
		finished_at = NULL`,
		e.ScanID.String(), e.Request.IPRange, gateway, joinPorts(e.Request.Ports), e.Request.Demo, StatusSubmitted, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record scan %s: %w", e.ScanID, err)
	}
	return nil
}

func (s *Store) recordFinished(ctx context.Context, scanID string, entry Entry, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE scans
	SET status = ?, mode = ?, host_count = ?, open_port_count = ?, error = ?, finished_at = ?
	WHERE scan_id = ?`,
		entry.Status, nullString(entry.Mode), entry.HostCount, entry.OpenPortCount, nullString(entry.Error), at, scanID,
	)
	if err != nil {
		return fmt.Errorf("failed to update scan %s: %w", scanID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, scanID)
	}
	return nil
}

// Get returns one scan by id.
func (s *Store) Get(ctx context.Context, scanID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE scan_id = ?`, scanID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, scanID)
	}
	return entry, err
}

// Recent returns up to limit scans, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectEntry+` ORDER BY submitted_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

const selectEntry = `SELECT scan_id, ip_range, gateway, ports, demo, status, mode, host_count, open_port_count, error, submitted_at, finished_at FROM scans`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var gateway, mode, errText sql.NullString
	var ports string
	var finishedAt sql.NullTime

	err := row.Scan(&entry.ScanID, &entry.IPRange, &gateway, &ports, &entry.Demo, &entry.Status,
		&mode, &entry.HostCount, &entry.OpenPortCount, &errText, &entry.SubmittedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning history row: %w", err)
	}

	if gateway.Valid {
		entry.Gateway = &gateway.String
	}
	if mode.Valid {
		entry.Mode = mode.String
	}
	if errText.Valid {
		entry.Error = errText.String
	}
	if finishedAt.Valid {
		entry.FinishedAt = &finishedAt.Time
	}
	entry.Ports = splitPorts(ports)
	return &entry, nil
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func splitPorts(s string) []int {
	ports := make([]int, 0)
	for _, part := range strings.Split(s, ",") {
		if p, err := strconv.Atoi(part); err == nil {
			ports = append(ports, p)
		}
	}
	return ports
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
