// Package storage provides a SQLite-backed journal of delivered alerts.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pumpsentry/internal/models"
)

// Storage wraps a SQLite database holding the delivered-alert journal.
// Detection state itself is process-local and never persisted; the journal
// is an audit log of what was sent.
type Storage struct {
	db        *sql.DB
	maxAlerts int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/pumpsentry/data.db.
func New(maxAlerts int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "pumpsentry", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxAlerts: maxAlerts}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id             TEXT PRIMARY KEY,
			symbol         TEXT NOT NULL,
			direction      TEXT NOT NULL,
			window_sec     INTEGER NOT NULL,
			return_pct     REAL NOT NULL,
			old_price      REAL NOT NULL,
			new_price      REAL NOT NULL,
			vol_recent     REAL NOT NULL,
			vol_baseline   REAL NOT NULL,
			vol_spike      REAL NOT NULL,
			bid            REAL NOT NULL,
			ask            REAL NOT NULL,
			spread_pct     REAL NOT NULL,
			bid_notional   REAL NOT NULL,
			oi_has_data    INTEGER NOT NULL DEFAULT 0,
			oi_change      REAL NOT NULL DEFAULT 0,
			oi_now         REAL NOT NULL DEFAULT 0,
			oi_past        REAL NOT NULL DEFAULT 0,
			detected_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_detected_at ON alerts(detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_symbol ON alerts(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddAlert journals one delivered alert and rotates the table down to the
// configured cap, oldest rows first.
func (s *Storage) AddAlert(alert *models.Alert) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO alerts
			(id, symbol, direction, window_sec, return_pct, old_price, new_price,
			 vol_recent, vol_baseline, vol_spike,
			 bid, ask, spread_pct, bid_notional,
			 oi_has_data, oi_change, oi_now, oi_past, detected_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), alert.Symbol, string(alert.Direction), int64(alert.Window.Seconds()),
		alert.Return, alert.OldPrice, alert.NewPrice,
		alert.Volume.RecentSum, alert.Volume.BaselineEquiv, alert.Volume.SpikeRatio,
		alert.Spread.Bid, alert.Spread.Ask, alert.Spread.SpreadPct, alert.Spread.BidNotional,
		boolToInt(alert.OI.HasData), alert.OI.ChangeRatio, alert.OI.Now, alert.OI.Past,
		alert.DetectedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM alerts WHERE id NOT IN (
			SELECT id FROM alerts ORDER BY detected_at DESC LIMIT ?
		)`, s.maxAlerts); err != nil {
		return fmt.Errorf("failed to enforce alert cap: %w", err)
	}

	return tx.Commit()
}

// RecentAlerts returns the newest k journaled alerts, newest first.
func (s *Storage) RecentAlerts(k int) ([]models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT symbol, direction, window_sec, return_pct, old_price, new_price,
		       vol_recent, vol_baseline, vol_spike,
		       bid, ask, spread_pct, bid_notional,
		       oi_has_data, oi_change, oi_now, oi_past, detected_at
		FROM alerts ORDER BY detected_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var direction string
		var windowSec, detectedAtNano int64
		var oiHasData int

		err := rows.Scan(
			&a.Symbol, &direction, &windowSec, &a.Return, &a.OldPrice, &a.NewPrice,
			&a.Volume.RecentSum, &a.Volume.BaselineEquiv, &a.Volume.SpikeRatio,
			&a.Spread.Bid, &a.Spread.Ask, &a.Spread.SpreadPct, &a.Spread.BidNotional,
			&oiHasData, &a.OI.ChangeRatio, &a.OI.Now, &a.OI.Past,
			&detectedAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		a.Direction = models.Direction(direction)
		a.Window = time.Duration(windowSec) * time.Second
		a.OI.HasData = oiHasData != 0
		a.DetectedAt = time.Unix(0, detectedAtNano)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// CountAlerts returns the number of journaled alerts.
func (s *Storage) CountAlerts() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// ClearAlerts removes every journaled alert.
func (s *Storage) ClearAlerts() error {
	if _, err := s.db.Exec(`DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
