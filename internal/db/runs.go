package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run summarises one processed scan set.
type Run struct {
	ID             string
	RadarID        string
	ScanTime       time.Time
	OutputPath     string
	ConvolZones    int
	ConvolFlagged  int
	DopvolZones    int
	DopvolFlagged  int
	MaskedFraction float64
	ProcessedAt    time.Time
	// Targets counts cells per target classification code.
	Targets map[int32]int
}

// RecordRun inserts r and its target counts. An empty ID is filled with a
// new UUID.
func (db *DB) RecordRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	} else if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", r.ID, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, radar_id, scan_time, output_path,
			convol_zones, convol_flagged, dopvol_zones, dopvol_flagged,
			masked_fraction, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RadarID, r.ScanTime.Unix(), r.OutputPath,
		r.ConvolZones, r.ConvolFlagged, r.DopvolZones, r.DopvolFlagged,
		r.MaskedFraction, r.ProcessedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for code, cells := range r.Targets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_targets (run_id, code, cells) VALUES (?, ?, ?)`,
			r.ID, code, cells); err != nil {
			return fmt.Errorf("failed to insert target counts: %w", err)
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, radar_id, scan_time, output_path,
	convol_zones, convol_flagged, dopvol_zones, dopvol_flagged,
	masked_fraction, processed_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var scanUnix, processedUnix int64
	err := s.Scan(&r.ID, &r.RadarID, &scanUnix, &r.OutputPath,
		&r.ConvolZones, &r.ConvolFlagged, &r.DopvolZones, &r.DopvolFlagged,
		&r.MaskedFraction, &processedUnix)
	if err != nil {
		return nil, err
	}
	r.ScanTime = time.Unix(scanUnix, 0).UTC()
	r.ProcessedAt = time.Unix(processedUnix, 0).UTC()
	return &r, nil
}

// GetRun returns the run with id, including its target counts.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	if r.Targets, err = db.targets(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (db *DB) targets(ctx context.Context, id string) (map[int32]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT code, cells FROM run_targets WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query target counts: %w", err)
	}
	defer rows.Close()

	out := make(map[int32]int)
	for rows.Next() {
		var code int32
		var cells int
		if err := rows.Scan(&code, &cells); err != nil {
			return nil, err
		}
		out[code] = cells
	}
	return out, rows.Err()
}

// ListRuns returns the runs for radarID, newest scan first. An empty radarID
// lists every radar. limit <= 0 means no limit.
func (db *DB) ListRuns(ctx context.Context, radarID string, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []interface{}
	if radarID != "" {
		query += ` WHERE radar_id = ?`
		args = append(args, radarID)
	}
	query += ` ORDER BY scan_time DESC, run_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
