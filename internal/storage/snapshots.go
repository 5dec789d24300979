package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

// Snapshot is a full cube state reported during a session.
type Snapshot struct {
	SnapshotID int64
	SessionID  string
	TsMs       int64
	State      types.CubeState
	Battery    int
	Solved     bool
}

// SnapshotRepository provides CRUD operations for state snapshots.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create stores a snapshot and returns its ID.
func (r *SnapshotRepository) Create(sessionID string, at time.Time, state types.CubeState, battery int) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO snapshots (session_id, ts_ms, facelets, battery, solved)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, at.UnixMilli(), encodeFacelets(state), battery, state.IsSolved())
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get snapshot ID: %w", err)
	}

	return id, nil
}

// Latest returns the most recent snapshot of a session, or nil if none.
func (r *SnapshotRepository) Latest(sessionID string) (*Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT snapshot_id, session_id, ts_ms, facelets, battery, solved
		FROM snapshots
		WHERE session_id = ?
		ORDER BY ts_ms DESC, snapshot_id DESC
		LIMIT 1
	`, sessionID)

	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetBySession retrieves all snapshots for a session in time order.
func (r *SnapshotRepository) GetBySession(sessionID string) ([]Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT snapshot_id, session_id, ts_ms, facelets, battery, solved
		FROM snapshots
		WHERE session_id = ?
		ORDER BY ts_ms, snapshot_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}

	return snapshots, rows.Err()
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var s Snapshot
	var facelets string

	err := row.Scan(&s.SnapshotID, &s.SessionID, &s.TsMs, &facelets, &s.Battery, &s.Solved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	s.State, err = decodeFacelets(facelets)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const hexDigits = "0123456789abcdef"

// encodeFacelets stores each facelet colour as one hex digit.
func encodeFacelets(state types.CubeState) string {
	buf := make([]byte, types.FaceletCount)
	for i, c := range state {
		buf[i] = hexDigits[c&0x0F]
	}
	return string(buf)
}

func decodeFacelets(s string) (types.CubeState, error) {
	var state types.CubeState
	if len(s) != types.FaceletCount {
		return state, fmt.Errorf("stored facelets have length %d: %w", len(s), types.ErrFaceletLength)
	}
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(hexDigits, s[i])
		if v < 0 {
			return state, fmt.Errorf("stored facelet %d is %q", i, s[i])
		}
		state[i] = types.FaceletColor(v)
	}
	return state, nil
}
