package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/review-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS calibrations (
	match_id           INTEGER PRIMARY KEY,
	version            INTEGER NOT NULL,
	is_valid           INTEGER NOT NULL,
	reprojection_error REAL NOT NULL,
	payload            TEXT NOT NULL,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id            INTEGER PRIMARY KEY,
	match_id      INTEGER NOT NULL,
	origin        TEXT NOT NULL,
	start_pitch_x REAL,
	start_pitch_y REAL,
	end_pitch_x   REAL,
	end_pitch_y   REAL,
	pitch_version INTEGER NOT NULL DEFAULT 0,
	payload       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tracks (
	id       INTEGER PRIMARY KEY,
	match_id INTEGER NOT NULL,
	origin   TEXT NOT NULL,
	payload  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ball_positions (
	id            INTEGER PRIMARY KEY,
	match_id      INTEGER NOT NULL,
	frame         INTEGER NOT NULL,
	origin        TEXT NOT NULL,
	pitch_x       REAL,
	pitch_y       REAL,
	pitch_version INTEGER NOT NULL DEFAULT 0,
	payload       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accuracy_snapshots (
	id          TEXT PRIMARY KEY,
	match_id    INTEGER NOT NULL,
	computed_at DATETIME NOT NULL,
	payload     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accuracy_metrics (
	snapshot_id         TEXT NOT NULL REFERENCES accuracy_snapshots(id),
	match_id            INTEGER NOT NULL,
	category            TEXT NOT NULL,
	computed_at         DATETIME NOT NULL,
	accuracy            REAL,
	precision_score     REAL,
	recall_score        REAL,
	f1_score            REAL,
	total_predictions   INTEGER NOT NULL,
	correct_predictions INTEGER NOT NULL,
	true_positives      INTEGER NOT NULL,
	false_positives     INTEGER NOT NULL,
	false_negatives     INTEGER NOT NULL,
	corrections_count   INTEGER NOT NULL,
	PRIMARY KEY (snapshot_id, category)
);

CREATE INDEX IF NOT EXISTS idx_events_match_id ON events(match_id);
CREATE INDEX IF NOT EXISTS idx_tracks_match_id ON tracks(match_id);
CREATE INDEX IF NOT EXISTS idx_ball_positions_match_frame ON ball_positions(match_id, frame);
CREATE INDEX IF NOT EXISTS idx_snapshots_match_computed ON accuracy_snapshots(match_id, computed_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_computed ON accuracy_snapshots(computed_at);
CREATE INDEX IF NOT EXISTS idx_metrics_category ON accuracy_metrics(category, computed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveCalibration(ctx context.Context, cal *model.Calibration) error {
	payload, err := json.Marshal(cal)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal calibration")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calibrations (match_id, version, is_valid, reprojection_error, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(match_id) DO UPDATE SET
		   version = excluded.version,
		   is_valid = excluded.is_valid,
		   reprojection_error = excluded.reprojection_error,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		cal.MatchID, cal.Version, cal.IsValid, cal.ReprojectionError, string(payload),
		cal.CreatedAt.UTC(), cal.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save calibration for match %d", cal.MatchID)
}

func (s *SQLiteStore) GetCalibration(ctx context.Context, matchID int64) (*model.Calibration, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM calibrations WHERE match_id = ?`, matchID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get calibration for match %d", matchID)
	}
	var cal model.Calibration
	if err := json.Unmarshal([]byte(payload), &cal); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal calibration")
	}
	return &cal, nil
}

func (s *SQLiteStore) DeleteCalibration(ctx context.Context, matchID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calibrations WHERE match_id = ?`, matchID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete calibration for match %d", matchID)
	}
	return checkRowsAffected(res, "calibration", matchID)
}

func (s *SQLiteStore) ListCalibrations(ctx context.Context) ([]model.Calibration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM calibrations ORDER BY match_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list calibrations")
	}
	defer rows.Close()

	var cals []model.Calibration
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan calibration")
		}
		var cal model.Calibration
		if err := json.Unmarshal([]byte(payload), &cal); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal calibration")
		}
		cals = append(cals, cal)
	}
	return cals, eris.Wrap(rows.Err(), "sqlite: list calibrations iterate")
}

// inTx runs fn inside a transaction and commits when it returns nil.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) SaveEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO events (id, match_id, origin, start_pitch_x, start_pitch_y, end_pitch_x, end_pitch_y, pitch_version, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   match_id = excluded.match_id,
			   origin = excluded.origin,
			   start_pitch_x = excluded.start_pitch_x,
			   start_pitch_y = excluded.start_pitch_y,
			   end_pitch_x = excluded.end_pitch_x,
			   end_pitch_y = excluded.end_pitch_y,
			   pitch_version = excluded.pitch_version,
			   payload = excluded.payload`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare event upsert")
		}
		defer stmt.Close()

		for _, e := range events {
			if err := checkMatch("event", e.ID, e.MatchID); err != nil {
				return err
			}
			payload, pc, err := encodeEvent(e)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, e.ID, e.MatchID, string(e.Origin),
				pc.sx, pc.sy, pc.ex, pc.ey, pc.version, string(payload)); err != nil {
				return eris.Wrapf(err, "sqlite: save event %d", e.ID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SaveTracks(ctx context.Context, tracks []model.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO tracks (id, match_id, origin, payload) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   match_id = excluded.match_id,
			   origin = excluded.origin,
			   payload = excluded.payload`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare track upsert")
		}
		defer stmt.Close()

		for _, t := range tracks {
			if err := checkMatch("track", t.ID, t.MatchID); err != nil {
				return err
			}
			payload, err := json.Marshal(t)
			if err != nil {
				return eris.Wrapf(err, "sqlite: marshal track %d", t.ID)
			}
			if _, err := stmt.ExecContext(ctx, t.ID, t.MatchID, string(t.Origin), string(payload)); err != nil {
				return eris.Wrapf(err, "sqlite: save track %d", t.ID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SaveBalls(ctx context.Context, balls []model.BallPosition) error {
	if len(balls) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ball_positions (id, match_id, frame, origin, pitch_x, pitch_y, pitch_version, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   match_id = excluded.match_id,
			   frame = excluded.frame,
			   origin = excluded.origin,
			   pitch_x = excluded.pitch_x,
			   pitch_y = excluded.pitch_y,
			   pitch_version = excluded.pitch_version,
			   payload = excluded.payload`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare ball upsert")
		}
		defer stmt.Close()

		for _, b := range balls {
			if err := checkMatch("ball position", b.ID, b.MatchID); err != nil {
				return err
			}
			payload, pc, err := encodeBall(b)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, b.ID, b.MatchID, b.Frame, string(b.Origin),
				pc.sx, pc.sy, pc.version, string(payload)); err != nil {
				return eris.Wrapf(err, "sqlite: save ball position %d", b.ID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) LoadAnnotations(ctx context.Context, matchID int64) (*model.MatchAnnotations, error) {
	ann := &model.MatchAnnotations{MatchID: matchID}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, start_pitch_x, start_pitch_y, end_pitch_x, end_pitch_y, pitch_version
		 FROM events WHERE match_id = ? ORDER BY id`, matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load events for match %d", matchID)
	}
	for rows.Next() {
		var payload string
		var pc pitchCols
		if err := rows.Scan(&payload, &pc.sx, &pc.sy, &pc.ex, &pc.ey, &pc.version); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		e, err := decodeEvent([]byte(payload), pc)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ann.Events = append(ann.Events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load events iterate")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT payload FROM tracks WHERE match_id = ? ORDER BY id`, matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load tracks for match %d", matchID)
	}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan track")
		}
		var t model.Track
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: unmarshal track")
		}
		ann.Tracks = append(ann.Tracks, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load tracks iterate")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT payload, pitch_x, pitch_y, pitch_version
		 FROM ball_positions WHERE match_id = ? ORDER BY frame, id`, matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load ball positions for match %d", matchID)
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		var pc pitchCols
		if err := rows.Scan(&payload, &pc.sx, &pc.sy, &pc.version); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ball position")
		}
		b, err := decodeBall([]byte(payload), pc)
		if err != nil {
			return nil, err
		}
		ann.Balls = append(ann.Balls, b)
	}
	return ann, eris.Wrap(rows.Err(), "sqlite: load ball positions iterate")
}

func (s *SQLiteStore) ListMatchIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT match_id FROM events
		 UNION SELECT match_id FROM tracks
		 UNION SELECT match_id FROM ball_positions
		 ORDER BY 1`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list match ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list match ids iterate")
}

func (s *SQLiteStore) InvalidatePitch(ctx context.Context, matchID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE events SET start_pitch_x = NULL, start_pitch_y = NULL, end_pitch_x = NULL,
			   end_pitch_y = NULL, pitch_version = 0 WHERE match_id = ?`, matchID); err != nil {
			return eris.Wrapf(err, "sqlite: invalidate event pitch for match %d", matchID)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE ball_positions SET pitch_x = NULL, pitch_y = NULL, pitch_version = 0
			 WHERE match_id = ?`, matchID); err != nil {
			return eris.Wrapf(err, "sqlite: invalidate ball pitch for match %d", matchID)
		}
		return nil
	})
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.AccuracySnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	id := snap.ID.String()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accuracy_snapshots (id, match_id, computed_at, payload) VALUES (?, ?, ?, ?)`,
			id, snap.MatchID, snap.ComputedAt.UTC(), string(payload),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert snapshot for match %d", snap.MatchID)
		}
		if len(snap.Metrics) == 0 {
			return nil
		}

		placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(metricColumns)), ", ") + ")"
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO accuracy_metrics (%s) VALUES %s`,
			strings.Join(metricColumns, ", "), placeholders,
		))
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare metric insert")
		}
		defer stmt.Close()
		for _, m := range snap.Metrics {
			if _, err := stmt.ExecContext(ctx, metricRow(snap, m)...); err != nil {
				return eris.Wrapf(err, "sqlite: insert %s metric", m.Category)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, matchID int64) (*model.AccuracySnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM accuracy_snapshots WHERE match_id = ?
		 ORDER BY computed_at DESC, rowid DESC LIMIT 1`, matchID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest snapshot for match %d", matchID)
	}
	var snap model.AccuracySnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &snap, nil
}

func (s *SQLiteStore) LatestSnapshots(ctx context.Context) ([]model.AccuracySnapshot, error) {
	snaps, err := s.querySnapshots(ctx,
		`SELECT payload FROM accuracy_snapshots ORDER BY match_id, computed_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	return latestPerMatch(snaps), nil
}

func (s *SQLiteStore) ListSnapshotsSince(ctx context.Context, since time.Time) ([]model.AccuracySnapshot, error) {
	return s.querySnapshots(ctx,
		`SELECT payload FROM accuracy_snapshots WHERE computed_at >= ? ORDER BY computed_at`, since.UTC())
}

func (s *SQLiteStore) querySnapshots(ctx context.Context, query string, args ...any) ([]model.AccuracySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query snapshots")
	}
	defer rows.Close()

	var snaps []model.AccuracySnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		var snap model.AccuracySnapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: query snapshots iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}
