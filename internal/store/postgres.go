package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/review-cli/internal/db"
	"github.com/sells-group/review-cli/internal/model"
	"github.com/sells-group/review-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// queries holds the read statements shared by several methods.
var queries = map[string]string{
	"latest_snapshot":     `SELECT payload FROM accuracy_snapshots WHERE match_id = $1 ORDER BY computed_at DESC LIMIT 1`,
	"load_events":         `SELECT payload, start_pitch_x, start_pitch_y, end_pitch_x, end_pitch_y, pitch_version FROM events WHERE match_id = $1 ORDER BY id`,
	"load_tracks":         `SELECT payload FROM tracks WHERE match_id = $1 ORDER BY id`,
	"load_ball_positions": `SELECT payload, pitch_x, pitch_y, pitch_version FROM ball_positions WHERE match_id = $1 ORDER BY frame, id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	// The database may still be starting when the service comes up.
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres", "ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS calibrations (
	match_id           BIGINT PRIMARY KEY,
	version            BIGINT NOT NULL,
	is_valid           BOOLEAN NOT NULL,
	reprojection_error DOUBLE PRECISION NOT NULL,
	payload            JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	id            BIGINT PRIMARY KEY,
	match_id      BIGINT NOT NULL,
	origin        TEXT NOT NULL,
	start_pitch_x DOUBLE PRECISION,
	start_pitch_y DOUBLE PRECISION,
	end_pitch_x   DOUBLE PRECISION,
	end_pitch_y   DOUBLE PRECISION,
	pitch_version BIGINT NOT NULL DEFAULT 0,
	payload       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS tracks (
	id       BIGINT PRIMARY KEY,
	match_id BIGINT NOT NULL,
	origin   TEXT NOT NULL,
	payload  JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS ball_positions (
	id            BIGINT PRIMARY KEY,
	match_id      BIGINT NOT NULL,
	frame         INTEGER NOT NULL,
	origin        TEXT NOT NULL,
	pitch_x       DOUBLE PRECISION,
	pitch_y       DOUBLE PRECISION,
	pitch_version BIGINT NOT NULL DEFAULT 0,
	payload       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS accuracy_snapshots (
	id          UUID PRIMARY KEY,
	match_id    BIGINT NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS accuracy_metrics (
	snapshot_id         UUID NOT NULL REFERENCES accuracy_snapshots(id),
	match_id            BIGINT NOT NULL,
	category            TEXT NOT NULL,
	computed_at         TIMESTAMPTZ NOT NULL,
	accuracy            DOUBLE PRECISION,
	precision_score     DOUBLE PRECISION,
	recall_score        DOUBLE PRECISION,
	f1_score            DOUBLE PRECISION,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveCalibration(ctx context.Context, cal *model.Calibration) error {
	payload, err := json.Marshal(cal)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal calibration")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO calibrations (match_id, version, is_valid, reprojection_error, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (match_id) DO UPDATE SET
		   version = EXCLUDED.version,
		   is_valid = EXCLUDED.is_valid,
		   reprojection_error = EXCLUDED.reprojection_error,
		   payload = EXCLUDED.payload,
		   updated_at = EXCLUDED.updated_at`,
		cal.MatchID, cal.Version, cal.IsValid, cal.ReprojectionError, payload, cal.CreatedAt, cal.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save calibration for match %d", cal.MatchID)
}

func (s *PostgresStore) GetCalibration(ctx context.Context, matchID int64) (*model.Calibration, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM calibrations WHERE match_id = $1`, matchID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get calibration for match %d", matchID)
	}
	var cal model.Calibration
	if err := json.Unmarshal(payload, &cal); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal calibration")
	}
	return &cal, nil
}

func (s *PostgresStore) DeleteCalibration(ctx context.Context, matchID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM calibrations WHERE match_id = $1`, matchID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete calibration for match %d", matchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "calibration %d", matchID)
	}
	return nil
}

func (s *PostgresStore) ListCalibrations(ctx context.Context) ([]model.Calibration, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM calibrations ORDER BY match_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list calibrations")
	}
	defer rows.Close()

	var cals []model.Calibration
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan calibration")
		}
		var cal model.Calibration
		if err := json.Unmarshal(payload, &cal); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal calibration")
		}
		cals = append(cals, cal)
	}
	return cals, eris.Wrap(rows.Err(), "postgres: list calibrations iterate")
}

// upsert writes rows through db.Upsert inside a single transaction.
func (s *PostgresStore) upsert(ctx context.Context, cfg db.UpsertConfig, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres", "upsert "+cfg.Table)
	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		return s.upsertOnce(ctx, cfg, rows)
	})
}

func (s *PostgresStore) upsertOnce(ctx context.Context, cfg db.UpsertConfig, rows [][]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := db.Upsert(ctx, tx, cfg, rows); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

var (
	eventUpsert = db.UpsertConfig{
		Table: "events",
		Columns: []string{"id", "match_id", "origin",
			"start_pitch_x", "start_pitch_y", "end_pitch_x", "end_pitch_y", "pitch_version", "payload"},
		ConflictKeys: []string{"id"},
	}
	trackUpsert = db.UpsertConfig{
		Table:        "tracks",
		Columns:      []string{"id", "match_id", "origin", "payload"},
		ConflictKeys: []string{"id"},
	}
	ballUpsert = db.UpsertConfig{
		Table:        "ball_positions",
		Columns:      []string{"id", "match_id", "frame", "origin", "pitch_x", "pitch_y", "pitch_version", "payload"},
		ConflictKeys: []string{"id"},
	}
)

func (s *PostgresStore) SaveEvents(ctx context.Context, events []model.Event) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		if err := checkMatch("event", e.ID, e.MatchID); err != nil {
			return err
		}
		payload, pc, err := encodeEvent(e)
		if err != nil {
			return err
		}
		rows = append(rows, []any{e.ID, e.MatchID, string(e.Origin), pc.sx, pc.sy, pc.ex, pc.ey, pc.version, payload})
	}
	return eris.Wrap(s.upsert(ctx, eventUpsert, rows), "postgres: save events")
}

func (s *PostgresStore) SaveTracks(ctx context.Context, tracks []model.Track) error {
	rows := make([][]any, 0, len(tracks))
	for _, t := range tracks {
		if err := checkMatch("track", t.ID, t.MatchID); err != nil {
			return err
		}
		payload, err := json.Marshal(t)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal track %d", t.ID)
		}
		rows = append(rows, []any{t.ID, t.MatchID, string(t.Origin), payload})
	}
	return eris.Wrap(s.upsert(ctx, trackUpsert, rows), "postgres: save tracks")
}

func (s *PostgresStore) SaveBalls(ctx context.Context, balls []model.BallPosition) error {
	rows := make([][]any, 0, len(balls))
	for _, b := range balls {
		if err := checkMatch("ball position", b.ID, b.MatchID); err != nil {
			return err
		}
		payload, pc, err := encodeBall(b)
		if err != nil {
			return err
		}
		rows = append(rows, []any{b.ID, b.MatchID, b.Frame, string(b.Origin), pc.sx, pc.sy, pc.version, payload})
	}
	return eris.Wrap(s.upsert(ctx, ballUpsert, rows), "postgres: save ball positions")
}

func (s *PostgresStore) LoadAnnotations(ctx context.Context, matchID int64) (*model.MatchAnnotations, error) {
	ann := &model.MatchAnnotations{MatchID: matchID}

	rows, err := s.pool.Query(ctx, queries["load_events"], matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load events for match %d", matchID)
	}
	ann.Events, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Event, error) {
		var payload []byte
		var pc pitchCols
		if err := row.Scan(&payload, &pc.sx, &pc.sy, &pc.ex, &pc.ey, &pc.version); err != nil {
			return model.Event{}, eris.Wrap(err, "postgres: scan event")
		}
		return decodeEvent(payload, pc)
	})
	if err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, queries["load_tracks"], matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load tracks for match %d", matchID)
	}
	ann.Tracks, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Track, error) {
		var payload []byte
		var t model.Track
		if err := row.Scan(&payload); err != nil {
			return t, eris.Wrap(err, "postgres: scan track")
		}
		return t, eris.Wrap(json.Unmarshal(payload, &t), "postgres: unmarshal track")
	})
	if err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, queries["load_ball_positions"], matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load ball positions for match %d", matchID)
	}
	ann.Balls, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BallPosition, error) {
		var payload []byte
		var pc pitchCols
		if err := row.Scan(&payload, &pc.sx, &pc.sy, &pc.version); err != nil {
			return model.BallPosition{}, eris.Wrap(err, "postgres: scan ball position")
		}
		return decodeBall(payload, pc)
	})
	if err != nil {
		return nil, err
	}
	return ann, nil
}

func (s *PostgresStore) ListMatchIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT match_id FROM events
		 UNION SELECT match_id FROM tracks
		 UNION SELECT match_id FROM ball_positions
		 ORDER BY 1`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list match ids")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, eris.Wrap(err, "postgres: scan match ids")
}

func (s *PostgresStore) InvalidatePitch(ctx context.Context, matchID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE events SET start_pitch_x = NULL, start_pitch_y = NULL, end_pitch_x = NULL,
		   end_pitch_y = NULL, pitch_version = 0 WHERE match_id = $1`, matchID); err != nil {
		return eris.Wrapf(err, "postgres: invalidate event pitch for match %d", matchID)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE ball_positions SET pitch_x = NULL, pitch_y = NULL, pitch_version = 0
		 WHERE match_id = $1`, matchID); err != nil {
		return eris.Wrapf(err, "postgres: invalidate ball pitch for match %d", matchID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.AccuracySnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO accuracy_snapshots (id, match_id, computed_at, payload) VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.MatchID, snap.ComputedAt, payload,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert snapshot for match %d", snap.MatchID)
	}

	rows := make([][]any, 0, len(snap.Metrics))
	for _, m := range snap.Metrics {
		rows = append(rows, metricRow(snap, m))
	}
	if _, err := db.CopyFrom(ctx, tx, "accuracy_metrics", metricColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: copy metrics")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, matchID int64) (*model.AccuracySnapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, queries["latest_snapshot"], matchID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest snapshot for match %d", matchID)
	}
	var snap model.AccuracySnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return &snap, nil
}

func (s *PostgresStore) LatestSnapshots(ctx context.Context) ([]model.AccuracySnapshot, error) {
	snaps, err := s.querySnapshots(ctx,
		`SELECT DISTINCT ON (match_id) payload FROM accuracy_snapshots ORDER BY match_id, computed_at DESC`)
	if err != nil {
		return nil, err
	}
	return latestPerMatch(snaps), nil
}

func (s *PostgresStore) ListSnapshotsSince(ctx context.Context, since time.Time) ([]model.AccuracySnapshot, error) {
	return s.querySnapshots(ctx,
		`SELECT payload FROM accuracy_snapshots WHERE computed_at >= $1 ORDER BY computed_at`, since)
}

func (s *PostgresStore) querySnapshots(ctx context.Context, query string, args ...any) ([]model.AccuracySnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query snapshots")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AccuracySnapshot, error) {
		var payload []byte
		var snap model.AccuracySnapshot
		if err := row.Scan(&payload); err != nil {
			return snap, eris.Wrap(err, "postgres: scan snapshot")
		}
		return snap, eris.Wrap(json.Unmarshal(payload, &snap), "postgres: unmarshal snapshot")
	})
}
