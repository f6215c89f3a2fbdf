package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert_EmptyRows(t *testing.T) {
	n, err := Upsert(context.TODO(), nil, UpsertConfig{
		Table:        "events",
		Columns:      []string{"id", "payload"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpsert_NoColumns(t *testing.T) {
	_, err := Upsert(context.TODO(), nil, UpsertConfig{
		Table:        "events",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestUpsert_NoConflictKeys(t *testing.T) {
	_, err := Upsert(context.TODO(), nil, UpsertConfig{
		Table:   "events",
		Columns: []string{"id", "payload"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestUpsert_StagesAndMerges(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "match_id", "payload"}
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_review_events" \(LIKE "review"\."events" INCLUDING DEFAULTS\)`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_review_events"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "review"\."events" \("id", "match_id", "payload"\) SELECT .* ON CONFLICT \("id"\) DO UPDATE SET "match_id" = EXCLUDED\."match_id", "payload" = EXCLUDED\."payload"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`DROP TABLE "_stage_review_events"`).
		WillReturnResult(pgxmock.NewResult("DROP TABLE", 0))

	n, err := Upsert(context.Background(), mock, UpsertConfig{
		Table:        "review.events",
		Columns:      cols,
		ConflictKeys: []string{"id"},
	}, [][]any{{int64(1), int64(7), "{}"}, {int64(2), int64(7), "{}"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_KeysOnlyDoNothing(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_matches"}, []string{"id"}).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("id"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DROP TABLE`).WillReturnResult(pgxmock.NewResult("DROP TABLE", 0))

	_, err = Upsert(context.Background(), mock, UpsertConfig{
		Table:        "matches",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{int64(1)}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"events", `"events"`},
		{"review.events", `"review"."events"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "frame", "payload"`, quoteAndJoin([]string{"id", "frame", "payload"}))
}
