// achievements/gorm_store_test.go
package achievements

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tailtag/models"
)

func newMockStore(t *testing.T) (*DBStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	store := NewDBStore(db)
	store.now = func() time.Time {
		return time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)
	}
	return store, mock
}

func TestClaimNextEventsConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	claimTime := store.now()

	mock.ExpectQuery(`SELECT "id" FROM "achievement_events" WHERE processed_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("e1"))
	mock.ExpectExec(`UPDATE "achievement_events" SET "processed_at"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "achievement_events" WHERE id =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload", "created_at", "processed_at"}).
			AddRow("e1", models.EventConventionCheckin, []byte(`{"user_id":"u1"}`), claimTime.Add(-time.Minute), claimTime))
	// queue drained
	mock.ExpectQuery(`SELECT "id" FROM "achievement_events" WHERE processed_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	events, err := store.ClaimNextEvents(context.Background(), 5)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, models.EventConventionCheckin, events[0].EventType)
	require.NotNil(t, events[0].ProcessedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextEventsLosesRaceCleanly(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT "id" FROM "achievement_events" WHERE processed_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("e1"))
	// another worker stamped the row between select and update
	mock.ExpectExec(`UPDATE "achievement_events" SET "processed_at"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id" FROM "achievement_events" WHERE processed_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	events, err := store.ClaimNextEvents(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAndResetEvent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "achievement_events" SET "processed_at"`).
		WithArgs(store.now(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "achievement_events" SET "processed_at"`).
		WithArgs(nil, "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.MarkEventProcessed(context.Background(), "e1"))
	require.NoError(t, store.ResetEventForRetry(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadActiveAchievementsKeysByKey(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "achievements" WHERE is_active`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "name", "recipient_role", "is_active"}).
			AddRow("a1", "FIRST_CATCH", "First Catch!", models.RoleCatcher, true).
			AddRow("a2", "EXPLORER", "Explorer", models.RoleAny, true))

	catalog, err := store.LoadActiveAchievements(context.Background())
	require.NoError(t, err)

	require.Len(t, catalog, 2)
	assert.Equal(t, "a1", catalog["FIRST_CATCH"].ID)
	assert.Equal(t, models.RoleAny, catalog["EXPLORER"].RecipientRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAwardAchievementUpsertsOnce(t *testing.T) {
	store, mock := newMockStore(t)

	// conflict target matches the unique index; zero rows affected on
	// replay is still success
	mock.ExpectExec(`INSERT INTO "user_achievements" .* ON CONFLICT \("user_id","achievement_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	achievement := models.Achievement{ID: "a1", Key: "FIRST_CATCH"}
	err := store.AwardAchievement(context.Background(), "u1", achievement, Context{"catch_id": "c1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAwardAchievementEmptyUserIsNoOp(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.AwardAchievement(context.Background(), "", models.Achievement{ID: "a1"}, Context{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchCatchNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "catches" WHERE id =`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	detail, err := store.FetchCatch(context.Background(), "gone")
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestFetchCatchToleratesMissingConventionTable(t *testing.T) {
	store, mock := newMockStore(t)
	caughtAt := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "catches" WHERE id =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "catcher_id", "fursuit_id", "convention_id", "caught_at"}).
			AddRow("c1", "u1", "f1", "conv1", caughtAt))
	mock.ExpectQuery(`SELECT \* FROM "fursuits" WHERE id =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "species"}).
			AddRow("f1", "owner1", "Ranger", "wolf"))
	mock.ExpectQuery(`SELECT \* FROM "conventions" WHERE id =`).
		WillReturnError(&pgconn.PgError{Code: pgUndefinedTable})

	detail, err := store.FetchCatch(context.Background(), "c1")
	require.NoError(t, err)

	require.NotNil(t, detail)
	assert.Equal(t, "c1", detail.ID)
	require.NotNil(t, detail.ConventionID)
	assert.Nil(t, detail.Convention, "schedule unavailable on unmigrated schema")
	require.NotNil(t, detail.Fursuit)
	assert.Equal(t, "Ranger", detail.Fursuit.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConventionAggregatesDegradeOnMissingColumn(t *testing.T) {
	store, mock := newMockStore(t)
	missingColumn := &pgconn.PgError{Code: pgUndefinedColumn}

	mock.ExpectQuery(`SELECT count`).WillReturnError(missingColumn)
	conventions, err := store.CountDistinctConventions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, conventions)

	mock.ExpectQuery(`SELECT count`).WillReturnError(missingColumn)
	atConvention, err := store.CountCatchesForFursuitAtConvention(context.Background(), "f1", "conv1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), atConvention)

	mock.ExpectQuery(`SELECT count`).WillReturnError(missingColumn)
	catchers, err := store.CountUniqueCatchersAtConvention(context.Background(), "f1", "conv1")
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, catchers, "rarity can never fire without convention data")
}

func TestSpeciesMapMissingTableIsNotMultiSpecies(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count`).
		WillReturnError(&pgconn.PgError{Code: pgUndefinedTable})

	hybrid, err := store.HasHybridOrMultiSpecies(context.Background(), "f1", nil, nil)
	require.NoError(t, err)
	assert.False(t, hybrid)
}

func TestUnrelatedDatabaseErrorsStillFail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count`).WillReturnError(errors.New("connection reset"))

	_, err := store.CountDistinctConventions(context.Background(), "u1")
	assert.Error(t, err)
}

func TestCountDistinctSpeciesFoldsIdentity(t *testing.T) {
	store, mock := newMockStore(t)

	// id wins over name; names dedupe case-insensitively after trimming
	mock.ExpectQuery(`SELECT fursuits.species_id, fursuits.species FROM "catches"`).
		WillReturnRows(sqlmock.NewRows([]string{"species_id", "species"}).
			AddRow("sp1", nil).
			AddRow("sp1", "ignored when id present").
			AddRow(nil, "Wolf ").
			AddRow(nil, "wolf").
			AddRow(nil, "dragon").
			AddRow(nil, nil))

	count, err := store.CountDistinctSpeciesCaught(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestHasSecondCatchWithinWindow(t *testing.T) {
	store, mock := newMockStore(t)
	caughtAt := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count`).
		WithArgs("u1", caughtAt.Add(-60*time.Second), caughtAt).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	hit, err := store.HasSecondCatchWithinWindow(context.Background(), "u1", caughtAt)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: pgUndefinedTable}))
	assert.False(t, IsUniqueViolation(errors.New("plain error")))
	assert.False(t, IsUniqueViolation(nil))
}
