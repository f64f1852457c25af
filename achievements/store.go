// achievements/store.go - Store contract the processing engine runs against
package achievements

import (
	"context"
	"time"

	"tailtag/models"
)

// Catalog is an immutable snapshot of the active achievement catalog,
// keyed by achievement key. It is loaded once per processing pass and
// passed into every evaluation call; it is never cached across passes,
// since administrators may toggle activation between them.
type Catalog map[string]models.Achievement

// Context is the free-form evidence attached to a grant (catch id,
// convention id, owner id, ...).
type Context map[string]any

// CatchDetail is a catch row joined with its fursuit and, when the schema
// and data allow, its convention.
type CatchDetail struct {
	ID           string
	CatcherID    string
	FursuitID    string
	ConventionID *string
	CaughtAt     time.Time
	Fursuit      *models.Fursuit
	Convention   *models.Convention
}

// Store is everything the engine needs from the data store. The aggregate
// queries are pure reads against history; the event and award methods are
// the only writes, and both are conditional or idempotent.
//
// Queries that depend on columns or tables a deployment may not have
// migrated yet fold "undefined column/table" store errors into a neutral
// value instead of failing: distinct-convention and fursuit-at-convention
// counts fall to zero, the unique-catcher count reports "not rare", and
// the species map simply means "not multi-species". Every other store
// error is fatal to the event being processed.
type Store interface {
	// Event log.
	ClaimNextEvents(ctx context.Context, limit int) ([]models.AchievementEvent, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
	ResetEventForRetry(ctx context.Context, eventID string) error

	// Catalog.
	LoadActiveAchievements(ctx context.Context) (Catalog, error)

	// Aggregates. FetchCatch and FetchProfile return nil, nil when the
	// referent no longer exists; the caller treats that as a no-op.
	FetchCatch(ctx context.Context, catchID string) (*CatchDetail, error)
	FetchProfile(ctx context.Context, userID string) (*models.Profile, error)
	CountCatchesByUser(ctx context.Context, userID string) (int64, error)
	CountDistinctSpeciesCaught(ctx context.Context, userID string) (int, error)
	HasHybridOrMultiSpecies(ctx context.Context, fursuitID string, speciesName, speciesID *string) (bool, error)
	CountDistinctConventions(ctx context.Context, userID string) (int, error)
	CountCatchesForFursuit(ctx context.Context, fursuitID string) (int64, error)
	CountCatchesForFursuitAtConvention(ctx context.Context, fursuitID, conventionID string) (int64, error)
	CountUniqueCatchersAtConvention(ctx context.Context, fursuitID, conventionID string) (int, error)
	HasSecondCatchWithinWindow(ctx context.Context, userID string, caughtAt time.Time) (bool, error)

	// Award writer: insert-if-absent on (user, achievement). The first
	// grant wins and its context is never overwritten; a conflict is a
	// successful no-op.
	AwardAchievement(ctx context.Context, userID string, achievement models.Achievement, grantContext Context) error
}
