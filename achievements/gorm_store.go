// achievements/gorm_store.go - GORM/PostgreSQL implementation of Store
package achievements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"tailtag/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres SQLSTATE codes the degradation paths key on.
const (
	pgUndefinedColumn = "42703"
	pgUndefinedTable  = "42P01"
	pgUniqueViolation = "23505"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Used by the notification hook to swallow duplicates.
func IsUniqueViolation(err error) bool {
	return pgErrCode(err) == pgUniqueViolation
}

// DBStore implements Store on a GORM PostgreSQL connection.
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBStore wraps db in a Store. The clock defaults to UTC now.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ClaimNextEvents claims up to limit unprocessed events, oldest first.
// Each claim is a single conditional update that succeeds only if the row
// is still unclaimed, so two workers can never own the same event. The
// loop is bounded by limit*5 attempts to tolerate races with other
// claimants.
func (s *DBStore) ClaimNextEvents(ctx context.Context, limit int) ([]models.AchievementEvent, error) {
	claimed := make([]models.AchievementEvent, 0, limit)
	maxAttempts := limit * 5
	if maxAttempts < 10 {
		maxAttempts = 10
	}

	for attempts := 0; len(claimed) < limit && attempts < maxAttempts; attempts++ {
		var candidate struct{ ID string }
		err := s.db.WithContext(ctx).
			Model(&models.AchievementEvent{}).
			Select("id").
			Where("processed_at IS NULL").
			Order("created_at ASC").
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break // queue drained
		}
		if err != nil {
			return claimed, fmt.Errorf("fetch next achievement event: %w", err)
		}

		res := s.db.WithContext(ctx).
			Model(&models.AchievementEvent{}).
			Where("id = ? AND processed_at IS NULL", candidate.ID).
			Update("processed_at", s.now())
		if res.Error != nil {
			return claimed, fmt.Errorf("claim achievement event %s: %w", candidate.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue // another worker claimed it first
		}

		var event models.AchievementEvent
		if err := s.db.WithContext(ctx).First(&event, "id = ?", candidate.ID).Error; err != nil {
			return claimed, fmt.Errorf("load claimed event %s: %w", candidate.ID, err)
		}
		claimed = append(claimed, event)
	}

	return claimed, nil
}

// MarkEventProcessed stamps processed_at, idempotently.
func (s *DBStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.AchievementEvent{}).
		Where("id = ?", eventID).
		Update("processed_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("mark event %s processed: %w", eventID, err)
	}
	return nil
}

// ResetEventForRetry clears processed_at so a future sweep picks the
// event up again. Used only after a processing attempt failed for good.
func (s *DBStore) ResetEventForRetry(ctx context.Context, eventID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.AchievementEvent{}).
		Where("id = ?", eventID).
		Update("processed_at", nil).Error
	if err != nil {
		return fmt.Errorf("reset event %s for retry: %w", eventID, err)
	}
	return nil
}

// LoadActiveAchievements returns the active catalog keyed by achievement
// key.
func (s *DBStore) LoadActiveAchievements(ctx context.Context) (Catalog, error) {
	var rows []models.Achievement
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load achievement catalog: %w", err)
	}

	catalog := make(Catalog, len(rows))
	for _, a := range rows {
		catalog[a.Key] = a
	}
	return catalog, nil
}

// FetchCatch loads a catch with its fursuit and convention. Returns
// nil, nil when the catch no longer exists. A missing conventions table
// or convention_id column degrades to a catch without convention context.
func (s *DBStore) FetchCatch(ctx context.Context, catchID string) (*CatchDetail, error) {
	var row models.Catch
	err := s.db.WithContext(ctx).First(&row, "id = ?", catchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch catch %s: %w", catchID, err)
	}

	detail := &CatchDetail{
		ID:           row.ID,
		CatcherID:    row.CatcherID,
		FursuitID:    row.FursuitID,
		ConventionID: row.ConventionID,
		CaughtAt:     row.CaughtAt,
	}

	var fursuit models.Fursuit
	err = s.db.WithContext(ctx).First(&fursuit, "id = ?", row.FursuitID).Error
	if err == nil {
		detail.Fursuit = &fursuit
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("fetch fursuit %s: %w", row.FursuitID, err)
	}

	if row.ConventionID != nil {
		var convention models.Convention
		err = s.db.WithContext(ctx).First(&convention, "id = ?", *row.ConventionID).Error
		switch {
		case err == nil:
			detail.Convention = &convention
		case errors.Is(err, gorm.ErrRecordNotFound):
			// convention row gone; keep the id, lose the schedule
		case pgErrCode(err) == pgUndefinedTable || pgErrCode(err) == pgUndefinedColumn:
			// schema predates conventions
		default:
			return nil, fmt.Errorf("fetch convention %s: %w", *row.ConventionID, err)
		}
	}

	return detail, nil
}

// FetchProfile returns nil, nil when the profile does not exist.
func (s *DBStore) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).First(&profile, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", userID, err)
	}
	return &profile, nil
}

func (s *DBStore) CountCatchesByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Catch{}).
		Where("catcher_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count catches for user %s: %w", userID, err)
	}
	return count, nil
}

// CountDistinctSpeciesCaught counts species across a user's catches.
// Species identity is the species id when present, otherwise the
// case-insensitive trimmed species name; fursuits predating the shared
// species table only carry the name.
func (s *DBStore) CountDistinctSpeciesCaught(ctx context.Context, userID string) (int, error) {
	var rows []struct {
		SpeciesID *string
		Species   *string
	}
	err := s.db.WithContext(ctx).
		Table("catches").
		Select("fursuits.species_id, fursuits.species").
		Joins("JOIN fursuits ON fursuits.id = catches.fursuit_id").
		Where("catches.catcher_id = ?", userID).
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("count species for user %s: %w", userID, err)
	}

	species := make(map[string]struct{})
	for _, r := range rows {
		switch {
		case r.SpeciesID != nil && *r.SpeciesID != "":
			species[*r.SpeciesID] = struct{}{}
		case r.Species != nil && strings.TrimSpace(*r.Species) != "":
			species[strings.ToLower(strings.TrimSpace(*r.Species))] = struct{}{}
		}
	}
	return len(species), nil
}

// HasHybridOrMultiSpecies checks three fallbacks in order: a species name
// containing "hybrid", the is_hybrid flag on the species catalog entry,
// and more than one row in the species mapping table. A missing mapping
// table means "not multi-species", not an error.
func (s *DBStore) HasHybridOrMultiSpecies(ctx context.Context, fursuitID string, speciesName, speciesID *string) (bool, error) {
	if speciesName != nil && strings.Contains(strings.ToLower(*speciesName), "hybrid") {
		return true, nil
	}

	if speciesID != nil && *speciesID != "" {
		var species models.FursuitSpecies
		err := s.db.WithContext(ctx).First(&species, "id = ?", *speciesID).Error
		if err == nil && species.IsHybrid {
			return true, nil
		}
		// lookup failures fall through to the mapping table
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.FursuitSpeciesMap{}).
		Where("fursuit_id = ?", fursuitID).
		Count(&count).Error
	if pgErrCode(err) == pgUndefinedTable {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check species mapping for fursuit %s: %w", fursuitID, err)
	}
	return count > 1, nil
}

// CountDistinctConventions counts conventions a user has logged catches
// at. A schema without convention_id contributes zero.
func (s *DBStore) CountDistinctConventions(ctx context.Context, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Catch{}).
		Where("catcher_id = ? AND convention_id IS NOT NULL", userID).
		Distinct("convention_id").
		Count(&count).Error
	if pgErrCode(err) == pgUndefinedColumn {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count conventions for user %s: %w", userID, err)
	}
	return int(count), nil
}

func (s *DBStore) CountCatchesForFursuit(ctx context.Context, fursuitID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Catch{}).
		Where("fursuit_id = ?", fursuitID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count catches for fursuit %s: %w", fursuitID, err)
	}
	return count, nil
}

func (s *DBStore) CountCatchesForFursuitAtConvention(ctx context.Context, fursuitID, conventionID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Catch{}).
		Where("fursuit_id = ? AND convention_id = ?", fursuitID, conventionID).
		Count(&count).Error
	if pgErrCode(err) == pgUndefinedColumn {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count catches for fursuit %s at convention %s: %w", fursuitID, conventionID, err)
	}
	return count, nil
}

// CountUniqueCatchersAtConvention reports math.MaxInt when the schema has
// no convention_id column, so the rarity rule can never fire against an
// unmigrated deployment.
func (s *DBStore) CountUniqueCatchersAtConvention(ctx context.Context, fursuitID, conventionID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Catch{}).
		Where("fursuit_id = ? AND convention_id = ?", fursuitID, conventionID).
		Distinct("catcher_id").
		Count(&count).Error
	if pgErrCode(err) == pgUndefinedColumn {
		return math.MaxInt, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count unique catchers for fursuit %s at convention %s: %w", fursuitID, conventionID, err)
	}
	return int(count), nil
}

// HasSecondCatchWithinWindow reports whether the user logged at least two
// catches in the trailing 60-second window ending at caughtAt, bounds
// inclusive.
func (s *DBStore) HasSecondCatchWithinWindow(ctx context.Context, userID string, caughtAt time.Time) (bool, error) {
	windowStart := caughtAt.Add(-60 * time.Second)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Catch{}).
		Where("catcher_id = ? AND caught_at >= ? AND caught_at <= ?", userID, windowStart, caughtAt).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check catch window for user %s: %w", userID, err)
	}
	return count >= 2, nil
}

// AwardAchievement upserts a grant, ignoring conflicts. The first grant
// wins; context is never overwritten.
func (s *DBStore) AwardAchievement(ctx context.Context, userID string, achievement models.Achievement, grantContext Context) error {
	if userID == "" {
		return nil
	}

	raw, err := json.Marshal(grantContext)
	if err != nil {
		return fmt.Errorf("encode grant context for %s: %w", achievement.Key, err)
	}

	grant := models.UserAchievement{
		UserID:        userID,
		AchievementID: achievement.ID,
		UnlockedAt:    s.now(),
		Context:       datatypes.JSON(raw),
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).
		Create(&grant).Error
	if err != nil {
		return fmt.Errorf("award %s to user %s: %w", achievement.Key, userID, err)
	}
	return nil
}
