// achievements/evaluator.go - Per-event-type rule evaluation
package achievements

import (
	"context"
	"strings"
	"time"

	"tailtag/models"
)

// Catch-count thresholds, each with its own achievement. All three are
// re-checked on every catch event; the idempotent upsert makes repeat
// grants harmless, so no short-circuit state is kept.
var catchThresholds = []struct {
	Key   string
	Count int64
}{
	{"FIRST_CATCH", 1},
	{"GETTING_THE_HANG_OF_IT", 10},
	{"SUPER_CATCHER", 25},
}

// evaluate dispatches an event to its evaluation routine. Unknown event
// types are skipped, not failed: an older deployment must tolerate event
// kinds persisted by a newer producer.
func (p *Processor) evaluate(ctx context.Context, catalog Catalog, event models.AchievementEvent) (ProcessResult, error) {
	result := ProcessResult{
		EventID:   event.ID,
		EventType: event.EventType,
		Awards:    []AwardResult{},
	}

	var err error
	switch event.EventType {
	case models.EventCatchCreated:
		result.Awards, err = p.evaluateCatchCreated(ctx, catalog, event)
	case models.EventProfileUpdated:
		result.Awards, err = p.evaluateProfileUpdated(ctx, catalog, event)
	case models.EventConventionCheckin:
		result.Awards, err = p.evaluateConventionCheckin(ctx, catalog, event)
	default:
		p.log.Printf("achievements: unhandled event type %q (event %s)", event.EventType, event.ID)
		result.Skipped = true
	}

	if result.Awards == nil {
		result.Awards = []AwardResult{}
	}
	return result, err
}

// tryAward attempts one award. A key missing from the active catalog or
// carrying the wrong recipient role is silently skipped; catalog
// misconfiguration must not crash processing.
func (p *Processor) tryAward(ctx context.Context, catalog Catalog, key, role, userID string, grantContext Context, event *models.AchievementEvent, awards []AwardResult) ([]AwardResult, error) {
	achievement, ok := catalog[key]
	if !ok || achievement.RecipientRole != role || userID == "" {
		return awards, nil
	}

	if err := p.store.AwardAchievement(ctx, userID, achievement, grantContext); err != nil {
		return awards, err
	}

	p.fireAwardHook(userID, achievement, grantContext, event)
	return append(awards, AwardResult{Key: key, UserID: userID, Awarded: true}), nil
}

func (p *Processor) evaluateCatchCreated(ctx context.Context, catalog Catalog, event models.AchievementEvent) ([]AwardResult, error) {
	payload, err := event.CatchCreated()
	if err != nil || payload.CatchID == "" {
		p.log.Printf("achievements: skipping catch event %s: missing catch_id", event.ID)
		return nil, nil
	}

	catchRow, err := p.store.FetchCatch(ctx, payload.CatchID)
	if err != nil {
		return nil, err
	}
	if catchRow == nil {
		// the catch was deleted before its event got processed
		p.log.Printf("achievements: catch %s not found; event %s is a no-op", payload.CatchID, event.ID)
		return nil, nil
	}

	base := Context{
		"catch_id":   catchRow.ID,
		"fursuit_id": catchRow.FursuitID,
	}
	if id := conventionID(catchRow); id != "" {
		base["convention_id"] = id
	}

	awards := []AwardResult{}

	if catchRow.CatcherID != "" {
		awards, err = p.evaluateCatcherRules(ctx, catalog, catchRow, cloneContext(base), &event, awards)
		if err != nil {
			return awards, err
		}
	}

	ownerID := ""
	if catchRow.Fursuit != nil && catchRow.Fursuit.OwnerID != nil {
		ownerID = *catchRow.Fursuit.OwnerID
	}
	if ownerID == "" && payload.FursuitOwnerID != nil {
		// fursuit join unavailable; trust the payload
		ownerID = *payload.FursuitOwnerID
	}
	if ownerID != "" {
		ownerContext := cloneContext(base)
		ownerContext["owner_id"] = ownerID
		awards, err = p.evaluateOwnerRules(ctx, catalog, catchRow, ownerID, ownerContext, &event, awards)
		if err != nil {
			return awards, err
		}
	}

	return awards, nil
}

// evaluateCatcherRules runs the catcher-role rule group for the catching
// user. Thresholds are monotone, so every threshold is checked against
// the current total on every event; the engine re-derives from aggregate
// state rather than tracking what was granted before.
func (p *Processor) evaluateCatcherRules(ctx context.Context, catalog Catalog, catchRow *CatchDetail, grantContext Context, event *models.AchievementEvent, awards []AwardResult) ([]AwardResult, error) {
	userID := catchRow.CatcherID

	totalCatches, err := p.store.CountCatchesByUser(ctx, userID)
	if err != nil {
		return awards, err
	}
	for _, threshold := range catchThresholds {
		if totalCatches >= threshold.Count {
			awards, err = p.tryAward(ctx, catalog, threshold.Key, models.RoleCatcher, userID, grantContext, event, awards)
			if err != nil {
				return awards, err
			}
		}
	}

	speciesCount, err := p.store.CountDistinctSpeciesCaught(ctx, userID)
	if err != nil {
		return awards, err
	}
	if speciesCount >= 5 {
		awards, err = p.tryAward(ctx, catalog, "SUIT_SAMPLER", models.RoleCatcher, userID, grantContext, event, awards)
		if err != nil {
			return awards, err
		}
	}

	var speciesName, speciesID *string
	fursuitID := catchRow.FursuitID
	if catchRow.Fursuit != nil {
		fursuitID = catchRow.Fursuit.ID
		speciesName = catchRow.Fursuit.Species
		speciesID = catchRow.Fursuit.SpeciesID
	}
	hybrid, err := p.store.HasHybridOrMultiSpecies(ctx, fursuitID, speciesName, speciesID)
	if err != nil {
		return awards, err
	}
	if hybrid {
		awards, err = p.tryAward(ctx, catalog, "MIX_AND_MATCH", models.RoleCatcher, userID, grantContext, event, awards)
		if err != nil {
			return awards, err
		}
	}

	// Convention-scoped rules need both the convention id on the catch
	// and the convention row itself (schedule and timezone).
	if convID := conventionID(catchRow); convID != "" && catchRow.Convention != nil {
		localDate, localHour := localParts(catchRow.CaughtAt, catchRow.Convention.Timezone)

		if catchRow.Convention.StartDate != nil && localDate == *catchRow.Convention.StartDate {
			awards, err = p.tryAward(ctx, catalog, "DAY_ONE_DEVOTEE", models.RoleCatcher, userID, grantContext, event, awards)
			if err != nil {
				return awards, err
			}
		}

		if localHour >= 22 {
			awards, err = p.tryAward(ctx, catalog, "NIGHT_OWL", models.RoleCatcher, userID, grantContext, event, awards)
			if err != nil {
				return awards, err
			}
		}

		conventionCount, err := p.store.CountDistinctConventions(ctx, userID)
		if err != nil {
			return awards, err
		}
		if conventionCount >= 3 {
			awards, err = p.tryAward(ctx, catalog, "WORLD_TOUR", models.RoleCatcher, userID, grantContext, event, awards)
			if err != nil {
				return awards, err
			}
		}

		// Rarity counts distinct catchers including the current catch.
		uniqueCatchers, err := p.store.CountUniqueCatchersAtConvention(ctx, catchRow.FursuitID, convID)
		if err != nil {
			return awards, err
		}
		if uniqueCatchers < 10 {
			awards, err = p.tryAward(ctx, catalog, "RARE_FIND", models.RoleCatcher, userID, grantContext, event, awards)
			if err != nil {
				return awards, err
			}
		}
	}

	doubleTrouble, err := p.store.HasSecondCatchWithinWindow(ctx, userID, catchRow.CaughtAt)
	if err != nil {
		return awards, err
	}
	if doubleTrouble {
		awards, err = p.tryAward(ctx, catalog, "DOUBLE_TROUBLE", models.RoleCatcher, userID, grantContext, event, awards)
		if err != nil {
			return awards, err
		}
	}

	return awards, nil
}

func (p *Processor) evaluateOwnerRules(ctx context.Context, catalog Catalog, catchRow *CatchDetail, ownerID string, grantContext Context, event *models.AchievementEvent, awards []AwardResult) ([]AwardResult, error) {
	totalForFursuit, err := p.store.CountCatchesForFursuit(ctx, catchRow.FursuitID)
	if err != nil {
		return awards, err
	}
	if totalForFursuit >= 1 {
		awards, err = p.tryAward(ctx, catalog, "DEBUT_PERFORMANCE", models.RoleFursuitOwner, ownerID, grantContext, event, awards)
		if err != nil {
			return awards, err
		}
	}

	if convID := conventionID(catchRow); convID != "" {
		countAtConvention, err := p.store.CountCatchesForFursuitAtConvention(ctx, catchRow.FursuitID, convID)
		if err != nil {
			return awards, err
		}
		if countAtConvention >= 25 {
			awards, err = p.tryAward(ctx, catalog, "FAN_FAVORITE", models.RoleFursuitOwner, ownerID, grantContext, event, awards)
			if err != nil {
				return awards, err
			}
		}
	}

	return awards, nil
}

func (p *Processor) evaluateProfileUpdated(ctx context.Context, catalog Catalog, event models.AchievementEvent) ([]AwardResult, error) {
	payload, err := event.ProfileUpdated()
	if err != nil || payload.UserID == "" {
		p.log.Printf("achievements: profile event %s missing user_id", event.ID)
		return nil, nil
	}

	profile, err := p.store.FetchProfile(ctx, payload.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	if !filled(profile.Username) || !filled(profile.Bio) || !filled(profile.AvatarURL) {
		return nil, nil
	}

	return p.tryAward(ctx, catalog, "PROFILE_COMPLETE", models.RoleAny, payload.UserID,
		Context{"user_id": payload.UserID}, &event, []AwardResult{})
}

func (p *Processor) evaluateConventionCheckin(ctx context.Context, catalog Catalog, event models.AchievementEvent) ([]AwardResult, error) {
	payload, err := event.ConventionCheckin()
	if err != nil || payload.UserID == "" {
		p.log.Printf("achievements: checkin event %s missing user_id", event.ID)
		return nil, nil
	}

	grantContext := Context{"user_id": payload.UserID}
	if payload.ConventionID != nil && *payload.ConventionID != "" {
		grantContext["convention_id"] = *payload.ConventionID
	}

	return p.tryAward(ctx, catalog, "EXPLORER", models.RoleAny, payload.UserID,
		grantContext, &event, []AwardResult{})
}

// conventionID resolves the catch's convention id from the catch row or
// the joined convention record.
func conventionID(catchRow *CatchDetail) string {
	if catchRow.ConventionID != nil && *catchRow.ConventionID != "" {
		return *catchRow.ConventionID
	}
	if catchRow.Convention != nil {
		return catchRow.Convention.ID
	}
	return ""
}

// localParts converts a timestamp to the convention's local calendar date
// and hour. An unknown or empty timezone falls back to UTC.
func localParts(t time.Time, tz *string) (date string, hour int) {
	loc := time.UTC
	if tz != nil && *tz != "" {
		if parsed, err := time.LoadLocation(*tz); err == nil {
			loc = parsed
		}
	}
	local := t.In(loc)
	return local.Format("2006-01-02"), local.Hour()
}

func filled(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func cloneContext(c Context) Context {
	clone := make(Context, len(c)+1)
	for k, v := range c {
		clone[k] = v
	}
	return clone
}
