// achievements/fake_store_test.go - In-memory Store fixture
package achievements

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tailtag/database"
	"tailtag/models"
)

type grantRecord struct {
	UserID        string
	AchievementID string
	Key           string
	Context       Context
}

// fakeStore implements Store in memory. Aggregates are derived from the
// seeded catches the same way the SQL queries derive them, and the
// degradation toggles reproduce the neutral values the real store folds
// schema-absence errors into.
type fakeStore struct {
	mu sync.Mutex

	catalog  []models.Achievement
	events   []models.AchievementEvent
	catches  map[string]*CatchDetail
	profiles map[string]*models.Profile
	species  map[string]models.FursuitSpecies
	// rows per fursuit in the many-to-many species mapping table
	speciesMapRows map[string]int

	speciesMapTableMissing  bool
	conventionColumnMissing bool

	grants      map[string]grantRecord
	grantOrder  []grantRecord
	awardCalls  int
	awardErr    error
	fetchErrs   map[string]error
	catalogErr  error
	markedIDs   []string
	resetIDs    []string
	markErr     error
	profileErrs map[string]error
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	s := &fakeStore{
		catches:        make(map[string]*CatchDetail),
		profiles:       make(map[string]*models.Profile),
		species:        make(map[string]models.FursuitSpecies),
		speciesMapRows: make(map[string]int),
		grants:         make(map[string]grantRecord),
		fetchErrs:      make(map[string]error),
		profileErrs:    make(map[string]error),
	}
	for i, a := range database.CatalogSeed() {
		a.ID = fmt.Sprintf("ach-%02d", i)
		s.catalog = append(s.catalog, a)
	}
	return s
}

func (s *fakeStore) achievementByKey(key string) models.Achievement {
	for _, a := range s.catalog {
		if a.Key == key {
			return a
		}
	}
	return models.Achievement{}
}

func (s *fakeStore) setRole(key, role string) {
	for i := range s.catalog {
		if s.catalog[i].Key == key {
			s.catalog[i].RecipientRole = role
		}
	}
}

func (s *fakeStore) deactivate(key string) {
	for i := range s.catalog {
		if s.catalog[i].Key == key {
			s.catalog[i].IsActive = false
		}
	}
}

func (s *fakeStore) addCatch(c CatchDetail) {
	s.catches[c.ID] = &c
}

func (s *fakeStore) grantKeys(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := []string{}
	for _, g := range s.grantOrder {
		if g.UserID == userID {
			keys = append(keys, g.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *fakeStore) hasGrant(userID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grantOrder {
		if g.UserID == userID && g.Key == key {
			return true
		}
	}
	return false
}

func (s *fakeStore) userCatches(userID string) []*CatchDetail {
	out := []*CatchDetail{}
	for _, c := range s.catches {
		if c.CatcherID == userID {
			out = append(out, c)
		}
	}
	return out
}

func (s *fakeStore) ClaimNextEvents(ctx context.Context, limit int) ([]models.AchievementEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := []*models.AchievementEvent{}
	for i := range s.events {
		if s.events[i].ProcessedAt == nil {
			pending = append(pending, &s.events[i])
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	claimed := []models.AchievementEvent{}
	now := time.Now().UTC()
	for _, e := range pending {
		if len(claimed) >= limit {
			break
		}
		e.ProcessedAt = &now
		claimed = append(claimed, *e)
	}
	return claimed, nil
}

func (s *fakeStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	now := time.Now().UTC()
	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events[i].ProcessedAt = &now
		}
	}
	s.markedIDs = append(s.markedIDs, eventID)
	return nil
}

func (s *fakeStore) ResetEventForRetry(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events[i].ProcessedAt = nil
		}
	}
	s.resetIDs = append(s.resetIDs, eventID)
	return nil
}

func (s *fakeStore) LoadActiveAchievements(ctx context.Context) (Catalog, error) {
	if s.catalogErr != nil {
		return nil, s.catalogErr
	}
	catalog := Catalog{}
	for _, a := range s.catalog {
		if a.IsActive {
			catalog[a.Key] = a
		}
	}
	return catalog, nil
}

func (s *fakeStore) FetchCatch(ctx context.Context, catchID string) (*CatchDetail, error) {
	if err := s.fetchErrs[catchID]; err != nil {
		return nil, err
	}
	c, ok := s.catches[catchID]
	if !ok {
		return nil, nil
	}
	copied := *c
	if s.conventionColumnMissing {
		copied.ConventionID = nil
		copied.Convention = nil
	}
	return &copied, nil
}

func (s *fakeStore) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if err := s.profileErrs[userID]; err != nil {
		return nil, err
	}
	return s.profiles[userID], nil
}

func (s *fakeStore) CountCatchesByUser(ctx context.Context, userID string) (int64, error) {
	return int64(len(s.userCatches(userID))), nil
}

func (s *fakeStore) CountDistinctSpeciesCaught(ctx context.Context, userID string) (int, error) {
	set := map[string]struct{}{}
	for _, c := range s.userCatches(userID) {
		if c.Fursuit == nil {
			continue
		}
		switch {
		case c.Fursuit.SpeciesID != nil && *c.Fursuit.SpeciesID != "":
			set[*c.Fursuit.SpeciesID] = struct{}{}
		case c.Fursuit.Species != nil && strings.TrimSpace(*c.Fursuit.Species) != "":
			set[strings.ToLower(strings.TrimSpace(*c.Fursuit.Species))] = struct{}{}
		}
	}
	return len(set), nil
}

func (s *fakeStore) HasHybridOrMultiSpecies(ctx context.Context, fursuitID string, speciesName, speciesID *string) (bool, error) {
	if speciesName != nil && strings.Contains(strings.ToLower(*speciesName), "hybrid") {
		return true, nil
	}
	if speciesID != nil {
		if sp, ok := s.species[*speciesID]; ok && sp.IsHybrid {
			return true, nil
		}
	}
	if s.speciesMapTableMissing {
		return false, nil
	}
	return s.speciesMapRows[fursuitID] > 1, nil
}

func (s *fakeStore) CountDistinctConventions(ctx context.Context, userID string) (int, error) {
	if s.conventionColumnMissing {
		return 0, nil
	}
	set := map[string]struct{}{}
	for _, c := range s.userCatches(userID) {
		if c.ConventionID != nil {
			set[*c.ConventionID] = struct{}{}
		}
	}
	return len(set), nil
}

func (s *fakeStore) CountCatchesForFursuit(ctx context.Context, fursuitID string) (int64, error) {
	var n int64
	for _, c := range s.catches {
		if c.FursuitID == fursuitID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountCatchesForFursuitAtConvention(ctx context.Context, fursuitID, conventionID string) (int64, error) {
	if s.conventionColumnMissing {
		return 0, nil
	}
	var n int64
	for _, c := range s.catches {
		if c.FursuitID == fursuitID && c.ConventionID != nil && *c.ConventionID == conventionID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountUniqueCatchersAtConvention(ctx context.Context, fursuitID, conventionID string) (int, error) {
	if s.conventionColumnMissing {
		return math.MaxInt, nil
	}
	set := map[string]struct{}{}
	for _, c := range s.catches {
		if c.FursuitID == fursuitID && c.ConventionID != nil && *c.ConventionID == conventionID {
			set[c.CatcherID] = struct{}{}
		}
	}
	return len(set), nil
}

func (s *fakeStore) HasSecondCatchWithinWindow(ctx context.Context, userID string, caughtAt time.Time) (bool, error) {
	start := caughtAt.Add(-60 * time.Second)
	n := 0
	for _, c := range s.userCatches(userID) {
		if !c.CaughtAt.Before(start) && !c.CaughtAt.After(caughtAt) {
			n++
		}
	}
	return n >= 2, nil
}

func (s *fakeStore) AwardAchievement(ctx context.Context, userID string, achievement models.Achievement, grantContext Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awardCalls++
	if s.awardErr != nil {
		return s.awardErr
	}
	if userID == "" {
		return nil
	}
	key := userID + "|" + achievement.ID
	if _, exists := s.grants[key]; exists {
		return nil // conflict: first grant wins
	}
	record := grantRecord{
		UserID:        userID,
		AchievementID: achievement.ID,
		Key:           achievement.Key,
		Context:       grantContext,
	}
	s.grants[key] = record
	s.grantOrder = append(s.grantOrder, record)
	return nil
}

// test data helpers

func strptr(s string) *string { return &s }

func makeEvent(t *testing.T, id, eventType string, payload any, createdAt time.Time) models.AchievementEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.AchievementEvent{
		ID:        id,
		EventType: eventType,
		Payload:   raw,
		CreatedAt: createdAt,
	}
}

func catchEvent(t *testing.T, eventID, catchID, catcherID, fursuitID string) models.AchievementEvent {
	t.Helper()
	return makeEvent(t, eventID, models.EventCatchCreated, models.CatchCreatedPayload{
		CatchID:   catchID,
		CatcherID: catcherID,
		FursuitID: fursuitID,
		CaughtAt:  time.Now().UTC().Format(time.RFC3339),
	}, time.Now().UTC())
}
