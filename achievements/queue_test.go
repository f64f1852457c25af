// achievements/queue_test.go
package achievements

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails catalog loads a set number of times before behaving.
type flakyStore struct {
	*fakeStore
	failuresLeft int
}

func (s *flakyStore) LoadActiveAchievements(ctx context.Context) (Catalog, error) {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return nil, errors.New("temporary outage")
	}
	return s.fakeStore.LoadActiveAchievements(ctx)
}

func newTestQueue(s Store) (*Queue, *[]time.Duration) {
	q := NewQueue(newTestProcessor(s), log.New(io.Discard, "", 0))
	sleeps := &[]time.Duration{}
	q.sleep = func(d time.Duration) {
		*sleeps = append(*sleeps, d)
	}
	return q, sleeps
}

func TestQueueProcessesInOrder(t *testing.T) {
	store := newFakeStore(t)
	q, _ := newTestQueue(store)
	q.Start(context.Background())

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		ok := q.Enqueue(checkinEvent(t, fmt.Sprintf("e%d", i), fmt.Sprintf("u%d", i), base))
		require.True(t, ok)
	}
	q.Stop()

	assert.Equal(t, []string{"e0", "e1", "e2"}, store.markedIDs)
}

func TestQueueSkipsAlreadyProcessedEvents(t *testing.T) {
	store := newFakeStore(t)
	q, _ := newTestQueue(store)
	q.Start(context.Background())
	defer q.Stop()

	event := checkinEvent(t, "e1", "u1", time.Now().UTC())
	stamp := time.Now().UTC()
	event.ProcessedAt = &stamp

	assert.False(t, q.Enqueue(event))
}

func TestQueueRetriesWithBackoff(t *testing.T) {
	store := &flakyStore{fakeStore: newFakeStore(t), failuresLeft: 2}
	q, sleeps := newTestQueue(store)
	q.Start(context.Background())

	require.True(t, q.Enqueue(checkinEvent(t, "e1", "u1", time.Now().UTC())))
	q.Stop()

	// two failures, two backoff sleeps, third attempt succeeds
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
	assert.Equal(t, []string{"e1"}, store.markedIDs)
	assert.True(t, store.hasGrant("u1", "EXPLORER"))
}

func TestQueueGivesUpAfterThreeAttempts(t *testing.T) {
	store := &flakyStore{fakeStore: newFakeStore(t), failuresLeft: 10}
	q, sleeps := newTestQueue(store)
	q.Start(context.Background())

	require.True(t, q.Enqueue(checkinEvent(t, "e1", "u1", time.Now().UTC())))
	q.Stop()

	// the event is abandoned with processed_at still null: the next
	// backlog sweep owns the retry from here
	assert.Len(t, *sleeps, 2)
	assert.Empty(t, store.markedIDs)
	assert.Equal(t, 7, store.failuresLeft)
}

func TestQueueRejectsEnqueueAfterStop(t *testing.T) {
	store := newFakeStore(t)
	q, _ := newTestQueue(store)
	q.Start(context.Background())
	q.Stop()

	assert.False(t, q.Enqueue(checkinEvent(t, "e1", "u1", time.Now().UTC())))
}
