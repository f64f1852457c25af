// achievements/queue.go - In-process FIFO queue for the push listener path
package achievements

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"tailtag/models"
)

const (
	queueBuffer      = 1024
	maxAttempts      = 3
	initialBackoff   = time.Second
	backoffMultipler = 2
)

// Queue serializes live events through a single worker so two events for
// the same user never race their aggregate reads against each other
// within one process. Each event gets up to three processing attempts
// with exponential backoff; a terminal failure is logged and the event is
// left unprocessed for the next sweep to pick up.
type Queue struct {
	processor *Processor
	log       *log.Logger
	events    chan models.AchievementEvent
	wg        sync.WaitGroup
	sleep     func(time.Duration)

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewQueue builds a queue around processor. logger may be nil.
func NewQueue(processor *Processor, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{
		processor: processor,
		log:       logger,
		events:    make(chan models.AchievementEvent, queueBuffer),
		sleep:     time.Sleep,
	}
}

// Start launches the worker. ctx cancellation stops processing of
// retries in flight; queued events drain until Stop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for event := range q.events {
			q.handle(ctx, event)
		}
	}()
}

// Enqueue adds an event to the FIFO queue. Events that already carry a
// processed_at stamp are skipped. Returns false if the queue is stopped
// or full.
func (q *Queue) Enqueue(event models.AchievementEvent) bool {
	if event.ProcessedAt != nil {
		q.log.Printf("achievements: skipping event %s - already processed", event.ID)
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()

	select {
	case q.events <- event:
		return true
	default:
		q.log.Printf("achievements: queue full, dropping event %s (will be swept later)", event.ID)
		return false
	}
}

// Stop closes the queue and waits for the worker to drain it.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.events)
	q.wg.Wait()
}

// Pending reports the number of queued events, for health reporting.
func (q *Queue) Pending() int {
	return len(q.events)
}

func (q *Queue) handle(ctx context.Context, event models.AchievementEvent) {
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := q.processor.ProcessEvent(ctx, event)
		if err == nil {
			q.logResult(result)
			return
		}

		if attempt < maxAttempts {
			q.log.Printf("achievements: attempt %d failed for event %s: %v", attempt, event.ID, err)
			q.sleep(backoff)
			backoff *= backoffMultipler
			continue
		}

		// The event keeps processed_at = null and will be retried by the
		// next sweep.
		q.log.Printf("achievements: failed processing event %s after %d attempts: %v", event.ID, maxAttempts, err)
	}
}

func (q *Queue) logResult(result ProcessResult) {
	if result.Skipped {
		q.log.Printf("achievements: event %s skipped (%s)", result.EventID, result.EventType)
		return
	}
	if len(result.Awards) == 0 {
		q.log.Printf("achievements: event %s (%s) processed - no awards", result.EventID, result.EventType)
		return
	}

	parts := make([]string, len(result.Awards))
	for i, award := range result.Awards {
		parts[i] = award.Key + " -> " + award.UserID
	}
	q.log.Printf("achievements: event %s (%s) awarded: %s", result.EventID, result.EventType, strings.Join(parts, ", "))
}
