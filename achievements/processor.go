// achievements/processor.go - Event processing entry points
package achievements

import (
	"context"
	"log"

	"tailtag/models"
)

// Sweep defaults, overridable per call.
const (
	DefaultLimitPerBatch = 25
	DefaultMaxBatches    = 10
)

// AwardHook is invoked after every successful award so a collaborator can
// fan the grant out (e.g. write a user-facing notification). Hook errors
// are logged and swallowed; notification delivery is best-effort and must
// never fail achievement processing.
type AwardHook func(userID string, achievement models.Achievement, grantContext Context, event *models.AchievementEvent) error

// AwardResult reports one award attempt that reached the store. Awarded
// is store-level success: it does not distinguish a fresh grant from an
// idempotent hit on an existing one.
type AwardResult struct {
	Key     string `json:"key"`
	UserID  string `json:"user_id"`
	Awarded bool   `json:"awarded"`
}

// ProcessResult is the outcome of processing one event.
type ProcessResult struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	Awards    []AwardResult `json:"awards"`
	Skipped   bool          `json:"skipped,omitempty"`
}

// BatchOptions bounds a backlog sweep.
type BatchOptions struct {
	LimitPerBatch int `json:"limit_per_batch"`
	MaxBatches    int `json:"max_batches"`
}

// BatchResult summarizes a sweep.
type BatchResult struct {
	Processed int             `json:"processed"`
	Results   []ProcessResult `json:"results"`
}

// Processor is the achievement engine. It is stateless across events;
// all shared state lives in the store behind conditional and idempotent
// writes, so any number of Processor instances may run concurrently.
type Processor struct {
	store          Store
	log            *log.Logger
	onAwardGranted AwardHook
}

// New builds a Processor. logger may be nil; onAwardGranted may be nil
// when no notification fan-out is wanted.
func New(store Store, logger *log.Logger, onAwardGranted AwardHook) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		store:          store,
		log:            logger,
		onAwardGranted: onAwardGranted,
	}
}

// ProcessEvent handles a single event pushed by a listener: load the
// catalog snapshot, evaluate, then mark the event processed. Claiming is
// not involved on this path; the caller is expected to skip events that
// already carry a processed_at stamp.
func (p *Processor) ProcessEvent(ctx context.Context, event models.AchievementEvent) (ProcessResult, error) {
	catalog, err := p.store.LoadActiveAchievements(ctx)
	if err != nil {
		return ProcessResult{EventID: event.ID, EventType: event.EventType}, err
	}

	result, err := p.evaluate(ctx, catalog, event)
	if err != nil {
		return result, err
	}

	if err := p.store.MarkEventProcessed(ctx, event.ID); err != nil {
		return result, err
	}
	return result, nil
}

// ProcessPendingEvents sweeps the unprocessed backlog in bounded batches.
// The catalog is loaded once for the whole sweep. A batch shorter than
// LimitPerBatch means the queue is drained; MaxBatches is a hard ceiling
// regardless. A failing event is logged, released for a future sweep and
// skipped; it never halts the batch.
func (p *Processor) ProcessPendingEvents(ctx context.Context, opts BatchOptions) (BatchResult, error) {
	limit := opts.LimitPerBatch
	if limit <= 0 {
		limit = DefaultLimitPerBatch
	}
	maxBatches := opts.MaxBatches
	if maxBatches <= 0 {
		maxBatches = DefaultMaxBatches
	}

	catalog, err := p.store.LoadActiveAchievements(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	summary := BatchResult{Results: []ProcessResult{}}

	for batch := 0; batch < maxBatches; batch++ {
		events, err := p.store.ClaimNextEvents(ctx, limit)
		if err != nil {
			return summary, err
		}
		if len(events) == 0 {
			break
		}

		for _, event := range events {
			result, err := p.evaluate(ctx, catalog, event)
			if err != nil {
				p.log.Printf("achievements: failed processing event %s: %v", event.ID, err)
				if resetErr := p.store.ResetEventForRetry(ctx, event.ID); resetErr != nil {
					p.log.Printf("achievements: failed releasing event %s for retry: %v", event.ID, resetErr)
				}
				continue
			}
			if err := p.store.MarkEventProcessed(ctx, event.ID); err != nil {
				p.log.Printf("achievements: failed marking event %s processed: %v", event.ID, err)
				continue
			}
			summary.Processed++
			summary.Results = append(summary.Results, result)
		}

		if len(events) < limit {
			break
		}
	}

	return summary, nil
}

func (p *Processor) fireAwardHook(userID string, achievement models.Achievement, grantContext Context, event *models.AchievementEvent) {
	if p.onAwardGranted == nil {
		return
	}
	if err := p.onAwardGranted(userID, achievement, grantContext, event); err != nil {
		p.log.Printf("achievements: award hook failed for %s -> %s: %v", achievement.Key, userID, err)
	}
}
