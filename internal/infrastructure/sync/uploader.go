package sync

import (
	"context"
	"fmt"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
	"github.com/quizowl/quizowl-progression/pkg/logger"
	"github.com/quizowl/quizowl-progression/pkg/timeutil"
)

// DefaultBatchSize is the number of XP events uploaded per pass.
const DefaultBatchSize = 100

// Uploader drains the XP event outbox into the remote backend.
// Events are uploaded oldest first and marked synced only after the
// backend accepts the batch.
type Uploader struct {
	events    domain.XPEventRepository
	client    *Client
	publisher shared.EventPublisher
	clock     timeutil.Clock
	batchSize int
	log       *logger.Logger
}

// UploaderConfig contains configuration for the Uploader.
type UploaderConfig struct {
	// Events is the XP event repository (the outbox).
	Events domain.XPEventRepository

	// Client is the sync client.
	Client *Client

	// Publisher receives sync lifecycle events (optional).
	Publisher shared.EventPublisher

	// Clock is the time source.
	Clock timeutil.Clock

	// BatchSize limits events per upload (default DefaultBatchSize).
	BatchSize int

	// Logger for structured logging.
	Logger *logger.Logger
}

// NewUploader creates a new outbox uploader.
func NewUploader(cfg UploaderConfig) *Uploader {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.NewSystemClock(nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	return &Uploader{
		events:    cfg.Events,
		client:    cfg.Client,
		publisher: cfg.Publisher,
		clock:     cfg.Clock,
		batchSize: cfg.BatchSize,
		log:       cfg.Logger.With(logger.Component("sync_uploader")),
	}
}

// RunOnce uploads one batch of unsynced events.
// Returns the number of events uploaded.
func (u *Uploader) RunOnce(ctx context.Context) (int, error) {
	events, err := u.events.ListUnsynced(ctx, u.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unsynced events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := u.client.UploadBatch(ctx, events); err != nil {
		u.log.Warn("upload batch failed",
			logger.Int("pending", len(events)),
			logger.Err(err),
		)
		u.publish(shared.NewSyncFailedEvent(err.Error(), len(events), u.clock.Now()))
		return 0, err
	}

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	if err := u.events.MarkSynced(ctx, ids, u.clock.Now()); err != nil {
		// The backend deduplicates by ID, so the next pass re-uploads safely.
		return 0, fmt.Errorf("mark events synced: %w", err)
	}

	u.log.Info("uploaded xp events", logger.Int("count", len(events)))
	u.publish(shared.NewSyncCompletedEvent(len(events), u.clock.Now()))

	return len(events), nil
}

// Drain repeatedly uploads batches until the outbox is empty or an
// upload fails.
func (u *Uploader) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := u.RunOnce(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < u.batchSize {
			return total, nil
		}
	}
}

func (u *Uploader) publish(event shared.Event) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(event); err != nil {
		u.log.Warn("failed to publish sync event", logger.Err(err))
	}
}
