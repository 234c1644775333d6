// Package sync implements the remote sync client for the QuizOwl backend.
// The XP event log is uploaded in batches; the backend deduplicates by
// event ID, so re-uploading after a partial failure is safe. Local
// progression never waits on the remote side: uploads run from the
// background worker and failures only delay synchronization.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
	"github.com/quizowl/quizowl-progression/pkg/circuitbreaker"
	"github.com/quizowl/quizowl-progression/pkg/logger"
	"github.com/quizowl/quizowl-progression/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the sync client.
type ClientConfig struct {
	// BaseURL is the backend API base URL.
	BaseURL string

	// APIKey authenticates this instance against the backend.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client uploads XP events to the remote backend.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	log        *logger.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new sync client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	log := config.Logger.With(logger.Component("sync_client"))

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		log:     log,
		retrier: retry.SyncServiceRetrier(),
		breaker: circuitbreaker.SyncServiceBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	}
}

// eventDTO is the wire representation of a single XP event.
type eventDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      int       `json:"amount"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type uploadRequest struct {
	Events []eventDTO `json:"events"`
}

// UploadBatch uploads a batch of XP events.
// Retries transient failures with backoff; an open circuit fails fast.
func (c *Client) UploadBatch(ctx context.Context, events []domain.XPEvent) error {
	if len(events) == 0 {
		return nil
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventDTO{
			ID:          e.ID,
			UserID:      e.UserID,
			Amount:      int(e.Amount),
			Source:      string(e.Source),
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		})
	}

	body, err := json.Marshal(uploadRequest{Events: dtos})
	if err != nil {
		return fmt.Errorf("marshal upload request: %w", err)
	}

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.doUpload(ctx, body)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return retry.Permanent(shared.ErrSyncUnavailable)
		}
		return err
	})
}

// doUpload performs a single upload attempt.
func (c *Client) doUpload(ctx context.Context, body []byte) error {
	url := c.config.BaseURL + "/api/v1/progression/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return retry.Retryable(shared.ErrSyncTimeout)
		}
		return retry.Retryable(fmt.Errorf("%w: %v", shared.ErrSyncUnavailable, err))
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(shared.ErrSyncRateLimited)
	case resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("%w: status %d", shared.ErrSyncUnavailable, resp.StatusCode))
	default:
		return retry.Permanent(fmt.Errorf("%w: status %d", shared.ErrSyncInvalidResponse, resp.StatusCode))
	}
}

// BreakerState returns the current circuit breaker state for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
