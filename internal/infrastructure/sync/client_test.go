package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
)

func sampleEvents() []domain.XPEvent {
	return []domain.XPEvent{
		{
			ID:          "ev-1",
			UserID:      "u1",
			Amount:      37,
			Source:      domain.SourceQuiz,
			Description: "quiz q1: 5/5",
			CreatedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:        "ev-2",
			UserID:    "u1",
			Amount:    25,
			Source:    domain.SourceBadge,
			CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestClient_UploadBatch(t *testing.T) {
	var received uploadRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/progression/events", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		err := json.NewDecoder(r.Body).Decode(&received)
		assert.NoError(t, err)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := DefaultClientConfig(server.URL)
	cfg.APIKey = "secret"
	client := NewClient(cfg)

	err := client.UploadBatch(context.Background(), sampleEvents())
	require.NoError(t, err)

	require.Len(t, received.Events, 2)
	assert.Equal(t, "ev-1", received.Events[0].ID)
	assert.Equal(t, "u1", received.Events[0].UserID)
	assert.Equal(t, 37, received.Events[0].Amount)
	assert.Equal(t, "quiz", received.Events[0].Source)
	assert.Equal(t, "badge", received.Events[1].Source)
}

func TestClient_UploadBatch_EmptyIsNoOp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))

	err := client.UploadBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_UploadBatch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))

	err := client.UploadBatch(context.Background(), sampleEvents())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSyncInvalidResponse)
	assert.Equal(t, int32(1), calls.Load(), "4xx is permanent, no retry")
}

func TestClient_UploadBatch_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))

	err := client.UploadBatch(context.Background(), sampleEvents())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "retried after the 500")
}
