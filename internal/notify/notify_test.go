package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mida-project/mission-cli/internal/config"
	"github.com/mida-project/mission-cli/internal/model"
)

func TestJobSucceeded_SendsWebhook(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL})
	n.JobSucceeded(context.Background(), "reconcile", &model.ChangeReport{
		RunID:       "run-1",
		BatchSize:   10,
		Created:     2,
		Updated:     1,
		Quarantined: 1,
	})

	assert.Equal(t, "reconcile", got.Job)
	assert.Equal(t, "succeeded", got.Status)
	assert.Equal(t, "job reconcile completed: 2 created, 1 updated, 1 quarantined (batch of 10)", got.Message)
	assert.Equal(t, "run-1", got.Details["run_id"])
}

func TestJobSucceeded_NilReport(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL})
	n.JobSucceeded(context.Background(), "backup", nil)

	assert.Equal(t, "job backup completed", got.Message)
	assert.Nil(t, got.Details)
}

func TestJobFailed_SendsWebhook(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL})
	n.JobFailed(context.Background(), "cleanup", assert.AnError)

	assert.Equal(t, "cleanup", got.Job)
	assert.Equal(t, "failed", got.Status)
	assert.Contains(t, got.Message, "job cleanup failed")
}

func TestNotifier_NoopWithoutURL(t *testing.T) {
	// Must not panic or attempt any network call.
	n := New(config.NotifyConfig{})
	n.JobSucceeded(context.Background(), "reconcile", nil)
	n.JobFailed(context.Background(), "reconcile", assert.AnError)
}
