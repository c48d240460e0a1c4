package calls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callsight/console/internal/api"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	apiClient, err := api.New(server.URL)
	require.NoError(t, err)

	return NewClient(apiClient)
}

func TestCompanyCalls(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls/company/co-7", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"id": "call-1",
				"caller_number": "+61400000001",
				"sentiment": "positive",
				"status": "completed",
				"started_at": "2024-05-01T10:00:00Z",
				"duration_seconds": 185,
				"agent_id": "agent-9"
			},
			{
				"id": "call-2",
				"caller_number": null,
				"sentiment": null,
				"status": "ringing"
			}
		]`))
	}))

	records, err := client.CompanyCalls(context.Background(), "co-7")
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "call-1", first.ID)
	assert.Equal(t, "+61400000001", first.CallerNumber)
	assert.Equal(t, SentimentPositive, first.Sentiment)
	assert.Equal(t, StatusCompleted, first.Status)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), first.StartedAt)
	assert.Equal(t, float64(185), first.DurationSeconds)
	assert.Equal(t, "agent-9", first.Extra["agent_id"])
	assert.False(t, first.Active())

	second := records[1]
	assert.Equal(t, "call-2", second.ID)
	assert.Empty(t, second.CallerNumber)
	assert.Empty(t, second.Sentiment)
	assert.True(t, second.StartedAt.IsZero())
	assert.True(t, second.Active())
}

func TestActiveCompanyCalls(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls/company/co-7/active", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "call-3", "status": "in_progress"},
		})
	}))

	records, err := client.ActiveCompanyCalls(context.Background(), "co-7")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusInProgress, records[0].Status)
}

func TestCompanyCalls_MissingCompany(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be issued without a company id")
	}))

	_, err := client.CompanyCalls(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCompany)

	_, err = client.ActiveCompanyCalls(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCompany)
}

func TestCompanyCalls_Forbidden(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"forbidden"}`))
	}))

	_, err := client.CompanyCalls(context.Background(), "co-7")
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "forbidden", apiErr.Message)
}
