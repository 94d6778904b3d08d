package apiv1

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreightFox/FreightFox/app/models"
	"github.com/FreightFox/FreightFox/internal/pkg/engine"
	"github.com/FreightFox/FreightFox/internal/pkg/marketplace"
	"github.com/FreightFox/FreightFox/internal/pkg/store"
)

func newTestApp(t *testing.T, handler http.Handler, pollInterval time.Duration) (*fiber.App, *engine.Engine) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := &marketplace.Client{BaseURL: srv.URL, HTTPClient: srv.Client()}
	e := engine.New(store.New(), client, "carrier-1", pollInterval)

	app := fiber.New()
	RegisterHandlers(app.Group("/api/v1"), NewAPIServer(e))
	return app, e
}

func TestDeleteSubscriptionAlreadyCancelledNonFatal(t *testing.T) {
	var calls atomic.Int32
	app, e := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), time.Minute)

	e.Store().PutVerification(models.VerificationStatus{
		ActorID:   "carrier-1",
		Value:     models.VerificationVerified,
		UpdatedAt: time.Now().UTC(),
	})
	e.Store().PutSubscription(models.Subscription{
		ID:        "sub-1",
		Plan:      models.PlanBasic,
		Status:    models.SubscriptionStatusCancelled,
		UpdatedAt: time.Now().UTC(),
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/subscriptions/sub-1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "cancelling twice is non-fatal")

	var body struct {
		Code         string              `json:"code"`
		Hint         string              `json:"hint"`
		Subscription models.Subscription `json:"subscription"`
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "already_cancelled", body.Code)
	assert.Equal(t, "refresh", body.Hint)
	assert.Equal(t, "sub-1", body.Subscription.ID)
	assert.Zero(t, calls.Load(), "no server round-trip for a known cancelled subscription")
}

func TestPollingDemandLifecycle(t *testing.T) {
	var refreshes atomic.Int32
	app, _ := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}), 5*time.Millisecond)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/polling", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID string `json:"id"`
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &body))
	require.NotEmpty(t, body.ID)

	// the held demand drives full-state refreshes against the server
	require.Eventually(t, func() bool {
		return refreshes.Load() > 0
	}, time.Second, time.Millisecond)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/polling/"+body.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the id is single-use
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/polling/"+body.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReleaseUnknownPollingDemand(t *testing.T) {
	app, _ := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), time.Minute)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/polling/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
