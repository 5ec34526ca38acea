package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldensig/goldensig/server/internal/compute"
	"github.com/goldensig/goldensig/server/internal/config"
	"github.com/goldensig/goldensig/server/internal/session"
)

func approval() session.Approval {
	return session.Approval{
		SessionID:         "s-1",
		BatchID:           "B7",
		PreviousID:        "B3",
		EnergyDiff:        -2.5,
		YieldDiff:         1,
		OptimizationScore: 0.91,
		Impact:            compute.Sustainability(-2.5),
		ApprovedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// recorder captures request bodies.
type recorder struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func (r *recorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, string(b))
		r.mu.Unlock()
		if req.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		if r.status != 0 {
			w.WriteHeader(r.status)
		}
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func TestDeliver_Targets(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	t.Setenv("HOOK_SLACK", srv.URL)
	t.Setenv("HOOK_TEAMS", srv.URL)
	t.Setenv("HOOK_HTTP", srv.URL)

	n := New([]config.WebhookConfig{
		{Type: "slack", URLEnv: "HOOK_SLACK"},
		{Type: "teams", URLEnv: "HOOK_TEAMS"},
		{Type: "http", URLEnv: "HOOK_HTTP"},
	})
	n.Deliver(context.Background(), approval())

	bodies := rec.got()
	require.Len(t, bodies, 3)

	var slack map[string]string
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &slack))
	assert.True(t, strings.HasPrefix(slack["text"], "*[APPROVED]* "))
	assert.Contains(t, slack["text"], "batch B7 replaces B3")

	var teams map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(bodies[1]), &teams))
	assert.Equal(t, "MessageCard", teams["@type"])
	assert.Equal(t, "Golden Signature approved: B7", teams["title"])

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(bodies[2]), &ev))
	assert.Equal(t, EventApproved, ev.Type)
	assert.Equal(t, approval(), ev.Approval)
}

func TestDeliver_SkipsUnresolvedURL(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	n := New([]config.WebhookConfig{{Type: "http", URLEnv: "HOOK_NOT_SET_ANYWHERE"}})
	n.Deliver(context.Background(), approval())
	assert.Empty(t, rec.got())
}

func TestDeliver_ErrorStatusDoesNotPanic(t *testing.T) {
	rec := &recorder{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()
	t.Setenv("HOOK_HTTP", srv.URL)

	n := New([]config.WebhookConfig{{Type: "http", URLEnv: "HOOK_HTTP"}})
	n.Deliver(context.Background(), approval())
	assert.Len(t, rec.got(), 1)
}

func TestApproved_DeliversInBackground(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()
	t.Setenv("HOOK_HTTP", srv.URL)

	n := New([]config.WebhookConfig{{Type: "http", URLEnv: "HOOK_HTTP"}})

	ctx, cancel := context.WithCancel(context.Background())
	n.Approved(ctx, approval())
	cancel() // delivery must outlive the triggering request
	n.Wait()

	assert.Len(t, rec.got(), 1)
}

func TestApproved_NoWebhooks(t *testing.T) {
	n := New(nil)
	n.Approved(context.Background(), approval())
	n.Wait()
}

func TestSummary(t *testing.T) {
	s := Summary(approval())
	assert.Contains(t, s, "energy -2.50 kWh")
	assert.Contains(t, s, "yield +1.00")
	assert.Contains(t, s, "2.50 kWh, 2.00 kg CO2, 20.00 cost units")
}
