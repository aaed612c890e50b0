package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"reefcore/internal/infra/persistence/memory"
	"reefcore/pkg/domain"
)

const (
	siteID     = "5d1c3b2a-7e6f-4a5b-8c9d-0e1f2a3b4c01"
	mgmtID     = "5d1c3b2a-7e6f-4a5b-8c9d-0e1f2a3b4c02"
	coralID    = "5d1c3b2a-7e6f-4a5b-8c9d-0e1f2a3b4c03"
	sandID     = "5d1c3b2a-7e6f-4a5b-8c9d-0e1f2a3b4c04"
	observerID = "5d1c3b2a-7e6f-4a5b-8c9d-0e1f2a3b4c05"
)

// tickingClock advances one second per call so archive keys stay unique.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.PutSite(domain.Site{ID: siteID, Name: "Outer Reef"})
	store.PutManagement(domain.Management{ID: mgmtID, Name: "Open access"})
	store.PutAttribute(domain.Attribute{ID: coralID, Name: "Hard coral"})
	store.PutAttribute(domain.Attribute{ID: sandID, Name: "Sand"})
	return store
}

func pitDraft(id string, points int) domain.DraftRecord {
	obs := make([]any, points)
	for i := range obs {
		attr := coralID
		if i%2 == 1 {
			attr = sandID
		}
		obs[i] = map[string]any{"id": fmt.Sprintf("p%d", i+1), "attribute": attr, "interval": float64(i+1) * 0.5}
	}
	return domain.DraftRecord{
		ID:       id,
		Protocol: domain.ProtocolBenthicPIT,
		Data: map[string]any{
			"sample_event":     map[string]any{"site": siteID, "management": mgmtID, "sample_date": "2024-05-30"},
			"observers":        []any{map[string]any{"profile": observerID}},
			"benthic_transect": map[string]any{"number": 1.0, "label": "A", "len_surveyed": 20.0, "depth": 8.0},
			"interval_size":    0.5,
			"obs_benthic_pits": obs,
		},
	}
}

type countingInstance struct {
	mu    sync.Mutex
	inner domain.Instance
	calls int
}

func (c *countingInstance) DrySubmit(ctx context.Context, draft domain.DraftRecord) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.DrySubmit(ctx, draft)
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu       sync.Mutex
	calls    []metricsCall
	runs     []domain.Status
	outcomes int
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) ObserveRun(_ domain.Protocol, status domain.Status, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, status)
}

func (c *captureMetricsRecorder) ObserveOutcome(string, domain.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes++
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}
