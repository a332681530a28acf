package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kirinyoku/busdesk/internal/backend/backendtest"
	"github.com/kirinyoku/busdesk/internal/domain"
)

func TestStats(t *testing.T) {
	fake := backendtest.New()
	fake.Counts["hotels"] = 12
	fake.Counts["buses"] = 40
	fake.Counts["taxis"] = 9
	fake.Counts["theaters"] = 3

	got := New(fake, nil).Stats(context.Background())

	assert.Equal(t, domain.DashboardStats{Hotels: 12, Buses: 40, Taxis: 9, Theaters: 3}, got)
}

func TestStats_FailingSourceIsReported(t *testing.T) {
	fake := backendtest.New()
	fake.Counts["hotels"] = 12
	fake.Counts["buses"] = 40
	fake.FailWith("Count:taxis", 500, "")
	fake.FailWith("Count:theaters", 503, "")

	got := New(fake, nil).Stats(context.Background())

	assert.Equal(t, 12, got.Hotels)
	assert.Equal(t, 40, got.Buses)
	assert.Zero(t, got.Taxis)
	assert.Equal(t, []string{"taxis", "theaters"}, got.Failed)
	for _, res := range Resources {
		assert.Equal(t, 1, fake.CallCount("Count:"+res))
	}
}
