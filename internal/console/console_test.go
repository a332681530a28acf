package console

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	var g Guard

	require.True(t, g.TryBegin())
	assert.True(t, g.InFlight())
	assert.False(t, g.TryBegin())

	g.End()
	assert.False(t, g.InFlight())
	assert.True(t, g.TryBegin())
}

func TestPanels_Independent(t *testing.T) {
	p := NewPanels()

	p.Show(PanelRouteForm)
	p.Show(PanelBooking)
	p.Hide(PanelRouteForm)

	snap := p.Snapshot()
	assert.Len(t, snap, 4)
	assert.False(t, snap[PanelRouteForm])
	assert.True(t, snap[PanelBooking])

	p.Reset()
	assert.False(t, p.Visible(PanelBooking))
}

func TestFieldErrors(t *testing.T) {
	var errs FieldErrors
	assert.NoError(t, errs.Err())

	errs.Add("source", "Source is required")
	errs.Add("distance", "Distance must be greater than 0")

	assert.Equal(t, "source", errs.First())
	assert.True(t, errs.Has("distance"))

	var verr *ValidationError
	require.True(t, errors.As(errs.Err(), &verr))
	assert.Len(t, verr.Fields, 2)
	assert.Contains(t, verr.Error(), "source: Source is required")
}

func TestFailurePrefersServerMessage(t *testing.T) {
	assert.Equal(t, "Failed to save route", Failure("Route", "Failed to save route", "").Message)
	assert.Equal(t, "Route exists", Failure("Route", "Failed to save route", "Route exists").Message)
}

func TestMultiNotifier(t *testing.T) {
	var got []string
	rec := NotifierFunc(func(_ context.Context, n Notice) { got = append(got, n.Title) })

	MultiNotifier(rec, nil, rec).Notify(context.Background(), Success("Route", "ok"))

	assert.Equal(t, []string{"Route", "Route"}, got)
}
