package routes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/busdesk/internal/backend/backendtest"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/console/consoletest"
	"github.com/kirinyoku/busdesk/internal/domain"
)

type fixture struct {
	fake    *backendtest.Fake
	host    *consoletest.Host
	notices *consoletest.Notices
	panels  *console.Panels
	m       *Manager
}

func newFixture(busID int64) *fixture {
	f := &fixture{
		fake:    backendtest.New(),
		host:    &consoletest.Host{},
		notices: &consoletest.Notices{},
		panels:  console.NewPanels(),
	}
	f.m = New(busID, Deps{
		Backend:  f.fake,
		Host:     f.host,
		Panels:   f.panels,
		Notifier: f.notices,
	})
	return f
}

func validForm() Form {
	return Form{
		Source:            "Thimphu",
		Destination:       "Paro",
		Distance:          "55",
		BaseFare:          "150",
		EstimatedDuration: "90",
		DepartureTime:     "08:30",
	}
}

func TestSubmit_CreateThenList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(7)

	f.m.ShowCreate()
	require.True(t, f.panels.Visible(console.PanelRouteForm))

	require.NoError(t, f.m.Submit(ctx, validForm()))

	routes := f.m.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "Thimphu", routes[0].Source)
	assert.Equal(t, int64(7), routes[0].BusID)
	assert.Equal(t, 90, routes[0].EstimatedDuration)
	assert.True(t, routes[0].Active)

	assert.False(t, f.panels.Visible(console.PanelRouteForm))
	assert.Equal(t, console.SeveritySuccess, f.notices.Last().Severity)
	assert.Equal(t, "Route created", f.notices.Last().Message)
	assert.Equal(t, 1, f.fake.CallCount("GetRoutes"))
}

func TestSubmit_InvalidNeverReachesBackend(t *testing.T) {
	f := newFixture(7)

	form := validForm()
	form.Source = " "
	form.Distance = "0"

	err := f.m.Submit(context.Background(), form)

	var verr *console.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Fields.Has("source"))
	assert.True(t, verr.Fields.Has("distance"))
	assert.Equal(t, 0, f.fake.CallCount("CreateRoute"))
	assert.Equal(t, "source", f.host.LastScroll())

	st := f.m.State()
	assert.Equal(t, " ", st.Form.Source)
	assert.Contains(t, st.FieldErrors, "distance")
}

func TestSubmit_SameSourceAndDestination(t *testing.T) {
	f := newFixture(7)

	form := validForm()
	form.Destination = "thimphu"

	err := f.m.Submit(context.Background(), form)

	var verr *console.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Fields.Has("destination"))
}

func TestSubmit_UpdateFailureKeepsForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(7)
	r := f.fake.AddRoute(domain.Route{BusID: 7, Source: "Thimphu", Destination: "Paro", Distance: 55, BaseFare: 150, EstimatedDuration: 90, Active: true})
	require.NoError(t, f.m.Load(ctx))
	require.NoError(t, f.m.Edit(r.ID))

	f.fake.FailWith("UpdateRoute", 500, "Route already exists")

	form := validForm()
	form.BaseFare = "175"
	err := f.m.Submit(ctx, form)
	require.Error(t, err)

	st := f.m.State()
	assert.Equal(t, r.ID, st.EditingID)
	assert.Equal(t, "175", st.Form.BaseFare)
	assert.True(t, f.panels.Visible(console.PanelRouteForm))
	assert.Equal(t, "Route already exists", f.notices.Last().Message)
}

func TestEdit_UnknownRoute(t *testing.T) {
	f := newFixture(7)
	assert.ErrorIs(t, f.m.Edit(99), ErrRouteNotFound)
}

func TestDelete_Declined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(7)
	r := f.fake.AddRoute(domain.Route{BusID: 7, Source: "Thimphu", Destination: "Paro"})
	require.NoError(t, f.m.Load(ctx))

	prompt := &consoletest.Answer{Yes: false}
	err := f.m.Delete(ctx, r.ID, prompt)

	assert.ErrorIs(t, err, console.ErrDeclined)
	assert.Equal(t, 1, prompt.Asked)
	assert.Contains(t, prompt.Last.Body, "Thimphu → Paro")
	assert.Equal(t, 0, f.fake.CallCount("DeleteRoute"))
	assert.Len(t, f.m.Routes(), 1)
	assert.Empty(t, f.host.Removed)
}

func TestDelete_Confirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(7)
	r := f.fake.AddRoute(domain.Route{BusID: 7, Source: "Thimphu", Destination: "Paro"})
	require.NoError(t, f.m.Load(ctx))
	require.NoError(t, f.m.Edit(r.ID))

	require.NoError(t, f.m.Delete(ctx, r.ID, &consoletest.Answer{Yes: true}))

	assert.Empty(t, f.m.Routes())
	assert.Equal(t, []int64{r.ID}, f.host.Removed)
	assert.Zero(t, f.m.State().EditingID)
	assert.False(t, f.panels.Visible(console.PanelRouteForm))
	assert.Equal(t, "Route deleted", f.notices.Last().Message)
}

func TestLoad_FailureKeepsPreviousList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(7)
	f.fake.AddRoute(domain.Route{BusID: 7, Source: "A", Destination: "B"})
	require.NoError(t, f.m.Load(ctx))

	f.fake.FailWith("GetRoutes", 503, "")
	require.Error(t, f.m.Load(ctx))

	assert.Len(t, f.m.Routes(), 1)
	assert.Equal(t, "Failed to load routes", f.notices.Last().Message)
}

func TestLoad_DropsRoutesWithoutID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(7)
	f.fake.Routes[-1] = domain.Route{ID: -1, BusID: 7}
	f.fake.AddRoute(domain.Route{BusID: 7, Source: "A", Destination: "B"})

	require.NoError(t, f.m.Load(ctx))
	assert.Equal(t, 1, f.m.Count())
}

func TestSubmit_SecondCallWhileInFlightIsBusy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(7)

	gate := f.fake.Block("CreateRoute")
	done := make(chan error, 1)
	go func() { done <- f.m.Submit(ctx, validForm()) }()
	<-gate.Entered

	assert.True(t, f.m.State().Submitting)
	assert.ErrorIs(t, f.m.Submit(ctx, validForm()), console.ErrBusy)

	gate.Release()
	require.NoError(t, <-done)

	assert.Equal(t, 1, f.fake.CallCount("CreateRoute"))
	assert.False(t, f.m.State().Submitting)
	assert.Len(t, f.m.Routes(), 1)
}

func TestSubmit_SubmittingClearedOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(7)

	form := validForm()
	form.BaseFare = "-1"
	require.Error(t, f.m.Submit(ctx, form))
	assert.False(t, f.m.State().Submitting)

	f.fake.FailWith("CreateRoute", 500, "")
	require.Error(t, f.m.Submit(ctx, validForm()))
	assert.False(t, f.m.State().Submitting)

	f.fake.Clear("CreateRoute")
	require.NoError(t, f.m.Submit(ctx, validForm()))
	assert.False(t, f.m.State().Submitting)
}
