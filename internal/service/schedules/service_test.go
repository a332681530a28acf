package schedules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/busdesk/internal/backend/backendtest"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/console/consoletest"
	"github.com/kirinyoku/busdesk/internal/domain"
	"github.com/kirinyoku/busdesk/internal/service/routes"
)

const busID = 7

type fixture struct {
	fake    *backendtest.Fake
	host    *consoletest.Host
	notices *consoletest.Notices
	panels  *console.Panels
	routes  *routes.Manager
	m       *Manager
}

func newFixture(t *testing.T, rs ...domain.Route) *fixture {
	t.Helper()

	f := &fixture{
		fake:    backendtest.New(),
		host:    &consoletest.Host{},
		notices: &consoletest.Notices{},
		panels:  console.NewPanels(),
	}
	for _, r := range rs {
		r.BusID = busID
		f.fake.AddRoute(r)
	}

	f.routes = routes.New(busID, routes.Deps{
		Backend:  f.fake,
		Host:     f.host,
		Panels:   f.panels,
		Notifier: f.notices,
	})
	require.NoError(t, f.routes.Load(context.Background()))

	f.m = New(busID, Deps{
		Backend:  f.fake,
		Routes:   f.routes,
		Host:     f.host,
		Panels:   f.panels,
		Notifier: f.notices,
		Location: time.UTC,
	})
	return f
}

func thimphuParo() domain.Route {
	return domain.Route{Source: "Thimphu", Destination: "Paro", BaseFare: 150, EstimatedDuration: 90}
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSubmit_DerivedFieldsReachBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo())
	route := f.routes.Routes()[0]

	f.m.ShowCreate()
	require.NoError(t, f.m.SelectRoute(route.ID))
	f.m.SetDeparture("2024-06-01T10:00")

	form := f.m.Form()
	assert.Equal(t, "2024-06-01T11:30", form.Arrival)
	assert.Equal(t, "150", form.Price)

	require.NoError(t, f.m.Submit(ctx))

	require.Len(t, f.fake.Schedules, 1)
	for _, s := range f.fake.Schedules {
		assert.Equal(t, route.ID, s.RouteID)
		assert.Equal(t, at("2024-06-01T11:30"), s.ArrivalTime)
		assert.Equal(t, 150.0, s.Price)
	}
	assert.Equal(t, [][]int64{{route.ID}}, f.host.Changed)
	assert.False(t, f.panels.Visible(console.PanelScheduleForm))
	assert.Equal(t, "Schedule created", f.notices.Last().Message)
}

func TestSubmit_ArrivalNotAfterDeparture(t *testing.T) {
	f := newFixture(t, thimphuParo())
	route := f.routes.Routes()[0]

	f.m.ShowCreate()
	require.NoError(t, f.m.SelectRoute(route.ID))
	f.m.SetDeparture("2024-06-01T10:00")
	f.m.SetArrival("2024-06-01T10:00")

	err := f.m.Submit(context.Background())

	var verr *console.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Fields.Has("arrivalTime"))
	assert.Equal(t, 0, f.fake.CallCount("CreateSchedule"))
	assert.Equal(t, "arrivalTime", f.host.LastScroll())
	assert.Empty(t, f.host.Changed)
}

func TestSubmit_MissingRoute(t *testing.T) {
	f := newFixture(t, thimphuParo())

	f.m.SetDeparture("2024-06-01T10:00")
	f.m.SetArrival("2024-06-01T11:00")
	f.m.SetPrice("100")

	err := f.m.Submit(context.Background())

	var verr *console.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "routeId", verr.Fields.First())
}

func TestSelectRoute_Unknown(t *testing.T) {
	f := newFixture(t, thimphuParo())
	assert.ErrorIs(t, f.m.SelectRoute(999), ErrUnknownRoute)
}

func TestToggle_OpenCloseOpenFetchesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo())
	route := f.routes.Routes()[0]
	f.fake.AddSchedule(domain.Schedule{RouteID: route.ID, BusID: busID, DepartureTime: at("2024-06-01T10:00"), ArrivalTime: at("2024-06-01T11:30"), Price: 150})

	require.NoError(t, f.m.Toggle(ctx, route.ID))
	list, view := f.m.Schedules(route.ID)
	assert.Equal(t, Shown, view)
	assert.Len(t, list, 1)

	require.NoError(t, f.m.Toggle(ctx, route.ID))
	_, view = f.m.Schedules(route.ID)
	assert.Equal(t, Hidden, view)

	require.NoError(t, f.m.Toggle(ctx, route.ID))
	_, view = f.m.Schedules(route.ID)
	assert.Equal(t, Shown, view)

	assert.Equal(t, 1, f.fake.CallCount("GetSchedulesByRoute"))
}

func TestToggle_FailureHidesRoute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo())
	route := f.routes.Routes()[0]
	f.fake.FailWith("GetSchedulesByRoute", 500, "")

	require.Error(t, f.m.Toggle(ctx, route.ID))
	_, view := f.m.Schedules(route.ID)
	assert.Equal(t, Hidden, view)
	assert.Equal(t, "Failed to load schedules", f.notices.Last().Message)

	f.fake.Clear("GetSchedulesByRoute")
	require.NoError(t, f.m.Toggle(ctx, route.ID))
	_, view = f.m.Schedules(route.ID)
	assert.Equal(t, Shown, view)
}

func TestRefresh_ReloadsOnlyShownRoutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo(), domain.Route{Source: "Paro", Destination: "Haa", BaseFare: 80, EstimatedDuration: 60})
	rs := f.routes.Routes()
	shown, hidden := rs[0].ID, rs[1].ID

	require.NoError(t, f.m.Toggle(ctx, shown))
	require.NoError(t, f.m.Toggle(ctx, hidden))
	require.NoError(t, f.m.Toggle(ctx, hidden))
	require.Equal(t, 2, f.fake.CallCount("GetSchedulesByRoute"))

	require.NoError(t, f.m.Refresh(ctx, shown, hidden))

	assert.Equal(t, 3, f.fake.CallCount("GetSchedulesByRoute"))
	assert.Equal(t, []int64{shown}, f.m.cache.Keys())

	require.NoError(t, f.m.Toggle(ctx, hidden))
	assert.Equal(t, 4, f.fake.CallCount("GetSchedulesByRoute"))
}

func TestSubmit_MovingScheduleRefreshesBothRoutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo(), domain.Route{Source: "Paro", Destination: "Haa", BaseFare: 80, EstimatedDuration: 60})
	rs := f.routes.Routes()
	from, to := rs[0].ID, rs[1].ID
	s := f.fake.AddSchedule(domain.Schedule{RouteID: from, BusID: busID, DepartureTime: at("2024-06-01T10:00"), ArrivalTime: at("2024-06-01T11:30"), Price: 150})

	f.m.Edit(s)
	assert.Equal(t, "2024-06-01T10:00", f.m.Form().Departure)

	require.NoError(t, f.m.SelectRoute(to))
	assert.Equal(t, "80", f.m.Form().Price)
	assert.Equal(t, "2024-06-01T11:00", f.m.Form().Arrival)

	require.NoError(t, f.m.Submit(ctx))

	assert.Equal(t, 1, f.fake.CallCount("UpdateSchedule"))
	assert.Equal(t, to, f.fake.Schedules[s.ID].RouteID)
	assert.Equal(t, [][]int64{{to, from}}, f.host.Changed)
	assert.Equal(t, "Schedule updated", f.notices.Last().Message)
}

func TestDelete_DeclinedAndConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo())
	route := f.routes.Routes()[0]
	s := f.fake.AddSchedule(domain.Schedule{RouteID: route.ID, BusID: busID, DepartureTime: at("2024-06-01T10:00"), ArrivalTime: at("2024-06-01T11:30"), Price: 150})

	err := f.m.Delete(ctx, s, &consoletest.Answer{Yes: false})
	assert.ErrorIs(t, err, console.ErrDeclined)
	assert.Equal(t, 0, f.fake.CallCount("DeleteSchedule"))

	ask := &consoletest.Answer{Yes: true}
	require.NoError(t, f.m.Delete(ctx, s, ask))
	assert.Contains(t, ask.Last.Body, "2024-06-01 10:00")
	assert.NotContains(t, f.fake.Schedules, s.ID)
	assert.Equal(t, [][]int64{{route.ID}}, f.host.Changed)
}

func TestShowGenerate_NeedsRoutes(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.m.ShowGenerate(), ErrNoRoutes)
	assert.False(t, f.panels.Visible(console.PanelGenerateForm))
	assert.False(t, f.m.State().CanGenerate)
}

func TestGenerate_RejectsZeroDays(t *testing.T) {
	f := newFixture(t, thimphuParo())
	require.NoError(t, f.m.ShowGenerate())
	assert.Equal(t, "1", f.m.State().Generate.Days)

	err := f.m.Generate(context.Background(), GenerateForm{StartDate: "2024-06-01", Days: "0"})

	var verr *console.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Fields.Has("days"))
	assert.Equal(t, 0, f.fake.CallCount("GenerateSchedules"))
	assert.True(t, f.panels.Visible(console.PanelGenerateForm))
}

func TestGenerate_RefreshesEveryRoute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo(), domain.Route{Source: "Paro", Destination: "Haa", BaseFare: 80, EstimatedDuration: 60})
	require.NoError(t, f.m.ShowGenerate())

	require.NoError(t, f.m.Generate(ctx, GenerateForm{StartDate: "2024-06-01", Days: "3"}))

	require.Len(t, f.fake.Generated, 1)
	assert.Equal(t, domain.GenerationJob{BusID: busID, StartDate: "2024-06-01", Days: 3}, f.fake.Generated[0])

	rs := f.routes.Routes()
	assert.Equal(t, [][]int64{{rs[0].ID, rs[1].ID}}, f.host.Changed)
	assert.False(t, f.panels.Visible(console.PanelGenerateForm))
	assert.Contains(t, f.notices.Last().Message, "3 day(s) from 2024-06-01")
}

func TestRefresh_DroppedResultWaitsForNewerReload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo())
	id := f.routes.Routes()[0].ID
	require.NoError(t, f.m.Toggle(ctx, id))

	first := f.fake.Block("GetSchedulesByRoute")
	firstDone := make(chan error, 1)
	go func() { firstDone <- f.m.Refresh(ctx, id) }()
	<-first.Entered

	second := f.fake.Block("GetSchedulesByRoute")
	secondDone := make(chan error, 1)
	go func() { secondDone <- f.m.Refresh(ctx, id) }()
	<-second.Entered

	first.Release()
	require.NoError(t, <-firstDone)
	_, view := f.m.Schedules(id)
	assert.Equal(t, Loading, view)

	f.fake.FailWith("GetSchedulesByRoute", 500, "")
	second.Release()
	require.Error(t, <-secondDone)

	list, view := f.m.Schedules(id)
	assert.Equal(t, Hidden, view)
	assert.Empty(t, list)
	assert.Empty(t, f.m.State().Expanded)
}

func TestSubmit_SecondCallWhileInFlightIsBusy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo())
	route := f.routes.Routes()[0]

	f.m.ShowCreate()
	require.NoError(t, f.m.SelectRoute(route.ID))
	f.m.SetDeparture("2024-06-01T10:00")

	gate := f.fake.Block("CreateSchedule")
	done := make(chan error, 1)
	go func() { done <- f.m.Submit(ctx) }()
	<-gate.Entered

	assert.True(t, f.m.State().Submitting)
	assert.ErrorIs(t, f.m.Submit(ctx), console.ErrBusy)

	gate.Release()
	require.NoError(t, <-done)

	assert.Equal(t, 1, f.fake.CallCount("CreateSchedule"))
	assert.False(t, f.m.State().Submitting)
}

func TestSubmit_SubmittingClearedOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, thimphuParo())
	route := f.routes.Routes()[0]

	require.Error(t, f.m.Submit(ctx))
	assert.False(t, f.m.State().Submitting)

	require.NoError(t, f.m.SelectRoute(route.ID))
	f.m.SetDeparture("2024-06-01T10:00")
	f.fake.FailWith("CreateSchedule", 500, "")
	require.Error(t, f.m.Submit(ctx))
	assert.False(t, f.m.State().Submitting)
}
