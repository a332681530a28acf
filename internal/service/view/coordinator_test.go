package view

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/busdesk/internal/backend/backendtest"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/console/consoletest"
	"github.com/kirinyoku/busdesk/internal/domain"
	"github.com/kirinyoku/busdesk/internal/service/booking"
)

func applicant() booking.Applicant {
	return booking.Applicant{NationalID: "11512000123", Mobile: "17123456", Email: "karma@example.bt"}
}

type broadcast struct {
	busID    int64
	routeIDs []int64
}

type recordingBroadcaster struct {
	calls []broadcast
}

func (b *recordingBroadcaster) SchedulesChanged(_ context.Context, busID int64, routeIDs []int64) error {
	b.calls = append(b.calls, broadcast{busID: busID, routeIDs: routeIDs})
	return nil
}

func seeded() (*backendtest.Fake, domain.Route, domain.Schedule) {
	fake := backendtest.New()
	fake.AddBus(domain.Bus{ID: 7, Number: "BP-1-A1234", TotalSeats: 2})
	r := fake.AddRoute(domain.Route{BusID: 7, Source: "Thimphu", Destination: "Paro", BaseFare: 150, EstimatedDuration: 90})
	dep := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := fake.AddSchedule(domain.Schedule{RouteID: r.ID, BusID: 7, DepartureTime: dep, ArrivalTime: dep.Add(90 * time.Minute), Price: 150})
	fake.SetSeats(s.ID, []domain.Seat{{ID: 1, Number: 1}, {ID: 2, Number: 2}})
	return fake, r, s
}

func newPage(fake *backendtest.Fake, b Broadcaster, notices console.Notifier) *Coordinator {
	return New(7, Deps{
		Buses:       fake,
		Backend:     fake,
		Broadcaster: b,
		Notifier:    notices,
		Location:    time.UTC,
	})
}

func TestLoad_RunsOnce(t *testing.T) {
	ctx := context.Background()
	fake, r, _ := seeded()
	c := newPage(fake, nil, nil)

	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Load(ctx))

	assert.Equal(t, 1, fake.CallCount("GetBus"))
	assert.Equal(t, 1, fake.CallCount("GetRoutes"))

	snap := c.Snapshot()
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Bus)
	assert.Equal(t, "BP-1-A1234", snap.Bus.Number)
	assert.Equal(t, []domain.Route{r}, snap.Routes.Routes)
}

func TestLoad_BusFailureCanRetry(t *testing.T) {
	ctx := context.Background()
	fake, _, _ := seeded()
	notices := &consoletest.Notices{}
	c := newPage(fake, nil, notices)

	fake.FailWith("GetBus", 502, "")
	require.Error(t, c.Load(ctx))
	assert.Equal(t, "Failed to load bus details", notices.Last().Message)
	assert.Equal(t, 0, fake.CallCount("GetRoutes"))
	assert.False(t, c.Snapshot().Loaded)

	fake.Clear("GetBus")
	require.NoError(t, c.Load(ctx))
	assert.True(t, c.Snapshot().Loaded)
	assert.Equal(t, 1, fake.CallCount("GetRoutes"))
}

func TestLoad_RouteFailureStillLoadsPage(t *testing.T) {
	ctx := context.Background()
	fake, _, _ := seeded()
	notices := &consoletest.Notices{}
	c := newPage(fake, nil, notices)
	fake.FailWith("GetRoutes", 500, "")

	require.NoError(t, c.Load(ctx))

	snap := c.Snapshot()
	assert.True(t, snap.Loaded)
	assert.Empty(t, snap.Routes.Routes)
	assert.Equal(t, "Failed to load routes", notices.Last().Message)

	fake.Clear("GetRoutes")
	require.NoError(t, c.ReloadRoutes(ctx))
	assert.Len(t, c.Snapshot().Routes.Routes, 1)
}

func TestSetBus_ResetsState(t *testing.T) {
	ctx := context.Background()
	fake, _, _ := seeded()
	fake.AddBus(domain.Bus{ID: 8})
	c := newPage(fake, nil, nil)
	require.NoError(t, c.Load(ctx))

	routes := c.Routes()
	c.SetBus(7)
	assert.Same(t, routes, c.Routes())

	c.Routes().ShowCreate()
	c.SetBus(8)
	snap := c.Snapshot()
	assert.Equal(t, int64(8), snap.BusID)
	assert.False(t, snap.Loaded)
	assert.Nil(t, snap.Bus)
	assert.False(t, snap.Panels[console.PanelRouteForm])

	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 2, fake.CallCount("GetBus"))
}

func TestSnapshot_ConsumesScroll(t *testing.T) {
	fake, _, _ := seeded()
	c := newPage(fake, nil, nil)

	c.Routes().ShowCreate()
	assert.Equal(t, string(console.PanelRouteForm), c.Snapshot().ScrollTo)
	assert.Empty(t, c.Snapshot().ScrollTo)
}

func TestSchedulesChanged_RefreshesAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	fake, r, _ := seeded()
	b := &recordingBroadcaster{}
	c := newPage(fake, b, nil)
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Schedules().Toggle(ctx, r.ID))

	c.current().SchedulesChanged(ctx, r.ID)

	assert.Equal(t, 2, fake.CallCount("GetSchedulesByRoute"))
	assert.Equal(t, []broadcast{{busID: 7, routeIDs: []int64{r.ID}}}, b.calls)

	c.current().SchedulesChanged(ctx)
	assert.Len(t, b.calls, 1)
}

func TestRemoteChange_DoesNotBroadcast(t *testing.T) {
	ctx := context.Background()
	fake, r, _ := seeded()
	b := &recordingBroadcaster{}
	c := newPage(fake, b, nil)
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Schedules().Toggle(ctx, r.ID))

	c.RemoteChange(ctx, []int64{r.ID})

	assert.Equal(t, 2, fake.CallCount("GetSchedulesByRoute"))
	assert.Empty(t, b.calls)
}

func TestBooking_UsesFetchedSeatsAndRefreshes(t *testing.T) {
	ctx := context.Background()
	fake, r, s := seeded()
	c := newPage(fake, nil, nil)
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Schedules().Toggle(ctx, r.ID))

	require.NoError(t, c.OpenBooking(ctx, r.ID, s.ID))
	bw := c.Booking()
	require.NoError(t, bw.Toggle(2))
	require.NoError(t, bw.SetApplicant(applicant()))
	require.NoError(t, bw.Submit(ctx))

	assert.Equal(t, 1, fake.CallCount("GetAvailableSeats"))
	assert.Equal(t, 1, fake.CallCount("LockBooking"))
	assert.Equal(t, 2, fake.CallCount("GetSchedulesByRoute"))
}

func TestOpenBooking_UnknownSchedule(t *testing.T) {
	ctx := context.Background()
	fake, r, _ := seeded()
	c := newPage(fake, nil, nil)
	require.NoError(t, c.Load(ctx))

	assert.ErrorIs(t, c.OpenBooking(ctx, r.ID, 999), ErrScheduleNotFound)
	assert.ErrorIs(t, c.EditSchedule(r.ID, 999), ErrScheduleNotFound)
}

func TestRouteRemoved_ClosesBookingOfThatRoute(t *testing.T) {
	ctx := context.Background()
	fake, r, s := seeded()
	c := newPage(fake, nil, nil)
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Schedules().Toggle(ctx, r.ID))
	require.NoError(t, c.OpenBooking(ctx, r.ID, s.ID))
	require.True(t, c.Booking().State().Open)

	require.NoError(t, c.Routes().Delete(ctx, r.ID, &consoletest.Answer{Yes: true}))

	snap := c.Snapshot()
	assert.False(t, snap.Booking.Open)
	assert.False(t, snap.Panels[console.PanelBooking])
	assert.Empty(t, snap.Schedules.Expanded)
	assert.Empty(t, snap.Routes.Routes)
}

func TestEditAndDeleteSchedule(t *testing.T) {
	ctx := context.Background()
	fake, r, s := seeded()
	c := newPage(fake, nil, nil)
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Schedules().Toggle(ctx, r.ID))

	require.NoError(t, c.EditSchedule(r.ID, s.ID))
	snap := c.Snapshot()
	assert.Equal(t, s.ID, snap.Schedules.EditingID)
	assert.Equal(t, "2024-06-01T11:30", snap.Schedules.Form.Arrival)
	assert.True(t, snap.Panels[console.PanelScheduleForm])

	require.NoError(t, c.DeleteSchedule(ctx, r.ID, s.ID, &consoletest.Answer{Yes: true}))
	assert.Equal(t, 1, fake.CallCount("DeleteSchedule"))
	assert.False(t, c.Snapshot().Panels[console.PanelScheduleForm])

	list, _ := c.Schedules().Schedules(r.ID)
	assert.Empty(t, list)
}

func TestSetBus_FinishedWorkOfOldBusLeavesNewBusAlone(t *testing.T) {
	ctx := context.Background()
	fake, r, _ := seeded()
	fake.AddBus(domain.Bus{ID: 8})
	b := &recordingBroadcaster{}
	c := newPage(fake, b, nil)
	require.NoError(t, c.Load(ctx))

	old := c.Schedules()
	old.ShowCreate()
	require.NoError(t, old.SelectRoute(r.ID))
	old.SetDeparture("2024-06-02T08:00")

	gate := fake.Block("CreateSchedule")
	done := make(chan error, 1)
	go func() { done <- old.Submit(ctx) }()
	<-gate.Entered

	c.SetBus(8)
	require.NoError(t, c.Load(ctx))
	c.Schedules().ShowCreate()
	assert.Equal(t, string(console.PanelScheduleForm), c.Snapshot().ScrollTo)

	gate.Release()
	require.NoError(t, <-done)

	snap := c.Snapshot()
	assert.Equal(t, int64(8), snap.BusID)
	assert.True(t, snap.Panels[console.PanelScheduleForm])
	assert.Empty(t, snap.Schedules.Expanded)
	assert.Equal(t, []broadcast{{busID: 7, routeIDs: []int64{r.ID}}}, b.calls)
}

func TestSetBus_OldManagersCannotScroll(t *testing.T) {
	ctx := context.Background()
	fake, _, _ := seeded()
	fake.AddBus(domain.Bus{ID: 8})
	c := newPage(fake, nil, nil)
	require.NoError(t, c.Load(ctx))
	oldRoutes := c.Routes()

	c.SetBus(8)
	oldRoutes.ShowCreate()

	snap := c.Snapshot()
	assert.Empty(t, snap.ScrollTo)
	assert.False(t, snap.Panels[console.PanelRouteForm])
}
