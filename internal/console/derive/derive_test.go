package derive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kirinyoku/busdesk/internal/domain"
)

var thimphuParo = domain.Route{
	ID:                1,
	Source:            "Thimphu",
	Destination:       "Paro",
	BaseFare:          150,
	EstimatedDuration: 90,
}

func TestResolver_ThimphuToParo(t *testing.T) {
	r := NewResolver(time.UTC)
	var f ScheduleForm

	r.SelectRoute(&f, &thimphuParo)
	assert.Equal(t, "150", f.Price)
	assert.Empty(t, f.Arrival)

	r.SetDeparture(&f, "2024-06-01T10:00")
	assert.Equal(t, "2024-06-01T11:30", f.Arrival)
	assert.Equal(t, int64(1), f.RouteID)
}

func TestResolver_DepartureBeforeRoute(t *testing.T) {
	r := NewResolver(time.UTC)
	var f ScheduleForm

	r.SetDeparture(&f, "2024-06-01T10:00")
	assert.Empty(t, f.Arrival)

	r.SelectRoute(&f, &thimphuParo)
	assert.Equal(t, "2024-06-01T11:30", f.Arrival)
}

func TestResolver_ManualPriceSurvivesSameRoute(t *testing.T) {
	r := NewResolver(time.UTC)
	var f ScheduleForm

	r.SelectRoute(&f, &thimphuParo)
	r.SetPrice(&f, "120")
	r.SelectRoute(&f, &thimphuParo)
	assert.Equal(t, "120", f.Price)

	other := domain.Route{ID: 2, BaseFare: 300, EstimatedDuration: 60}
	r.SelectRoute(&f, &other)
	assert.Equal(t, "300", f.Price)
}

func TestResolver_ManualArrivalOverwrittenByDeparture(t *testing.T) {
	r := NewResolver(time.UTC)
	var f ScheduleForm

	r.SelectRoute(&f, &thimphuParo)
	r.SetDeparture(&f, "2024-06-01T10:00")
	r.SetArrival(&f, "2024-06-01T12:00")
	assert.Equal(t, "2024-06-01T12:00", f.Arrival)

	r.SetDeparture(&f, "2024-06-01T09:00")
	assert.Equal(t, "2024-06-01T10:30", f.Arrival)
}

func TestResolver_ClearSelection(t *testing.T) {
	r := NewResolver(time.UTC)
	var f ScheduleForm

	r.SelectRoute(&f, &thimphuParo)
	r.SelectRoute(&f, nil)

	assert.Zero(t, f.RouteID)
	assert.Nil(t, r.Selected())
	assert.Equal(t, "150", f.Price)

	r.SetDeparture(&f, "2024-06-01T10:00")
	assert.Empty(t, f.Arrival)
}

func TestResolver_PrimeDoesNotDerive(t *testing.T) {
	r := NewResolver(time.UTC)
	f := ScheduleForm{RouteID: 1, Departure: "2024-06-01T10:00", Arrival: "2024-06-01T13:00", Price: "99"}

	r.Prime(&thimphuParo)
	assert.Equal(t, "2024-06-01T13:00", f.Arrival)
	assert.Equal(t, "99", f.Price)

	r.SelectRoute(&f, &thimphuParo)
	assert.Equal(t, "99", f.Price)
}

func TestArrivalFor_AcrossMidnight(t *testing.T) {
	got, ok := ArrivalFor("2024-06-01T23:30", 90, time.UTC)
	assert.True(t, ok)
	assert.Equal(t, "2024-06-02T01:00", got)

	_, ok = ArrivalFor("tomorrow", 90, time.UTC)
	assert.False(t, ok)
}
