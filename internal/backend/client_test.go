package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/busdesk/internal/domain"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()

	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Token: "secret", Timeout: time.Second, Location: time.UTC}, nil)
	require.NoError(t, err)

	return c, &calls
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestGetRoutes_DropsMalformed(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"busId":4,"source":"Thimphu","destination":"Paro"},{"id":"x"}]}`)
	})

	routes, err := c.GetRoutes(context.Background(), 4)
	require.NoError(t, err)

	require.Len(t, routes, 1)
	assert.Equal(t, "Thimphu", routes[0].Source)
	assert.Equal(t, "/api/routes/bus/4", (*calls)[0].path)
	assert.Equal(t, "Bearer secret", (*calls)[0].auth)
}

func TestGetSchedulesByRoute_ParsesTimes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id":1,"departureTime":"2024-06-01T10:00:00","arrivalTime":"2024-06-01T11:30:00","price":150},
			{"id":2,"departureTime":"garbage","arrivalTime":"2024-06-01T11:30:00"}
		]`)
	})

	list, err := c.GetSchedulesByRoute(context.Background(), 9)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, int64(9), list[0].RouteID)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), list[0].DepartureTime)
	assert.Equal(t, 150.0, list[0].Price)
}

func TestCreateSchedule_WireBody(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	err := c.CreateSchedule(context.Background(), domain.SchedulePayload{
		RouteID:       3,
		BusID:         4,
		DepartureTime: "2024-06-01T10:00:00",
		ArrivalTime:   "2024-06-01T11:30:00",
		Price:         150,
	})
	require.NoError(t, err)

	got := (*calls)[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/schedules", got.path)
	assert.Equal(t, float64(3), got.body["routeId"])
	assert.Equal(t, "2024-06-01T11:30:00", got.body["arrivalTime"])
}

func TestLockBooking_WireBody(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {})

	err := c.LockBooking(context.Background(), domain.BookingRequest{
		ScheduleID:  5,
		SeatIDs:     []int64{11},
		SeatNumbers: []int{3},
		SeatLabels:  []string{"A3"},
		NationalID:  "11501000123",
		Mobile:      "17123456",
		Email:       "a@b.bt",
		Status:      domain.BookingPending,
	})
	require.NoError(t, err)

	got := (*calls)[0]
	assert.Equal(t, "/api/bookings/lock", got.path)
	assert.Equal(t, "PENDING", got.body["status"])
	assert.Equal(t, "11501000123", got.body["nationalId"])
}

func TestDo_APIErrorCarriesServerMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"success":false,"message":"Seat already locked"}`)
	})

	err := c.DeleteRoute(context.Background(), 1)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Seat already locked", ServerMessage(err))
}

func TestGetBus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/buses/1" {
			_, _ = io.WriteString(w, `{"data":{"id":1,"busNumber":"BP-1-A1234","seats":[{"id":10,"seatNumber":1},{"id":0}]}}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":null}`)
	})

	bus, err := c.GetBus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "BP-1-A1234", bus.Number)
	assert.Len(t, bus.Seats, 1)

	_, err = c.GetBus(context.Background(), 2)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCount(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"content":[{},{}],"totalElements":2}}`)
	})

	n, err := c.Count(context.Background(), "taxis")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
