// Package backendtest provides an in-memory platform backend for tests.
package backendtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kirinyoku/busdesk/internal/backend"
	"github.com/kirinyoku/busdesk/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Fake keeps routes, schedules and seats in memory and counts calls by
// method name. Errs makes a method fail with the given error.
type Fake struct {
	mu sync.Mutex

	Buses     map[int64]domain.Bus
	Routes    map[int64]domain.Route
	Schedules map[int64]domain.Schedule
	Seats     map[int64][]domain.Seat
	Counts    map[string]int

	Bookings  []domain.BookingRequest
	Generated []domain.GenerationJob
	Calls     map[string]int
	Errs      map[string]error

	Location *time.Location
	nextID   int64
	gates    map[string]*Gate
}

// Gate holds calls of one method until Release. Entered receives once for
// every call that reached the gate.
type Gate struct {
	Entered chan struct{}

	release chan struct{}
	once    sync.Once
}

func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

func New() *Fake {
	return &Fake{
		Buses:     make(map[int64]domain.Bus),
		Routes:    make(map[int64]domain.Route),
		Schedules: make(map[int64]domain.Schedule),
		Seats:     make(map[int64][]domain.Seat),
		Counts:    make(map[string]int),
		Calls:     make(map[string]int),
		Errs:      make(map[string]error),
		Location:  time.UTC,
		nextID:    100,
		gates:     make(map[string]*Gate),
	}
}

// FailWith makes method fail with a server message until cleared.
func (f *Fake) FailWith(method string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errs[method] = &backend.APIError{Op: method, Status: status, Message: message}
}

func (f *Fake) Clear(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Errs, method)
}

func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *Fake) LastBooking() (domain.BookingRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Bookings) == 0 {
		return domain.BookingRequest{}, false
	}
	return f.Bookings[len(f.Bookings)-1], true
}

func (f *Fake) AddBus(b domain.Bus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Buses[b.ID] = b
}

func (f *Fake) AddRoute(r domain.Route) domain.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == 0 {
		r.ID = f.id()
	}
	f.Routes[r.ID] = r
	return r
}

func (f *Fake) AddSchedule(s domain.Schedule) domain.Schedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == 0 {
		s.ID = f.id()
	}
	f.Schedules[s.ID] = s
	return s
}

func (f *Fake) SetSeats(scheduleID int64, seats []domain.Seat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Seats[scheduleID] = seats
}

func (f *Fake) GetBus(_ context.Context, id int64) (*domain.Bus, error) {
	if err := f.enter("GetBus"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.Buses[id]
	if !ok {
		return nil, &backend.APIError{Op: "GetBus", Status: 404, Message: "Bus not found"}
	}
	return &b, nil
}

func (f *Fake) GetRoutes(_ context.Context, busID int64) ([]domain.Route, error) {
	if err := f.enter("GetRoutes"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Route
	for _, r := range f.Routes {
		if r.BusID == busID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) CreateRoute(_ context.Context, p domain.RoutePayload) error {
	if err := f.enter("CreateRoute"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.id()
	f.Routes[id] = routeFrom(id, p)
	return nil
}

func (f *Fake) UpdateRoute(_ context.Context, id int64, p domain.RoutePayload) error {
	if err := f.enter("UpdateRoute"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.Routes[id]; !ok {
		return ErrNotFound
	}
	f.Routes[id] = routeFrom(id, p)
	return nil
}

func (f *Fake) DeleteRoute(_ context.Context, id int64) error {
	if err := f.enter("DeleteRoute"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.Routes, id)
	for sid, s := range f.Schedules {
		if s.RouteID == id {
			delete(f.Schedules, sid)
		}
	}
	return nil
}

func (f *Fake) GetSchedulesByRoute(_ context.Context, routeID int64) ([]domain.Schedule, error) {
	if err := f.enter("GetSchedulesByRoute"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Schedule
	for _, s := range f.Schedules {
		if s.RouteID == routeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) CreateSchedule(_ context.Context, p domain.SchedulePayload) error {
	if err := f.enter("CreateSchedule"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.scheduleFrom(f.id(), p)
	if err != nil {
		return err
	}
	f.Schedules[s.ID] = s
	return nil
}

func (f *Fake) UpdateSchedule(_ context.Context, id int64, p domain.SchedulePayload) error {
	if err := f.enter("UpdateSchedule"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.Schedules[id]; !ok {
		return ErrNotFound
	}
	s, err := f.scheduleFrom(id, p)
	if err != nil {
		return err
	}
	f.Schedules[id] = s
	return nil
}

func (f *Fake) DeleteSchedule(_ context.Context, id int64) error {
	if err := f.enter("DeleteSchedule"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.Schedules, id)
	return nil
}

func (f *Fake) GenerateSchedules(_ context.Context, job domain.GenerationJob) error {
	if err := f.enter("GenerateSchedules"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Generated = append(f.Generated, job)
	return nil
}

func (f *Fake) GetAvailableSeats(_ context.Context, scheduleID int64) ([]domain.Seat, error) {
	if err := f.enter("GetAvailableSeats"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]domain.Seat(nil), f.Seats[scheduleID]...), nil
}

func (f *Fake) LockBooking(_ context.Context, req domain.BookingRequest) error {
	if err := f.enter("LockBooking"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Bookings = append(f.Bookings, req)
	return nil
}

func (f *Fake) Count(_ context.Context, resource string) (int, error) {
	if err := f.enter("Count:" + resource); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.Counts[resource], nil
}

// Block makes calls of method wait until the returned gate is released.
// The error set for the method is read after the release.
func (f *Fake) Block(method string) *Gate {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := &Gate{Entered: make(chan struct{}, 16), release: make(chan struct{})}
	f.gates[method] = g
	return g
}

func (f *Fake) enter(method string) error {
	f.mu.Lock()
	f.Calls[method]++
	g := f.gates[method]
	f.mu.Unlock()

	if g != nil {
		select {
		case g.Entered <- struct{}{}:
		default:
		}
		<-g.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Errs[method]
}

func (f *Fake) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *Fake) scheduleFrom(id int64, p domain.SchedulePayload) (domain.Schedule, error) {
	dep, err := time.ParseInLocation(backend.WireTimeLayout, p.DepartureTime, f.Location)
	if err != nil {
		return domain.Schedule{}, err
	}
	arr, err := time.ParseInLocation(backend.WireTimeLayout, p.ArrivalTime, f.Location)
	if err != nil {
		return domain.Schedule{}, err
	}

	return domain.Schedule{
		ID:            id,
		RouteID:       p.RouteID,
		BusID:         p.BusID,
		DepartureTime: dep,
		ArrivalTime:   arr,
		Price:         p.Price,
	}, nil
}

func routeFrom(id int64, p domain.RoutePayload) domain.Route {
	return domain.Route{
		ID:                id,
		BusID:             p.BusID,
		Source:            p.Source,
		Destination:       p.Destination,
		Distance:          p.Distance,
		BaseFare:          p.BaseFare,
		CustomFare:        p.CustomFare,
		EstimatedDuration: p.EstimatedDuration,
		DepartureTime:     p.DepartureTime,
		Active:            p.Active,
	}
}
