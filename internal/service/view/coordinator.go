package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirinyoku/busdesk/internal/backend"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/domain"
	"github.com/kirinyoku/busdesk/internal/service/booking"
	"github.com/kirinyoku/busdesk/internal/service/routes"
	"github.com/kirinyoku/busdesk/internal/service/schedules"
)

var ErrScheduleNotFound = errors.New("schedule not found")

type BusSource interface {
	GetBus(ctx context.Context, id int64) (*domain.Bus, error)
}

type Backend interface {
	routes.Backend
	schedules.Backend
	booking.Backend
}

// Broadcaster tells other console sessions that schedules of a bus changed.
type Broadcaster interface {
	SchedulesChanged(ctx context.Context, busID int64, routeIDs []int64) error
}

type Deps struct {
	Buses       BusSource
	Backend     Backend
	Broadcaster Broadcaster
	Notifier    console.Notifier
	Logger      *slog.Logger
	Location    *time.Location
}

type loadState int

const (
	loadIdle loadState = iota
	loadRunning
	loadDone
)

// Coordinator is the console page of one bus. It sequences the initial
// load, owns panel visibility and scroll requests, and applies the refresh
// policy after the managers mutate something.
type Coordinator struct {
	deps Deps

	mu    sync.Mutex
	epoch uint64
	cur   *binding
}

// binding is the page state of one bus. Its managers reach the coordinator
// only through it, so work that finishes after SetBus changes nothing on
// the page of the new bus.
type binding struct {
	c      *Coordinator
	epoch  uint64
	busID  int64
	logger *slog.Logger
	panels *console.Panels

	routes    *routes.Manager
	schedules *schedules.Manager
	booking   *booking.Workflow

	// guarded by c.mu
	bus    *domain.Bus
	load   loadState
	scroll string
}

type Snapshot struct {
	BusID     int64                  `json:"bus_id"`
	Bus       *domain.Bus            `json:"bus,omitempty"`
	Loading   bool                   `json:"loading"`
	Loaded    bool                   `json:"loaded"`
	Panels    map[console.Panel]bool `json:"panels"`
	ScrollTo  string                 `json:"scroll_to,omitempty"`
	Routes    routes.State           `json:"routes"`
	Schedules schedules.State        `json:"schedules"`
	Booking   booking.State          `json:"booking"`
}

func New(busID int64, d Deps) *Coordinator {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = console.LogNotifier(d.Logger)
	}
	if d.Location == nil {
		d.Location = time.Local
	}

	c := &Coordinator{deps: d}
	c.bind(busID)

	return c
}

// bind must be called with c.mu held, or before c is shared.
func (c *Coordinator) bind(busID int64) {
	c.epoch++

	b := &binding{
		c:      c,
		epoch:  c.epoch,
		busID:  busID,
		logger: c.deps.Logger.With("bus_id", busID),
		panels: console.NewPanels(),
	}

	b.routes = routes.New(busID, routes.Deps{
		Backend:  c.deps.Backend,
		Host:     b,
		Panels:   b.panels,
		Notifier: c.deps.Notifier,
		Logger:   b.logger,
	})
	b.schedules = schedules.New(busID, schedules.Deps{
		Backend:  c.deps.Backend,
		Routes:   b.routes,
		Host:     b,
		Panels:   b.panels,
		Notifier: c.deps.Notifier,
		Logger:   b.logger,
		Location: c.deps.Location,
	})
	b.booking = booking.New(booking.Deps{
		Backend:  c.deps.Backend,
		Seats:    b,
		Host:     b,
		Panels:   b.panels,
		Notifier: c.deps.Notifier,
		Logger:   b.logger,
	})

	c.cur = b
}

func (c *Coordinator) current() *binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// SetBus points the page at another bus and drops all state. Rebinding to
// the current bus is a no-op.
func (c *Coordinator) SetBus(busID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur.busID == busID {
		return
	}
	c.bind(busID)
}

func (c *Coordinator) BusID() int64 {
	return c.current().busID
}

// Load fetches the bus and then its routes, once per bus. Calls made while
// a load is running or after it finished do nothing. A failed bus fetch
// allows the next call to try again.
func (c *Coordinator) Load(ctx context.Context) error {
	const op = "service.view.Load"

	c.mu.Lock()
	b := c.cur
	if b.load != loadIdle {
		c.mu.Unlock()
		return nil
	}
	b.load = loadRunning
	c.mu.Unlock()

	bus, err := c.deps.Buses.GetBus(ctx, b.busID)
	if err != nil {
		c.mu.Lock()
		b.load = loadIdle
		c.mu.Unlock()

		b.logger.Error("failed to load bus", "op", op, "error", err)
		if b.current() {
			c.deps.Notifier.Notify(ctx, console.Failure("Bus", "Failed to load bus details", backend.ServerMessage(err)))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	b.bus = bus
	stale := c.cur != b
	c.mu.Unlock()
	if stale {
		return nil
	}

	// route failures are reported by the manager; the page stays usable
	_ = b.routes.Load(ctx)

	c.mu.Lock()
	b.load = loadDone
	c.mu.Unlock()

	return nil
}

// ReloadRoutes is the manual refresh of the route list.
func (c *Coordinator) ReloadRoutes(ctx context.Context) error {
	return c.Routes().Load(ctx)
}

func (c *Coordinator) Routes() *routes.Manager {
	return c.current().routes
}

func (c *Coordinator) Schedules() *schedules.Manager {
	return c.current().schedules
}

func (c *Coordinator) Booking() *booking.Workflow {
	return c.current().booking
}

func (c *Coordinator) EditSchedule(routeID, scheduleID int64) error {
	const op = "service.view.EditSchedule"

	sm := c.Schedules()
	s, ok := sm.Schedule(routeID, scheduleID)
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrScheduleNotFound)
	}

	sm.Edit(s)
	return nil
}

func (c *Coordinator) DeleteSchedule(ctx context.Context, routeID, scheduleID int64, prompter console.Prompter) error {
	const op = "service.view.DeleteSchedule"

	sm := c.Schedules()
	s, ok := sm.Schedule(routeID, scheduleID)
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrScheduleNotFound)
	}

	return sm.Delete(ctx, s, prompter)
}

// OpenBooking opens the booking panel for a schedule of an expanded route.
func (c *Coordinator) OpenBooking(ctx context.Context, routeID, scheduleID int64) error {
	const op = "service.view.OpenBooking"

	b := c.current()
	s, ok := b.schedules.Schedule(routeID, scheduleID)
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrScheduleNotFound)
	}

	return b.booking.Open(ctx, s)
}

// TakeScroll returns the pending scroll target and clears it.
func (c *Coordinator) TakeScroll() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.cur.scroll
	c.cur.scroll = ""
	return t
}

// RemoteChange applies a change made in another session.
func (c *Coordinator) RemoteChange(ctx context.Context, routeIDs []int64) {
	_ = c.Schedules().Refresh(ctx, routeIDs...)
}

// Snapshot is the full page state. It consumes the pending scroll request.
func (c *Coordinator) Snapshot() Snapshot {
	scroll := c.TakeScroll()

	c.mu.Lock()
	b := c.cur
	snap := Snapshot{
		BusID:    b.busID,
		Loading:  b.load == loadRunning,
		Loaded:   b.load == loadDone,
		ScrollTo: scroll,
	}
	if b.bus != nil {
		bus := *b.bus
		snap.Bus = &bus
	}
	c.mu.Unlock()

	snap.Panels = b.panels.Snapshot()
	snap.Routes = b.routes.State()
	snap.Schedules = b.schedules.State()
	snap.Booking = b.booking.State()

	return snap
}

func (b *binding) current() bool {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	return b.c.cur == b
}

// ScrollIntoView records where the UI should scroll next.
func (b *binding) ScrollIntoView(target string) {
	b.c.mu.Lock()
	if b.c.cur == b {
		b.scroll = target
	}
	b.c.mu.Unlock()
}

// SchedulesChanged applies the refresh policy after a successful write and
// tells the other sessions of the bus the write was made for.
func (b *binding) SchedulesChanged(ctx context.Context, routeIDs ...int64) {
	const op = "service.view.SchedulesChanged"

	if len(routeIDs) == 0 {
		return
	}

	if b.current() {
		_ = b.schedules.Refresh(ctx, routeIDs...)
	} else {
		b.logger.Debug("page moved to another bus, skipping refresh", "op", op, "epoch", b.epoch)
	}

	if b.c.deps.Broadcaster == nil {
		return
	}
	if err := b.c.deps.Broadcaster.SchedulesChanged(ctx, b.busID, routeIDs); err != nil {
		b.logger.Warn("failed to broadcast schedule change", "op", op, "error", err)
	}
}

func (b *binding) RouteRemoved(ctx context.Context, routeID int64) {
	if !b.current() {
		return
	}

	b.schedules.Drop(routeID)

	if st := b.booking.State(); st.Open && st.Schedule != nil && st.Schedule.RouteID == routeID {
		b.booking.Close()
	}
}

// BusSeats is the seat list carried by the bus, if any.
func (b *binding) BusSeats() []domain.Seat {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()

	if b.bus == nil {
		return nil
	}
	return append([]domain.Seat(nil), b.bus.Seats...)
}
