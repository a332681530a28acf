package schedules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kirinyoku/busdesk/internal/backend"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/console/cache"
	"github.com/kirinyoku/busdesk/internal/console/derive"
	"github.com/kirinyoku/busdesk/internal/domain"
)

type Backend interface {
	GetSchedulesByRoute(ctx context.Context, routeID int64) ([]domain.Schedule, error)
	CreateSchedule(ctx context.Context, p domain.SchedulePayload) error
	UpdateSchedule(ctx context.Context, id int64, p domain.SchedulePayload) error
	DeleteSchedule(ctx context.Context, id int64) error
	GenerateSchedules(ctx context.Context, job domain.GenerationJob) error
}

// RouteLookup exposes the routes of the bus being edited.
type RouteLookup interface {
	Route(id int64) (domain.Route, bool)
	Routes() []domain.Route
	Count() int
}

type ViewState string

const (
	Hidden  ViewState = "hidden"
	Loading ViewState = "loading"
	Shown   ViewState = "shown"
)

type Deps struct {
	Backend  Backend
	Routes   RouteLookup
	Host     console.Host
	Panels   *console.Panels
	Notifier console.Notifier
	Logger   *slog.Logger
	Location *time.Location
}

// Manager owns the per-route schedule panels, the schedule cache, the
// schedule form and the bulk generation form of one bus.
type Manager struct {
	busID    int64
	backend  Backend
	routes   RouteLookup
	host     console.Host
	panels   *console.Panels
	notifier console.Notifier
	logger   *slog.Logger
	loc      *time.Location

	cache *cache.Cache[int64, []domain.Schedule]

	submitting console.Guard
	deleting   console.Guard
	generating console.Guard

	mu             sync.Mutex
	views          map[int64]ViewState
	resolver       *derive.Resolver
	form           derive.ScheduleForm
	editingID      int64
	editingRouteID int64
	fieldErrs      console.FieldErrors
	genForm        GenerateForm
	genErrs        console.FieldErrors
}

type RouteSchedules struct {
	RouteID   int64             `json:"route_id"`
	View      ViewState         `json:"view"`
	Schedules []domain.Schedule `json:"schedules"`
}

// State is the schedule part of the console view.
type State struct {
	Expanded       []RouteSchedules    `json:"expanded"`
	Form           derive.ScheduleForm `json:"form"`
	EditingID      int64               `json:"editing_id,omitempty"`
	FieldErrors    map[string]string   `json:"field_errors,omitempty"`
	Submitting     bool                `json:"submitting"`
	Deleting       bool                `json:"deleting"`
	Generate       GenerateForm        `json:"generate"`
	GenerateErrors map[string]string   `json:"generate_errors,omitempty"`
	Generating     bool                `json:"generating"`
	CanGenerate    bool                `json:"can_generate"`
}

func New(busID int64, d Deps) *Manager {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Location == nil {
		d.Location = time.Local
	}

	return &Manager{
		busID:    busID,
		backend:  d.Backend,
		routes:   d.Routes,
		host:     d.Host,
		panels:   d.Panels,
		notifier: d.Notifier,
		logger:   d.Logger,
		loc:      d.Location,
		cache:    cache.New[int64, []domain.Schedule]("schedules"),
		views:    make(map[int64]ViewState),
		resolver: derive.NewResolver(d.Location),
	}
}

// Toggle opens or closes the schedule panel of a route. The first open
// fetches (hidden -> loading -> shown), a repeat closes it, and opening a
// route whose schedules are cached shows them without a fetch. Calls made
// while the route is loading are ignored.
func (m *Manager) Toggle(ctx context.Context, routeID int64) error {
	m.mu.Lock()
	switch m.views[routeID] {
	case Shown:
		m.views[routeID] = Hidden
		m.mu.Unlock()
		return nil
	case Loading:
		m.mu.Unlock()
		return nil
	}

	if _, ok := m.cache.Get(routeID); ok {
		m.views[routeID] = Shown
		m.mu.Unlock()
		return nil
	}

	m.views[routeID] = Loading
	m.mu.Unlock()

	return m.fetch(ctx, routeID)
}

// Refresh invalidates the cached schedules of each route. Routes currently
// on screen are reloaded (shown -> loading -> shown); the others are only
// dropped and fetched again the next time they are opened.
func (m *Manager) Refresh(ctx context.Context, routeIDs ...int64) error {
	var reload []int64

	m.mu.Lock()
	for _, id := range routeIDs {
		if id <= 0 {
			continue
		}
		m.cache.Invalidate(id)
		if v := m.views[id]; v == Shown || v == Loading {
			m.views[id] = Loading
			reload = append(reload, id)
		}
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range reload {
		if err := m.fetch(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Drop forgets everything known about a route.
func (m *Manager) Drop(routeID int64) {
	m.cache.Invalidate(routeID)

	m.mu.Lock()
	delete(m.views, routeID)
	if m.form.RouteID == routeID {
		m.resolver.SelectRoute(&m.form, nil)
	}
	m.mu.Unlock()
}

func (m *Manager) Schedules(routeID int64) ([]domain.Schedule, ViewState) {
	m.mu.Lock()
	v, ok := m.views[routeID]
	m.mu.Unlock()
	if !ok {
		v = Hidden
	}

	list, _ := m.cache.Get(routeID)
	return list, v
}

// Schedule finds a cached schedule of a route.
func (m *Manager) Schedule(routeID, scheduleID int64) (domain.Schedule, bool) {
	list, _ := m.cache.Get(routeID)
	for _, s := range list {
		if s.ID == scheduleID {
			return s, true
		}
	}
	return domain.Schedule{}, false
}

func (m *Manager) ShowCreate() {
	m.mu.Lock()
	m.form = derive.ScheduleForm{}
	m.resolver.Reset()
	m.editingID = 0
	m.editingRouteID = 0
	m.fieldErrs = nil
	m.mu.Unlock()

	m.panels.Show(console.PanelScheduleForm)
	m.host.ScrollIntoView(string(console.PanelScheduleForm))
}

func (m *Manager) Edit(s domain.Schedule) {
	route, ok := m.routes.Route(s.RouteID)

	m.mu.Lock()
	m.form = formFromSchedule(s, m.loc)
	if ok {
		m.resolver.Prime(&route)
	} else {
		m.resolver.Reset()
	}
	m.editingID = s.ID
	m.editingRouteID = s.RouteID
	m.fieldErrs = nil
	m.mu.Unlock()

	m.panels.Show(console.PanelScheduleForm)
	m.host.ScrollIntoView(string(console.PanelScheduleForm))
}

func (m *Manager) Cancel() {
	m.resetForm()
	m.panels.Hide(console.PanelScheduleForm)
}

// SelectRoute sets the form's route. Zero clears the selection.
func (m *Manager) SelectRoute(routeID int64) error {
	const op = "service.schedules.SelectRoute"

	if routeID == 0 {
		m.mu.Lock()
		m.resolver.SelectRoute(&m.form, nil)
		m.mu.Unlock()
		return nil
	}

	route, ok := m.routes.Route(routeID)
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrUnknownRoute)
	}

	m.mu.Lock()
	m.resolver.SelectRoute(&m.form, &route)
	m.mu.Unlock()
	return nil
}

func (m *Manager) SetDeparture(v string) {
	m.mu.Lock()
	m.resolver.SetDeparture(&m.form, v)
	m.mu.Unlock()
}

func (m *Manager) SetArrival(v string) {
	m.mu.Lock()
	m.resolver.SetArrival(&m.form, v)
	m.mu.Unlock()
}

func (m *Manager) SetPrice(v string) {
	m.mu.Lock()
	m.resolver.SetPrice(&m.form, v)
	m.mu.Unlock()
}

func (m *Manager) Form() derive.ScheduleForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// Submit creates a schedule, or updates the one being edited. Invalid input
// never reaches the backend.
func (m *Manager) Submit(ctx context.Context) error {
	const op = "service.schedules.Submit"

	if !m.submitting.TryBegin() {
		return fmt.Errorf("%s: %w", op, console.ErrBusy)
	}
	defer m.submitting.End()

	m.mu.Lock()
	form := m.form
	editingID := m.editingID
	previousRouteID := m.editingRouteID
	m.mu.Unlock()

	payload, errs := schedulePayload(m.busID, form, m.loc)
	m.mu.Lock()
	m.fieldErrs = errs
	m.mu.Unlock()

	if len(errs) > 0 {
		m.host.ScrollIntoView(errs.First())
		return fmt.Errorf("%s: %w", op, errs.Err())
	}

	var err error
	if editingID != 0 {
		err = m.backend.UpdateSchedule(ctx, editingID, payload)
	} else {
		err = m.backend.CreateSchedule(ctx, payload)
	}
	if err != nil {
		m.logger.Error("failed to save schedule", "op", op, "route_id", payload.RouteID, "schedule_id", editingID, "error", err)
		m.notifier.Notify(ctx, console.Failure("Schedule", "Failed to save schedule", backend.ServerMessage(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := "Schedule created"
	if editingID != 0 {
		msg = "Schedule updated"
	}

	m.resetForm()
	m.panels.Hide(console.PanelScheduleForm)
	m.notifier.Notify(ctx, console.Success("Schedule", msg))

	changed := []int64{payload.RouteID}
	if previousRouteID != 0 && previousRouteID != payload.RouteID {
		changed = append(changed, previousRouteID)
	}
	m.host.SchedulesChanged(ctx, changed...)

	return nil
}

// Delete removes a schedule after the operator confirms it.
func (m *Manager) Delete(ctx context.Context, s domain.Schedule, prompter console.Prompter) error {
	const op = "service.schedules.Delete"

	ok, err := prompter.Confirm(ctx, console.Prompt{
		Title: "Delete schedule?",
		Body: fmt.Sprintf(
			"The schedule departing %s will be deleted. This action cannot be undone.",
			s.DepartureTime.In(m.loc).Format("2006-01-02 15:04"),
		),
		ConfirmLabel: "Delete",
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, console.ErrDeclined)
	}

	if !m.deleting.TryBegin() {
		return fmt.Errorf("%s: %w", op, console.ErrBusy)
	}
	defer m.deleting.End()

	if err := m.backend.DeleteSchedule(ctx, s.ID); err != nil {
		m.logger.Error("failed to delete schedule", "op", op, "schedule_id", s.ID, "error", err)
		m.notifier.Notify(ctx, console.Failure("Schedule", "Failed to delete schedule", backend.ServerMessage(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	wasEditing := m.editingID == s.ID
	m.mu.Unlock()
	if wasEditing {
		m.Cancel()
	}

	m.notifier.Notify(ctx, console.Success("Schedule", "Schedule deleted"))
	m.host.SchedulesChanged(ctx, s.RouteID)

	return nil
}

// ShowGenerate opens the bulk generation form. It needs at least one route.
func (m *Manager) ShowGenerate() error {
	const op = "service.schedules.ShowGenerate"

	if m.routes.Count() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNoRoutes)
	}

	m.mu.Lock()
	m.genForm = GenerateForm{Days: "1"}
	m.genErrs = nil
	m.mu.Unlock()

	m.panels.Show(console.PanelGenerateForm)
	m.host.ScrollIntoView(string(console.PanelGenerateForm))
	return nil
}

func (m *Manager) CancelGenerate() {
	m.mu.Lock()
	m.genForm = GenerateForm{}
	m.genErrs = nil
	m.mu.Unlock()

	m.panels.Hide(console.PanelGenerateForm)
}

// Generate asks the backend to create schedules for every route of the bus
// over a date range. Repeated calls are not deduplicated here.
func (m *Manager) Generate(ctx context.Context, form GenerateForm) error {
	const op = "service.schedules.Generate"

	if m.routes.Count() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNoRoutes)
	}

	if !m.generating.TryBegin() {
		return fmt.Errorf("%s: %w", op, console.ErrBusy)
	}
	defer m.generating.End()

	job, errs := generationJob(m.busID, form)
	m.mu.Lock()
	m.genForm = form
	m.genErrs = errs
	m.mu.Unlock()

	if len(errs) > 0 {
		m.host.ScrollIntoView(errs.First())
		return fmt.Errorf("%s: %w", op, errs.Err())
	}

	if err := m.backend.GenerateSchedules(ctx, job); err != nil {
		m.logger.Error("failed to generate schedules", "op", op, "bus_id", m.busID, "error", err)
		m.notifier.Notify(ctx, console.Failure("Schedules", "Failed to generate schedules", backend.ServerMessage(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	m.CancelGenerate()
	m.notifier.Notify(ctx, console.Success(
		"Schedules",
		fmt.Sprintf("Schedules generated for %d day(s) from %s", job.Days, job.StartDate),
	))

	routes := m.routes.Routes()
	ids := make([]int64, 0, len(routes))
	for _, r := range routes {
		ids = append(ids, r.ID)
	}
	m.host.SchedulesChanged(ctx, ids...)

	return nil
}

func (m *Manager) State() State {
	st := State{
		Submitting:  m.submitting.InFlight(),
		Deleting:    m.deleting.InFlight(),
		Generating:  m.generating.InFlight(),
		CanGenerate: m.routes.Count() > 0,
	}

	m.mu.Lock()
	st.Form = m.form
	st.EditingID = m.editingID
	st.Generate = m.genForm
	if len(m.fieldErrs) > 0 {
		st.FieldErrors = m.fieldErrs.Map()
	}
	if len(m.genErrs) > 0 {
		st.GenerateErrors = m.genErrs.Map()
	}

	ids := make([]int64, 0, len(m.views))
	for id, v := range m.views {
		if v != Hidden {
			ids = append(ids, id)
		}
	}
	views := make(map[int64]ViewState, len(ids))
	for _, id := range ids {
		views[id] = m.views[id]
	}
	m.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		list, _ := m.cache.Get(id)
		st.Expanded = append(st.Expanded, RouteSchedules{RouteID: id, View: views[id], Schedules: list})
	}

	return st
}

func (m *Manager) fetch(ctx context.Context, routeID int64) error {
	const op = "service.schedules.fetch"

	_, err := m.cache.Load(ctx, routeID, func(ctx context.Context) ([]domain.Schedule, error) {
		return m.backend.GetSchedulesByRoute(ctx, routeID)
	})

	m.mu.Lock()
	if err != nil {
		if m.views[routeID] == Loading {
			m.views[routeID] = Hidden
		}
		m.mu.Unlock()

		m.logger.Error("failed to load schedules", "op", op, "route_id", routeID, "error", err)
		m.notifier.Notify(ctx, console.Failure("Schedules", "Failed to load schedules", backend.ServerMessage(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	// a result dropped by an invalidation leaves the route loading until
	// the reload that invalidation started settles it
	if m.views[routeID] == Loading {
		if _, ok := m.cache.Get(routeID); ok {
			m.views[routeID] = Shown
		}
	}
	m.mu.Unlock()

	return nil
}

func (m *Manager) resetForm() {
	m.mu.Lock()
	m.form = derive.ScheduleForm{}
	m.resolver.Reset()
	m.editingID = 0
	m.editingRouteID = 0
	m.fieldErrs = nil
	m.mu.Unlock()
}
