package routes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirinyoku/busdesk/internal/backend"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/domain"
)

type Backend interface {
	GetRoutes(ctx context.Context, busID int64) ([]domain.Route, error)
	CreateRoute(ctx context.Context, p domain.RoutePayload) error
	UpdateRoute(ctx context.Context, id int64, p domain.RoutePayload) error
	DeleteRoute(ctx context.Context, id int64) error
}

type Deps struct {
	Backend  Backend
	Host     console.Host
	Panels   *console.Panels
	Notifier console.Notifier
	Logger   *slog.Logger
}

// Manager owns the route list of one bus and the route form.
type Manager struct {
	busID    int64
	backend  Backend
	host     console.Host
	panels   *console.Panels
	notifier console.Notifier
	logger   *slog.Logger

	submitting console.Guard
	deleting   console.Guard

	mu        sync.Mutex
	routes    []domain.Route
	form      Form
	editingID int64
	fieldErrs console.FieldErrors
}

// State is the route part of the console view.
type State struct {
	Routes      []domain.Route    `json:"routes"`
	Form        Form              `json:"form"`
	EditingID   int64             `json:"editing_id,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Submitting  bool              `json:"submitting"`
	Deleting    bool              `json:"deleting"`
}

func New(busID int64, d Deps) *Manager {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	return &Manager{
		busID:    busID,
		backend:  d.Backend,
		host:     d.Host,
		panels:   d.Panels,
		notifier: d.Notifier,
		logger:   d.Logger,
		form:     blankForm(),
	}
}

// Load replaces the route list with a fresh copy from the backend. On
// failure the previous list is kept.
func (m *Manager) Load(ctx context.Context) error {
	const op = "service.routes.Load"

	routes, err := m.backend.GetRoutes(ctx, m.busID)
	if err != nil {
		m.logger.Error("failed to load routes", "op", op, "bus_id", m.busID, "error", err)
		m.notifier.Notify(ctx, console.Failure("Routes", "Failed to load routes", backend.ServerMessage(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	valid := make([]domain.Route, 0, len(routes))
	for _, r := range routes {
		if r.ID <= 0 {
			m.logger.Debug("dropping route without id", "op", op, "bus_id", m.busID)
			continue
		}
		valid = append(valid, r)
	}

	m.mu.Lock()
	m.routes = valid
	m.mu.Unlock()

	return nil
}

func (m *Manager) Routes() []domain.Route {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Route, len(m.routes))
	copy(out, m.routes)
	return out
}

func (m *Manager) Route(id int64) (domain.Route, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.routes {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Route{}, false
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.routes)
}

func (m *Manager) ShowCreate() {
	m.mu.Lock()
	m.form = blankForm()
	m.editingID = 0
	m.fieldErrs = nil
	m.mu.Unlock()

	m.panels.Show(console.PanelRouteForm)
	m.host.ScrollIntoView(string(console.PanelRouteForm))
}

func (m *Manager) Edit(id int64) error {
	const op = "service.routes.Edit"

	r, ok := m.Route(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrRouteNotFound)
	}

	m.mu.Lock()
	m.form = formFromRoute(r)
	m.editingID = id
	m.fieldErrs = nil
	m.mu.Unlock()

	m.panels.Show(console.PanelRouteForm)
	m.host.ScrollIntoView(string(console.PanelRouteForm))
	return nil
}

func (m *Manager) Cancel() {
	m.resetForm()
	m.panels.Hide(console.PanelRouteForm)
}

// Submit creates a route, or updates the one being edited. Invalid input is
// rejected before any backend call and the first invalid field is scrolled
// into view. The form keeps its contents on every failure.
func (m *Manager) Submit(ctx context.Context, form Form) error {
	const op = "service.routes.Submit"

	if !m.submitting.TryBegin() {
		return fmt.Errorf("%s: %w", op, console.ErrBusy)
	}
	defer m.submitting.End()

	m.mu.Lock()
	m.form = form
	editingID := m.editingID
	m.mu.Unlock()

	payload, errs := form.Payload(m.busID)
	m.mu.Lock()
	m.fieldErrs = errs
	m.mu.Unlock()

	if len(errs) > 0 {
		m.host.ScrollIntoView(errs.First())
		return fmt.Errorf("%s: %w", op, errs.Err())
	}

	var err error
	if editingID != 0 {
		err = m.backend.UpdateRoute(ctx, editingID, payload)
	} else {
		err = m.backend.CreateRoute(ctx, payload)
	}
	if err != nil {
		m.logger.Error("failed to save route", "op", op, "bus_id", m.busID, "route_id", editingID, "error", err)
		m.notifier.Notify(ctx, console.Failure("Route", "Failed to save route", backend.ServerMessage(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := "Route created"
	if editingID != 0 {
		msg = "Route updated"
	}

	m.resetForm()
	m.panels.Hide(console.PanelRouteForm)
	m.notifier.Notify(ctx, console.Success("Route", msg))

	_ = m.Load(ctx)
	return nil
}

// Delete removes a route after the operator confirms it. Declining has no
// side effects.
func (m *Manager) Delete(ctx context.Context, id int64, prompter console.Prompter) error {
	const op = "service.routes.Delete"

	body := fmt.Sprintf("Route #%d will be deleted. This action cannot be undone.", id)
	if r, ok := m.Route(id); ok {
		body = fmt.Sprintf("Route %s → %s will be deleted. This action cannot be undone.", r.Source, r.Destination)
	}

	ok, err := prompter.Confirm(ctx, console.Prompt{
		Title:        "Delete route?",
		Body:         body,
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

	if err := m.backend.DeleteRoute(ctx, id); err != nil {
		m.logger.Error("failed to delete route", "op", op, "route_id", id, "error", err)
		m.notifier.Notify(ctx, console.Failure("Route", "Failed to delete route", backend.ServerMessage(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	wasEditing := m.editingID == id
	m.mu.Unlock()
	if wasEditing {
		m.Cancel()
	}

	m.notifier.Notify(ctx, console.Success("Route", "Route deleted"))
	m.host.RouteRemoved(ctx, id)

	_ = m.Load(ctx)
	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	routes := make([]domain.Route, len(m.routes))
	copy(routes, m.routes)

	st := State{
		Routes:     routes,
		Form:       m.form,
		EditingID:  m.editingID,
		Submitting: m.submitting.InFlight(),
		Deleting:   m.deleting.InFlight(),
	}
	if len(m.fieldErrs) > 0 {
		st.FieldErrors = m.fieldErrs.Map()
	}
	return st
}

func (m *Manager) resetForm() {
	m.mu.Lock()
	m.form = blankForm()
	m.editingID = 0
	m.fieldErrs = nil
	m.mu.Unlock()
}

func blankForm() Form {
	active := true
	return Form{Active: &active}
}
