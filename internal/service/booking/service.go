package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirinyoku/busdesk/internal/backend"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/domain"
)

type Backend interface {
	GetAvailableSeats(ctx context.Context, scheduleID int64) ([]domain.Seat, error)
	LockBooking(ctx context.Context, req domain.BookingRequest) error
}

// SeatSource returns the bus level seat list, if the bus carries one.
type SeatSource interface {
	BusSeats() []domain.Seat
}

type Applicant struct {
	NationalID string `json:"national_id"`
	Mobile     string `json:"mobile"`
	Email      string `json:"email"`
}

type Deps struct {
	Backend  Backend
	Seats    SeatSource
	Host     console.Host
	Panels   *console.Panels
	Notifier console.Notifier
	Logger   *slog.Logger
}

// Workflow is the seat selection and booking panel.
type Workflow struct {
	backend  Backend
	busSeats SeatSource
	host     console.Host
	panels   *console.Panels
	notifier console.Notifier
	logger   *slog.Logger

	submitting console.Guard

	mu           sync.Mutex
	open         bool
	seq          uint64
	schedule     domain.Schedule
	seats        []domain.Seat
	loadingSeats bool
	selected     []int64
	req          domain.BookingRequest
	fieldErrs    console.FieldErrors
}

type State struct {
	Open         bool                  `json:"open"`
	Schedule     *domain.Schedule      `json:"schedule,omitempty"`
	Seats        []domain.Seat         `json:"seats"`
	LoadingSeats bool                  `json:"loading_seats"`
	Selected     []int64               `json:"selected"`
	Request      domain.BookingRequest `json:"request"`
	FieldErrors  map[string]string     `json:"field_errors,omitempty"`
	Submitting   bool                  `json:"submitting"`
}

func New(d Deps) *Workflow {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	return &Workflow{
		backend:  d.Backend,
		busSeats: d.Seats,
		host:     d.Host,
		panels:   d.Panels,
		notifier: d.Notifier,
		logger:   d.Logger,
	}
}

// Open starts a booking for a schedule. The bus seat list is used when the
// bus has one; otherwise the schedule's seats are fetched.
func (w *Workflow) Open(ctx context.Context, s domain.Schedule) error {
	const op = "service.booking.Open"

	w.mu.Lock()
	w.resetLocked()
	w.seq++
	seq := w.seq
	w.open = true
	w.schedule = s
	w.req.ScheduleID = s.ID
	w.loadingSeats = true
	w.mu.Unlock()

	w.panels.Show(console.PanelBooking)
	w.host.ScrollIntoView(string(console.PanelBooking))

	var seats []domain.Seat
	if w.busSeats != nil {
		if bs := w.busSeats.BusSeats(); len(bs) > 0 {
			seats = make([]domain.Seat, len(bs))
			copy(seats, bs)
		}
	}

	if seats == nil {
		var err error
		seats, err = w.backend.GetAvailableSeats(ctx, s.ID)
		if err != nil {
			w.mu.Lock()
			if w.seq == seq {
				w.loadingSeats = false
			}
			w.mu.Unlock()

			w.logger.Error("failed to load seats", "op", op, "schedule_id", s.ID, "error", err)
			w.notifier.Notify(ctx, console.Failure("Seats", "Failed to load seats", backend.ServerMessage(err)))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	w.mu.Lock()
	if w.seq == seq && w.open {
		w.seats = seats
		w.loadingSeats = false
	}
	w.mu.Unlock()

	return nil
}

// Toggle adds a seat to the selection or removes it. Booked seats cannot be
// selected. The seat lists of the request always mirror the selection.
func (w *Workflow) Toggle(seatID int64) error {
	const op = "service.booking.Toggle"

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return fmt.Errorf("%s: %w", op, ErrNotOpen)
	}

	seat, ok := w.seatLocked(seatID)
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrSeatUnknown)
	}

	if idx := indexOf(w.selected, seatID); idx >= 0 {
		w.selected = append(w.selected[:idx], w.selected[idx+1:]...)
	} else {
		if seat.Booked {
			return fmt.Errorf("%s: %w", op, ErrSeatBooked)
		}
		w.selected = append(w.selected, seatID)
	}

	w.syncSeatsLocked()
	return nil
}

func (w *Workflow) SetApplicant(a Applicant) error {
	const op = "service.booking.SetApplicant"

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return fmt.Errorf("%s: %w", op, ErrNotOpen)
	}

	w.req.NationalID = a.NationalID
	w.req.Mobile = a.Mobile
	w.req.Email = a.Email
	return nil
}

func (w *Workflow) SetStatus(status domain.BookingStatus) error {
	const op = "service.booking.SetStatus"

	switch status {
	case domain.BookingPending, domain.BookingConfirmed, domain.BookingCancelled:
	default:
		return fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return fmt.Errorf("%s: %w", op, ErrNotOpen)
	}

	w.req.Status = status
	return nil
}

// Submit locks the selected seats. Nothing is sent unless at least one seat
// is selected and every contact field is filled. On failure the selection
// and the applicant details are kept for a retry.
func (w *Workflow) Submit(ctx context.Context) error {
	const op = "service.booking.Submit"

	if !w.submitting.TryBegin() {
		return fmt.Errorf("%s: %w", op, console.ErrBusy)
	}
	defer w.submitting.End()

	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrNotOpen)
	}
	seq := w.seq
	schedule := w.schedule
	req := w.requestLocked()

	errs := validate(req)
	w.fieldErrs = errs
	w.mu.Unlock()

	if len(errs) > 0 {
		w.host.ScrollIntoView(errs.First())
		return fmt.Errorf("%s: %w", op, errs.Err())
	}

	if req.Status == "" {
		req.Status = domain.BookingPending
	}

	if err := w.backend.LockBooking(ctx, req); err != nil {
		w.logger.Error("booking failed", "op", op, "schedule_id", req.ScheduleID, "seats", req.SeatNumbers, "error", err)
		w.notifier.Notify(ctx, console.Failure("Booking", "Booking failed. Please try again.", backend.ServerMessage(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	// a booking opened meanwhile keeps its panel; the seats changed either way
	w.mu.Lock()
	if w.seq == seq {
		w.resetLocked()
		w.panels.Hide(console.PanelBooking)
	}
	w.mu.Unlock()

	w.notifier.Notify(ctx, console.Success(
		"Booking",
		fmt.Sprintf("Seats %s locked for booking", strings.Join(req.SeatLabels, ", ")),
	))
	w.host.SchedulesChanged(ctx, schedule.RouteID)

	return nil
}

func (w *Workflow) Close() {
	w.mu.Lock()
	w.resetLocked()
	w.seq++
	w.mu.Unlock()

	w.panels.Hide(console.PanelBooking)
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := State{
		Open:         w.open,
		Seats:        append([]domain.Seat(nil), w.seats...),
		LoadingSeats: w.loadingSeats,
		Selected:     append([]int64(nil), w.selected...),
		Request:      w.requestLocked(),
		Submitting:   w.submitting.InFlight(),
	}
	if w.open {
		s := w.schedule
		st.Schedule = &s
	}
	if len(w.fieldErrs) > 0 {
		st.FieldErrors = w.fieldErrs.Map()
	}
	return st
}

func validate(req domain.BookingRequest) console.FieldErrors {
	var errs console.FieldErrors

	if len(req.SeatIDs) == 0 {
		errs.Add("seats", "Select at least one seat")
	}
	if strings.TrimSpace(req.NationalID) == "" {
		errs.Add("nationalId", "National ID is required")
	}
	if strings.TrimSpace(req.Mobile) == "" {
		errs.Add("mobile", "Mobile number is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		errs.Add("email", "Email is required")
	}

	return errs
}

func (w *Workflow) syncSeatsLocked() {
	ids := make([]int64, 0, len(w.selected))
	numbers := make([]int, 0, len(w.selected))
	labels := make([]string, 0, len(w.selected))

	for _, id := range w.selected {
		seat, ok := w.seatLocked(id)
		if !ok {
			continue
		}
		ids = append(ids, seat.ID)
		numbers = append(numbers, seat.Number)
		labels = append(labels, seatLabel(seat))
	}

	w.req.SeatIDs = ids
	w.req.SeatNumbers = numbers
	w.req.SeatLabels = labels
}

func (w *Workflow) requestLocked() domain.BookingRequest {
	req := w.req
	req.SeatIDs = append([]int64(nil), w.req.SeatIDs...)
	req.SeatNumbers = append([]int(nil), w.req.SeatNumbers...)
	req.SeatLabels = append([]string(nil), w.req.SeatLabels...)
	return req
}

func (w *Workflow) seatLocked(id int64) (domain.Seat, bool) {
	for _, s := range w.seats {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Seat{}, false
}

func (w *Workflow) resetLocked() {
	w.open = false
	w.schedule = domain.Schedule{}
	w.seats = nil
	w.loadingSeats = false
	w.selected = nil
	w.req = domain.BookingRequest{}
	w.fieldErrs = nil
}

func seatLabel(s domain.Seat) string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("%d", s.Number)
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
