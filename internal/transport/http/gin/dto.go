package httpgin

import (
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/service/view"
)

type CreateSessionRequest struct {
	BusID int64 `json:"bus_id" binding:"required,gt=0"`
}

type SetBusRequest struct {
	BusID int64 `json:"bus_id" binding:"required,gt=0"`
}

type CreateSessionResponse struct {
	SessionID string        `json:"session_id"`
	Snapshot  view.Snapshot `json:"snapshot"`
}

// ScheduleFieldRequest carries the schedule form fields that changed.
// Absent fields are left alone.
type ScheduleFieldRequest struct {
	RouteID   *int64  `json:"route_id"`
	Departure *string `json:"departure"`
	Arrival   *string `json:"arrival"`
	Price     *string `json:"price"`
}

type GenerateRequest struct {
	StartDate string `json:"start_date"`
	Days      string `json:"days"`
}

type OpenBookingRequest struct {
	RouteID    int64 `json:"route_id" binding:"required,gt=0"`
	ScheduleID int64 `json:"schedule_id" binding:"required,gt=0"`
}

type ApplicantRequest struct {
	NationalID string `json:"national_id"`
	Mobile     string `json:"mobile"`
	Email      string `json:"email" binding:"omitempty,email"`
	Status     string `json:"status" binding:"omitempty,oneof=PENDING CONFIRMED CANCELLED"`
}

type BookingSubmitResponse struct {
	ScheduleID int64    `json:"schedule_id"`
	SeatLabels []string `json:"seat_labels"`
	Status     string   `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Fields []console.FieldError `json:"fields"`
}

type ConfirmationResponse struct {
	Error  string         `json:"error"`
	Prompt console.Prompt `json:"prompt"`
}
