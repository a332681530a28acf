package domain

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type Bus struct {
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	Type       string `json:"type"`
	TotalSeats int    `json:"total_seats"`
	Layout     string `json:"layout"`
	Seats      []Seat `json:"seats,omitempty"`
}

type Route struct {
	ID                int64   `json:"id"`
	BusID             int64   `json:"bus_id"`
	Source            string  `json:"source"`
	Destination       string  `json:"destination"`
	Distance          float64 `json:"distance"`
	BaseFare          float64 `json:"base_fare"`
	CustomFare        float64 `json:"custom_fare"`
	EstimatedDuration int     `json:"estimated_duration"` // minutes
	DepartureTime     string  `json:"departure_time"`     // HH:MM
	Active            bool    `json:"active"`
}

type Schedule struct {
	ID             int64     `json:"id"`
	RouteID        int64     `json:"route_id"`
	BusID          int64     `json:"bus_id"`
	DepartureTime  time.Time `json:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time"`
	Price          float64   `json:"price"`
	AvailableSeats int       `json:"available_seats"`
}

type Seat struct {
	ID     int64  `json:"id"`
	Number int    `json:"number"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Booked bool   `json:"booked"`
}

type BookingRequest struct {
	ScheduleID  int64         `json:"schedule_id"`
	SeatIDs     []int64       `json:"seat_ids"`
	SeatNumbers []int         `json:"seat_numbers"`
	SeatLabels  []string      `json:"seat_labels"`
	NationalID  string        `json:"national_id"`
	Mobile      string        `json:"mobile"`
	Email       string        `json:"email"`
	Status      BookingStatus `json:"status"`
}

type GenerationJob struct {
	BusID     int64  `json:"bus_id"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	Days      int    `json:"days"`
}

// RoutePayload is the write shape of a route.
type RoutePayload struct {
	BusID             int64
	Source            string
	Destination       string
	Distance          float64
	BaseFare          float64
	CustomFare        float64
	EstimatedDuration int
	DepartureTime     string
	Active            bool
}

// SchedulePayload is the write shape of a schedule. Times are already in the
// backend wire layout.
type SchedulePayload struct {
	RouteID       int64
	BusID         int64
	DepartureTime string
	ArrivalTime   string
	Price         float64
}

type DashboardStats struct {
	Hotels   int      `json:"hotels"`
	Buses    int      `json:"buses"`
	Taxis    int      `json:"taxis"`
	Theaters int      `json:"theaters"`
	Failed   []string `json:"failed,omitempty"`
}
