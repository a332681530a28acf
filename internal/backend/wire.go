package backend

import (
	"strings"
	"time"

	"github.com/kirinyoku/busdesk/internal/domain"
)

// WireTimeLayout is the timestamp layout the platform API expects on writes.
const WireTimeLayout = "2006-01-02T15:04:05"

var readTimeLayouts = []string{
	time.RFC3339Nano,
	WireTimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type ref struct {
	ID flexInt `json:"id"`
}

type busDTO struct {
	ID         flexInt   `json:"id"`
	Number     string    `json:"busNumber"`
	AltNumber  string    `json:"number"`
	Type       string    `json:"busType"`
	AltType    string    `json:"type"`
	TotalSeats flexInt   `json:"totalSeats"`
	Layout     string    `json:"layout"`
	SeatLayout string    `json:"seatLayout"`
	Seats      []seatDTO `json:"seats"`
}

func (b busDTO) toDomain() domain.Bus {
	bus := domain.Bus{
		ID:         int64(b.ID),
		Number:     firstNonEmpty(b.Number, b.AltNumber),
		Type:       firstNonEmpty(b.Type, b.AltType),
		TotalSeats: int(b.TotalSeats),
		Layout:     firstNonEmpty(b.Layout, b.SeatLayout),
	}

	for _, s := range b.Seats {
		if s.ID == 0 {
			continue
		}
		bus.Seats = append(bus.Seats, s.toDomain())
	}

	return bus
}

type routeDTO struct {
	ID                flexInt   `json:"id"`
	BusID             flexInt   `json:"busId"`
	Bus               *ref      `json:"bus"`
	Source            string    `json:"source"`
	Destination       string    `json:"destination"`
	Distance          flexFloat `json:"distance"`
	BaseFare          flexFloat `json:"baseFare"`
	CustomFare        flexFloat `json:"customFare"`
	EstimatedDuration flexInt   `json:"estimatedDuration"`
	DepartureTime     string    `json:"departureTime"`
	Active            *flexBool `json:"active"`
}

func (r routeDTO) valid() bool { return r.ID > 0 }

func (r routeDTO) toDomain() domain.Route {
	busID := int64(r.BusID)
	if busID == 0 && r.Bus != nil {
		busID = int64(r.Bus.ID)
	}

	active := true
	if r.Active != nil {
		active = bool(*r.Active)
	}

	return domain.Route{
		ID:                int64(r.ID),
		BusID:             busID,
		Source:            r.Source,
		Destination:       r.Destination,
		Distance:          float64(r.Distance),
		BaseFare:          float64(r.BaseFare),
		CustomFare:        float64(r.CustomFare),
		EstimatedDuration: int(r.EstimatedDuration),
		DepartureTime:     r.DepartureTime,
		Active:            active,
	}
}

type scheduleDTO struct {
	ID             flexInt   `json:"id"`
	RouteID        flexInt   `json:"routeId"`
	Route          *ref      `json:"route"`
	BusID          flexInt   `json:"busId"`
	Bus            *ref      `json:"bus"`
	DepartureTime  string    `json:"departureTime"`
	ArrivalTime    string    `json:"arrivalTime"`
	Price          flexFloat `json:"price"`
	AvailableSeats flexInt   `json:"availableSeats"`
}

func (s scheduleDTO) valid() bool { return s.ID > 0 }

func (s scheduleDTO) toDomain(loc *time.Location) (domain.Schedule, bool) {
	dep, ok := parseWireTime(s.DepartureTime, loc)
	if !ok {
		return domain.Schedule{}, false
	}

	arr, ok := parseWireTime(s.ArrivalTime, loc)
	if !ok {
		return domain.Schedule{}, false
	}

	routeID := int64(s.RouteID)
	if routeID == 0 && s.Route != nil {
		routeID = int64(s.Route.ID)
	}

	busID := int64(s.BusID)
	if busID == 0 && s.Bus != nil {
		busID = int64(s.Bus.ID)
	}

	return domain.Schedule{
		ID:             int64(s.ID),
		RouteID:        routeID,
		BusID:          busID,
		DepartureTime:  dep,
		ArrivalTime:    arr,
		Price:          float64(s.Price),
		AvailableSeats: int(s.AvailableSeats),
	}, true
}

type seatDTO struct {
	ID         flexInt   `json:"id"`
	SeatNumber flexInt   `json:"seatNumber"`
	Number     flexInt   `json:"number"`
	SeatLabel  string    `json:"seatLabel"`
	Label      string    `json:"label"`
	SeatType   string    `json:"seatType"`
	Type       string    `json:"type"`
	Booked     *flexBool `json:"booked"`
	IsBooked   *flexBool `json:"isBooked"`
	Available  *flexBool `json:"available"`
	Status     string    `json:"status"`
}

func (s seatDTO) valid() bool { return s.ID > 0 }

func (s seatDTO) toDomain() domain.Seat {
	number := int(s.SeatNumber)
	if number == 0 {
		number = int(s.Number)
	}

	booked := false
	switch {
	case s.Booked != nil:
		booked = bool(*s.Booked)
	case s.IsBooked != nil:
		booked = bool(*s.IsBooked)
	case s.Available != nil:
		booked = !bool(*s.Available)
	case s.Status != "":
		booked = !strings.EqualFold(s.Status, "available")
	}

	return domain.Seat{
		ID:     int64(s.ID),
		Number: number,
		Label:  firstNonEmpty(s.SeatLabel, s.Label),
		Type:   firstNonEmpty(s.SeatType, s.Type),
		Booked: booked,
	}
}

type routeBody struct {
	BusID             int64   `json:"busId"`
	Source            string  `json:"source"`
	Destination       string  `json:"destination"`
	Distance          float64 `json:"distance"`
	BaseFare          float64 `json:"baseFare"`
	CustomFare        float64 `json:"customFare"`
	EstimatedDuration int     `json:"estimatedDuration"`
	DepartureTime     string  `json:"departureTime,omitempty"`
	Active            bool    `json:"active"`
}

func newRouteBody(p domain.RoutePayload) routeBody {
	return routeBody{
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

type scheduleBody struct {
	RouteID       int64   `json:"routeId"`
	BusID         int64   `json:"busId"`
	DepartureTime string  `json:"departureTime"`
	ArrivalTime   string  `json:"arrivalTime"`
	Price         float64 `json:"price"`
}

type generateBody struct {
	BusID     int64  `json:"busId"`
	StartDate string `json:"startDate"`
	Days      int    `json:"days"`
}

type bookingBody struct {
	ScheduleID  int64    `json:"scheduleId"`
	SeatIDs     []int64  `json:"seatIds"`
	SeatNumbers []int    `json:"seatNumbers"`
	SeatLabels  []string `json:"seatLabels"`
	NationalID  string   `json:"nationalId"`
	Mobile      string   `json:"mobile"`
	Email       string   `json:"email"`
	Status      string   `json:"status"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseWireTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range readTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
