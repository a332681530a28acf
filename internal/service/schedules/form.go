package schedules

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kirinyoku/busdesk/internal/backend"
	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/console/derive"
	"github.com/kirinyoku/busdesk/internal/domain"
)

const dateLayout = "2006-01-02"

// GenerateForm is the bulk generation input.
type GenerateForm struct {
	StartDate string `json:"start_date"`
	Days      string `json:"days"`
}

func schedulePayload(busID int64, f derive.ScheduleForm, loc *time.Location) (domain.SchedulePayload, console.FieldErrors) {
	var errs console.FieldErrors

	if f.RouteID <= 0 {
		errs.Add("routeId", "Select a route")
	}

	dep, depOK := derive.ParseFormTime(f.Departure, loc)
	switch {
	case strings.TrimSpace(f.Departure) == "":
		errs.Add("departureTime", "Departure time is required")
	case !depOK:
		errs.Add("departureTime", "Departure time is invalid")
	}

	arr, arrOK := derive.ParseFormTime(f.Arrival, loc)
	switch {
	case strings.TrimSpace(f.Arrival) == "":
		errs.Add("arrivalTime", "Arrival time is required")
	case !arrOK:
		errs.Add("arrivalTime", "Arrival time is invalid")
	case depOK && !arr.After(dep):
		errs.Add("arrivalTime", "Arrival time must be after departure time")
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(f.Price), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		errs.Add("price", "Price must be greater than 0")
	}

	if len(errs) > 0 {
		return domain.SchedulePayload{}, errs
	}

	return domain.SchedulePayload{
		RouteID:       f.RouteID,
		BusID:         busID,
		DepartureTime: dep.Format(backend.WireTimeLayout),
		ArrivalTime:   arr.Format(backend.WireTimeLayout),
		Price:         price,
	}, nil
}

func generationJob(busID int64, f GenerateForm) (domain.GenerationJob, console.FieldErrors) {
	var errs console.FieldErrors

	start := strings.TrimSpace(f.StartDate)
	if start == "" {
		errs.Add("startDate", "Start date is required")
	} else if _, err := time.Parse(dateLayout, start); err != nil {
		errs.Add("startDate", "Start date must be YYYY-MM-DD")
	}

	days, err := strconv.Atoi(strings.TrimSpace(f.Days))
	if err != nil || days < 1 {
		errs.Add("days", "Days must be at least 1")
	}

	return domain.GenerationJob{BusID: busID, StartDate: start, Days: days}, errs
}

func formFromSchedule(s domain.Schedule, loc *time.Location) derive.ScheduleForm {
	return derive.ScheduleForm{
		RouteID:   s.RouteID,
		Departure: s.DepartureTime.In(loc).Format(derive.FormLayout),
		Arrival:   s.ArrivalTime.In(loc).Format(derive.FormLayout),
		Price:     derive.FormatAmount(s.Price),
	}
}
