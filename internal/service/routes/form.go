package routes

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/console/derive"
	"github.com/kirinyoku/busdesk/internal/domain"
)

// Form holds the raw route form input.
type Form struct {
	Source            string `json:"source"`
	Destination       string `json:"destination"`
	Distance          string `json:"distance"`
	BaseFare          string `json:"base_fare"`
	CustomFare        string `json:"custom_fare"`
	EstimatedDuration string `json:"estimated_duration"`
	DepartureTime     string `json:"departure_time"`
	Active            *bool  `json:"active"`
}

func formFromRoute(r domain.Route) Form {
	active := r.Active
	f := Form{
		Source:            r.Source,
		Destination:       r.Destination,
		Distance:          derive.FormatAmount(r.Distance),
		BaseFare:          derive.FormatAmount(r.BaseFare),
		EstimatedDuration: strconv.Itoa(r.EstimatedDuration),
		DepartureTime:     r.DepartureTime,
		Active:            &active,
	}
	if r.CustomFare != 0 {
		f.CustomFare = derive.FormatAmount(r.CustomFare)
	}
	return f
}

// Payload validates the form and builds the write payload. Every invalid
// field is reported, in form order.
func (f Form) Payload(busID int64) (domain.RoutePayload, console.FieldErrors) {
	var errs console.FieldErrors

	source := strings.TrimSpace(f.Source)
	destination := strings.TrimSpace(f.Destination)

	if source == "" {
		errs.Add("source", "Source is required")
	}

	switch {
	case destination == "":
		errs.Add("destination", "Destination is required")
	case source != "" && strings.EqualFold(source, destination):
		errs.Add("destination", "Destination must differ from source")
	}

	distance, ok := positiveFloat(f.Distance)
	if !ok {
		errs.Add("distance", "Distance must be greater than 0")
	}

	baseFare, ok := positiveFloat(f.BaseFare)
	if !ok {
		errs.Add("baseFare", "Base fare must be greater than 0")
	}

	var customFare float64
	if s := strings.TrimSpace(f.CustomFare); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			errs.Add("customFare", "Custom fare must be a non-negative number")
		} else {
			customFare = v
		}
	}

	duration, err := strconv.Atoi(strings.TrimSpace(f.EstimatedDuration))
	if err != nil || duration <= 0 {
		errs.Add("estimatedDuration", "Estimated duration must be a positive number of minutes")
	}

	departure := strings.TrimSpace(f.DepartureTime)
	if departure != "" {
		if _, err := time.Parse("15:04", departure); err != nil {
			errs.Add("departureTime", "Departure time must be HH:MM")
		}
	}

	active := true
	if f.Active != nil {
		active = *f.Active
	}

	return domain.RoutePayload{
		BusID:             busID,
		Source:            source,
		Destination:       destination,
		Distance:          distance,
		BaseFare:          baseFare,
		CustomFare:        customFare,
		EstimatedDuration: duration,
		DepartureTime:     departure,
		Active:            active,
	}, errs
}

func positiveFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
